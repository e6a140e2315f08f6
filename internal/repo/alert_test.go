package repo

import (
	"testing"
	"time"

	"coinwatch/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateAlert(t *testing.T) {
	r := setupRepo(t)

	alert := &models.Alert{Base: "BTC", Quote: "USD", Threshold: 70000, Direction: models.DirectionAbove}
	require.NoError(t, r.CreateAlert(alert))

	assert.True(t, alert.Armed)
	assert.Nil(t, alert.FiredAt)

	stored, err := r.GetAlertByID(alert.ID)
	require.NoError(t, err)
	assert.Equal(t, 70000.0, stored.Threshold)
}

func TestCreateAlert_InvalidDirection(t *testing.T) {
	r := setupRepo(t)

	err := r.CreateAlert(&models.Alert{Base: "BTC", Quote: "USD", Threshold: 1, Direction: "sideways"})
	assert.ErrorIs(t, err, ErrInvalidAlertDirection)
}

func TestListArmedAlerts(t *testing.T) {
	r := setupRepo(t)

	a := &models.Alert{Base: "BTC", Quote: "USD", Threshold: 70000, Direction: models.DirectionAbove}
	b := &models.Alert{Base: "ETH", Quote: "USD", Threshold: 2000, Direction: models.DirectionBelow}
	require.NoError(t, r.CreateAlert(a))
	require.NoError(t, r.CreateAlert(b))

	require.NoError(t, r.DisarmAlert(a.ID, time.Now()))

	armed, err := r.ListArmedAlerts()
	require.NoError(t, err)
	require.Len(t, armed, 1)
	assert.Equal(t, b.ID, armed[0].ID)
}

func TestDisarmAlert_OneShot(t *testing.T) {
	r := setupRepo(t)

	alert := &models.Alert{Base: "BTC", Quote: "USD", Threshold: 70000, Direction: models.DirectionAbove}
	require.NoError(t, r.CreateAlert(alert))

	firedAt := time.Now()
	require.NoError(t, r.DisarmAlert(alert.ID, firedAt))

	stored, err := r.GetAlertByID(alert.ID)
	require.NoError(t, err)
	assert.False(t, stored.Armed)
	require.NotNil(t, stored.FiredAt)
}

func TestDisarmAlert_RepeatingStaysArmed(t *testing.T) {
	r := setupRepo(t)

	alert := &models.Alert{Base: "BTC", Quote: "USD", Threshold: 70000, Direction: models.DirectionAbove, Repeating: true}
	require.NoError(t, r.CreateAlert(alert))

	require.NoError(t, r.DisarmAlert(alert.ID, time.Now()))

	stored, err := r.GetAlertByID(alert.ID)
	require.NoError(t, err)
	assert.True(t, stored.Armed)
	assert.NotNil(t, stored.FiredAt)
}

func TestArmAlert(t *testing.T) {
	r := setupRepo(t)

	alert := &models.Alert{Base: "BTC", Quote: "USD", Threshold: 70000, Direction: models.DirectionAbove}
	require.NoError(t, r.CreateAlert(alert))
	require.NoError(t, r.DisarmAlert(alert.ID, time.Now()))

	require.NoError(t, r.ArmAlert(alert.ID))

	stored, err := r.GetAlertByID(alert.ID)
	require.NoError(t, err)
	assert.True(t, stored.Armed)
	assert.Nil(t, stored.FiredAt)
}

func TestDeleteAlert(t *testing.T) {
	r := setupRepo(t)

	alert := &models.Alert{Base: "BTC", Quote: "USD", Threshold: 70000, Direction: models.DirectionAbove}
	require.NoError(t, r.CreateAlert(alert))
	require.NoError(t, r.DeleteAlert(alert.ID))

	_, err := r.GetAlertByID(alert.ID)
	assert.ErrorIs(t, err, ErrAlertNotFound)

	assert.ErrorIs(t, r.DeleteAlert(alert.ID), ErrAlertNotFound)
}
