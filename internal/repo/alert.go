package repo

import (
	"errors"
	"time"

	"coinwatch/internal/models"

	"gorm.io/gorm"
)

func (r *Repository) ListAlerts() ([]models.Alert, error) {
	var alerts []models.Alert
	if err := r.db.Order("id ASC").Find(&alerts).Error; err != nil {
		return nil, err
	}
	return alerts, nil
}

func (r *Repository) ListArmedAlerts() ([]models.Alert, error) {
	var alerts []models.Alert
	if err := r.db.Where("armed = ?", true).Order("id ASC").Find(&alerts).Error; err != nil {
		return nil, err
	}
	return alerts, nil
}

func (r *Repository) GetAlertByID(id int64) (*models.Alert, error) {
	var alert models.Alert
	if err := r.db.First(&alert, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAlertNotFound
		}
		return nil, err
	}
	return &alert, nil
}

func (r *Repository) CreateAlert(alert *models.Alert) error {
	if alert.Direction != models.DirectionAbove && alert.Direction != models.DirectionBelow {
		return ErrInvalidAlertDirection
	}
	alert.Armed = true
	alert.FiredAt = nil
	return r.db.Create(alert).Error
}

func (r *Repository) DeleteAlert(id int64) error {
	res := r.db.Delete(&models.Alert{}, id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrAlertNotFound
	}
	return nil
}

// ArmAlert re-arms a fired alert so it can fire on the next crossing.
func (r *Repository) ArmAlert(id int64) error {
	res := r.db.Model(&models.Alert{}).Where("id = ?", id).
		Updates(map[string]any{"armed": true, "fired_at": nil})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrAlertNotFound
	}
	return nil
}

// DisarmAlert records a firing. Repeating alerts stay armed and only get
// their fired_at updated.
func (r *Repository) DisarmAlert(id int64, firedAt time.Time) error {
	alert, err := r.GetAlertByID(id)
	if err != nil {
		return err
	}

	updates := map[string]any{"fired_at": firedAt}
	if !alert.Repeating {
		updates["armed"] = false
	}
	return r.db.Model(&models.Alert{}).Where("id = ?", id).Updates(updates).Error
}
