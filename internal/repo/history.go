package repo

import (
	"time"

	"coinwatch/internal/models"
)

func (r *Repository) AppendPricePoint(point *models.PricePoint) error {
	return r.db.Create(point).Error
}

// GetHistory returns persisted points for a pair within [from, to],
// oldest first.
func (r *Repository) GetHistory(base, quote string, from, to time.Time) ([]models.PricePoint, error) {
	var points []models.PricePoint
	if err := r.db.
		Where("base = ? AND quote = ? AND timestamp BETWEEN ? AND ?", base, quote, from, to).
		Order("timestamp ASC").
		Find(&points).Error; err != nil {
		return nil, err
	}
	return points, nil
}

func (r *Repository) GetLatestPricePoint(base, quote string) (*models.PricePoint, error) {
	var point models.PricePoint
	if err := r.db.
		Where("base = ? AND quote = ?", base, quote).
		Order("timestamp DESC").
		First(&point).Error; err != nil {
		return nil, err
	}
	return &point, nil
}

// DeleteHistoryOlderThan prunes persisted points for retention.
func (r *Repository) DeleteHistoryOlderThan(cutoff time.Time) (int64, error) {
	res := r.db.Where("timestamp < ?", cutoff).Delete(&models.PricePoint{})
	return res.RowsAffected, res.Error
}
