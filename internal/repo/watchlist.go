package repo

import (
	"errors"

	"coinwatch/internal/models"

	"gorm.io/gorm"
)

// GetWatchList returns all watched pairs in insertion order.
func (r *Repository) GetWatchList() ([]models.WatchPair, error) {
	var list []models.WatchPair
	if err := r.db.Order("id ASC").Find(&list).Error; err != nil {
		return nil, err
	}
	return list, nil
}

// AddWatchPair inserts a pair; the watch list has set semantics so
// duplicates are rejected.
func (r *Repository) AddWatchPair(pair *models.WatchPair) error {
	var existing models.WatchPair
	err := r.db.Where("base = ? AND quote = ?", pair.Base, pair.Quote).First(&existing).Error
	if err == nil {
		return ErrDuplicateWatchPair
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}
	return r.db.Create(pair).Error
}

func (r *Repository) RemoveWatchPair(base, quote string) error {
	res := r.db.Where("base = ? AND quote = ?", base, quote).Delete(&models.WatchPair{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrWatchPairNotFound
	}
	return nil
}
