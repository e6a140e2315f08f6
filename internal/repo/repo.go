package repo

import (
	"errors"

	"coinwatch/internal/models"

	"gorm.io/gorm"
)

var (
	ErrNilDatabase           = errors.New("database cannot be nil")
	ErrDuplicateWatchPair    = errors.New("pair is already on the watch list")
	ErrWatchPairNotFound     = errors.New("pair is not on the watch list")
	ErrAlertNotFound         = errors.New("alert not found")
	ErrInvalidAlertDirection = errors.New("alert direction must be above or below")
)

type Repository struct {
	db *gorm.DB
}

func New(db *gorm.DB) (*Repository, error) {
	if db == nil {
		return nil, ErrNilDatabase
	}
	return &Repository{db: db}, nil
}

func (r *Repository) Migrate() error {
	return r.db.AutoMigrate(
		&models.WatchPair{},
		&models.Alert{},
		&models.PricePoint{},
	)
}
