package models

import (
	"time"

	"coinwatch/pkg/types/prices"
)

const (
	DirectionAbove = "above"
	DirectionBelow = "below"
)

type WatchPair struct {
	ID        int64     `json:"id"         gorm:"primaryKey"`
	Base      string    `json:"base"       gorm:"uniqueIndex:idx_watch_pair"`
	Quote     string    `json:"quote"      gorm:"uniqueIndex:idx_watch_pair"`
	CreatedAt time.Time `json:"created_at"`
}

type Alert struct {
	ID        int64      `json:"id"         gorm:"primaryKey"`
	Base      string     `json:"base"       gorm:"index:idx_alert_pair"`
	Quote     string     `json:"quote"      gorm:"index:idx_alert_pair"`
	Threshold float64    `json:"threshold"`
	Direction string     `json:"direction"`
	Armed     bool       `json:"armed"`
	Repeating bool       `json:"repeating"`
	FiredAt   *time.Time `json:"fired_at,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

type PricePoint struct {
	ID        int64     `json:"id"         gorm:"primaryKey"`
	Base      string    `json:"base"       gorm:"index:idx_price_pair_time"`
	Quote     string    `json:"quote"      gorm:"index:idx_price_pair_time"`
	Price     float64   `json:"price"`
	Source    string    `json:"source"`
	Timestamp time.Time `json:"timestamp"  gorm:"index:idx_price_pair_time"`
	CreatedAt time.Time `json:"created_at"`
}

func (WatchPair) TableName() string {
	return "watch_pairs"
}

func (Alert) TableName() string {
	return "alerts"
}

func (PricePoint) TableName() string {
	return "price_points"
}

func (w WatchPair) Pair() prices.Pair {
	return prices.Pair{Base: w.Base, Quote: w.Quote}
}

func (a Alert) Pair() prices.Pair {
	return prices.Pair{Base: a.Base, Quote: a.Quote}
}

func (p PricePoint) Point() prices.PricePoint {
	return prices.PricePoint{
		Pair:      prices.Pair{Base: p.Base, Quote: p.Quote},
		Price:     p.Price,
		Timestamp: p.Timestamp,
		Source:    p.Source,
	}
}

func FromPoint(point prices.PricePoint) *PricePoint {
	return &PricePoint{
		Base:      point.Pair.Base,
		Quote:     point.Pair.Quote,
		Price:     point.Price,
		Source:    point.Source,
		Timestamp: point.Timestamp,
	}
}
