package scheduler

import "time"

type Scheduler interface {
	Start() error
	Stop()
}

const (
	IntervalSecond = 1 * time.Second
	IntervalMinute = 1 * time.Minute
	IntervalDaily  = 24 * time.Hour
)
