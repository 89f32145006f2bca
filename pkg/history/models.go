package history

import "time"

// Run is one completed upload run.
type Run struct {
	ID         uint      `gorm:"primaryKey"`
	StartedAt  time.Time `gorm:"index"`
	DurationMs int64

	Dir string
	URL string

	Total     int
	Succeeded int
	Failed    int

	Concurrency int
	BatchSize   int
}
