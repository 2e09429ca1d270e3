package models

import "time"

// JobStatDay holds per-status job counts for a single day.
type JobStatDay struct {
	Day        time.Time `json:"day" db:"day"`
	Completed  int       `json:"completed" db:"completed"`
	Failed     int       `json:"failed" db:"failed"`
	Processing int       `json:"processing" db:"processing"`
	Pending    int       `json:"pending" db:"pending"`
}

// JobStats is the aggregated view over a period, plus per-day details.
type JobStats struct {
	Total       int          `json:"total" db:"total"`
	Completed   int          `json:"completed" db:"completed"`
	Failed      int          `json:"failed" db:"failed"`
	Processing  int          `json:"processing" db:"processing"`
	SuccessRate float64      `json:"success_rate" db:"success_rate"` // completed/total
	PerDay      []JobStatDay `json:"per_day" db:"per_day"`
}
