package history

import "time"

type Record struct {
	ID              int64   `json:"id"`
	DurationMinutes float64 `json:"duration"`
	Points          int     `json:"points"`
	Date            string  `json:"date"`
	Difficulty      string  `json:"difficulty"`
}

func FormatDate(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}
