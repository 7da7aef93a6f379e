package evidence

import "time"

// Run is a persisted evidence estimate for one model
type Run struct {
	ID        string    `json:"id"`
	Evidence  Evidence  `json:"evidence"`
	Precision Precision `json:"precision"`
	CreatedAt time.Time `json:"created_at"`
}

// ComparisonRecord is a persisted Bayes-factor comparison between two runs
type ComparisonRecord struct {
	ID         string     `json:"id"`
	Run1       *Run       `json:"run1"`
	Run2       *Run       `json:"run2"`
	Comparison Comparison `json:"comparison"`
	CreatedAt  time.Time  `json:"created_at"`
}
