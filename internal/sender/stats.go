package sender

import "time"

// Stats summarizes a finished (or aborted) run.
type Stats struct {
	RunID     string    `json:"run_id"`
	Total     int       `json:"total"`
	Sent      int       `json:"sent"`
	Failed    int       `json:"failed"`
	Skipped   int       `json:"skipped"`
	StartedAt time.Time `json:"started_at"`
	EndedAt   time.Time `json:"ended_at"`
	Stopped   bool      `json:"stopped"`
	Aborted   bool      `json:"aborted"`
}

// SuccessRate is the share of targeted contacts that got the message, 0..100.
func (s Stats) SuccessRate() float64 {
	if s.Total == 0 {
		return 0
	}
	return float64(s.Sent) / float64(s.Total) * 100
}

// Duration is the wall-clock span of the run.
func (s Stats) Duration() time.Duration {
	if s.StartedAt.IsZero() || s.EndedAt.IsZero() {
		return 0
	}
	return s.EndedAt.Sub(s.StartedAt)
}

// Throughput is sent messages per minute. Zero when the run was instantaneous.
func (s Stats) Throughput() float64 {
	d := s.Duration()
	if d <= 0 {
		return 0
	}
	return float64(s.Sent) / d.Minutes()
}

// Status is a point-in-time snapshot of an in-flight run.
type Status struct {
	Running   bool      `json:"running"`
	RunID     string    `json:"run_id,omitempty"`
	Current   int       `json:"current"`
	Total     int       `json:"total"`
	Sent      int       `json:"sent"`
	Failed    int       `json:"failed"`
	Skipped   int       `json:"skipped"`
	StartedAt time.Time `json:"started_at,omitempty"`
}
