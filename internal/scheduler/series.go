package scheduler

import "time"

// Sample is one consumed telemetry value. Index is assigned by the consumer
// loop and restarts at 0 after a reset.
type Sample struct {
	Index int       `json:"index"`
	Value float64   `json:"value"`
	Raw   string    `json:"raw"`
	At    time.Time `json:"at"`
}

// Values returns the sample values in order.
func Values(series []Sample) []float64 {
	out := make([]float64, len(series))
	for i, s := range series {
		out[i] = s.Value
	}
	return out
}

// Indices returns the sample indices in order.
func Indices(series []Sample) []int {
	out := make([]int, len(series))
	for i, s := range series {
		out[i] = s.Index
	}
	return out
}
