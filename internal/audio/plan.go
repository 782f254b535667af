package audio

import "time"

// Span is one planned time slice of the input, numbered from 1
type Span struct {
	Number int
	Start  time.Duration
	End    time.Duration
}

// Duration returns the span length
func (s Span) Duration() time.Duration {
	return s.End - s.Start
}

// PlanSegments splits total into consecutive spans of at most length. The
// last span carries the remainder
func PlanSegments(total, length time.Duration) []Span {
	if total <= 0 || length <= 0 {
		return nil
	}
	count := int((total + length - 1) / length)
	spans := make([]Span, 0, count)
	for i := 0; i < count; i++ {
		start := time.Duration(i) * length
		end := start + length
		if end > total {
			end = total
		}
		spans = append(spans, Span{Number: i + 1, Start: start, End: end})
	}
	return spans
}
