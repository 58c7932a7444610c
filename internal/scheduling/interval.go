package scheduling

import (
	"fmt"
	"time"
)

// Interval is a half-open booking window [Start, End). Two intervals that
// merely touch at an endpoint do not overlap, so back-to-back meetings on the
// same resource are allowed.
type Interval struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// NewInterval builds a validated interval.
func NewInterval(start, end time.Time) (Interval, error) {
	ival := Interval{Start: start, End: end}
	if err := ival.Validate(); err != nil {
		return Interval{}, err
	}
	return ival, nil
}

// Validate ensures the interval is well-formed (start strictly before end).
func (i Interval) Validate() error {
	if !i.Start.Before(i.End) {
		return fmt.Errorf("interval start %s must be before end %s", i.Start.Format(time.RFC3339), i.End.Format(time.RFC3339))
	}
	return nil
}

// Overlaps reports whether two half-open intervals intersect.
func (i Interval) Overlaps(other Interval) bool {
	return i.Start.Before(other.End) && other.Start.Before(i.End)
}

// Duration returns the length of the interval.
func (i Interval) Duration() time.Duration {
	return i.End.Sub(i.Start)
}

func (i Interval) String() string {
	return fmt.Sprintf("[%s, %s)", i.Start.Format(time.RFC3339), i.End.Format(time.RFC3339))
}
