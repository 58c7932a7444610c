package scheduling

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func at(hour, min int) time.Time {
	return time.Date(2026, 9, 14, hour, min, 0, 0, time.UTC)
}

func TestNewInterval(t *testing.T) {
	t.Run("valid window", func(t *testing.T) {
		ival, err := NewInterval(at(10, 0), at(11, 0))
		require.NoError(t, err)
		assert.Equal(t, time.Hour, ival.Duration())
	})

	t.Run("start equals end", func(t *testing.T) {
		_, err := NewInterval(at(10, 0), at(10, 0))
		assert.Error(t, err)
	})

	t.Run("start after end", func(t *testing.T) {
		_, err := NewInterval(at(11, 0), at(10, 0))
		assert.Error(t, err)
	})
}

func TestIntervalOverlaps(t *testing.T) {
	base := Interval{Start: at(10, 0), End: at(11, 0)}

	tests := []struct {
		name  string
		other Interval
		want  bool
	}{
		{"identical", Interval{Start: at(10, 0), End: at(11, 0)}, true},
		{"contained", Interval{Start: at(10, 15), End: at(10, 45)}, true},
		{"containing", Interval{Start: at(9, 0), End: at(12, 0)}, true},
		{"overlaps start", Interval{Start: at(9, 30), End: at(10, 30)}, true},
		{"overlaps end", Interval{Start: at(10, 30), End: at(11, 30)}, true},
		{"back to back before", Interval{Start: at(9, 0), End: at(10, 0)}, false},
		{"back to back after", Interval{Start: at(11, 0), End: at(12, 0)}, false},
		{"disjoint", Interval{Start: at(13, 0), End: at(14, 0)}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, base.Overlaps(tt.other))
			assert.Equal(t, tt.want, tt.other.Overlaps(base))
		})
	}
}
