package series

import (
	"time"

	"github.com/icodeforyou/solarbank-forecast/days"
)

// Buckets splits the frame into consecutive groups of rows sharing the same
// wall clock bucket of the given size, e.g. every full hour.
func (f Frame) Buckets(loc *time.Location, size time.Duration) []Frame {
	if f.IsEmpty() {
		return nil
	}
	if size <= 0 {
		return []Frame{f}
	}

	var result []Frame
	start := 0
	key := bucketStart(f.Time[0], loc, size)
	for i := 1; i < f.Len(); i++ {
		k := bucketStart(f.Time[i], loc, size)
		if !k.Equal(key) {
			result = append(result, f.Slice(start, i))
			start, key = i, k
		}
	}
	return append(result, f.Slice(start, f.Len()))
}

func bucketStart(t time.Time, loc *time.Location, size time.Duration) time.Time {
	t = t.In(loc)
	s := int(size.Seconds())
	c := days.ClockOf(t)
	return days.FromTime(t).At(loc, days.Clock(int(c)/s*s))
}
