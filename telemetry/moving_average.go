package telemetry

// MovingAverage is the mean of the last size values added.
type MovingAverage struct {
	window []float64
	size   int
	sum    float64
	index  int
	full   bool
}

func NewMovingAverage(size int) *MovingAverage {
	return &MovingAverage{
		window: make([]float64, size),
		size:   size,
	}
}

func (ma *MovingAverage) Add(value float64) {
	if ma.full {
		ma.sum -= ma.window[ma.index]
	}

	ma.window[ma.index] = value
	ma.sum += value
	ma.index = (ma.index + 1) % ma.size

	if ma.index == 0 {
		ma.full = true
	}
}

// Count is the number of values the average is taken over.
func (ma *MovingAverage) Count() int {
	if ma.full {
		return ma.size
	}
	return ma.index
}

// Avg is zero when nothing has been added.
func (ma *MovingAverage) Avg() float64 {
	n := ma.Count()
	if n == 0 {
		return 0
	}
	return ma.sum / float64(n)
}

func (ma *MovingAverage) Reset() {
	ma.sum = 0
	ma.index = 0
	ma.full = false
	for i := range ma.window {
		ma.window[i] = 0
	}
}
