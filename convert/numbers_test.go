package convert

import "testing"

func TestRoundFloat64(t *testing.T) {
	tests := []struct {
		in       float64
		decimals int
		want     float64
	}{
		{1.23456, 2, 1.23},
		{1.235, 1, 1.2},
		{-0.5555, 3, -0.556},
		{0.61234, 4, 0.6123},
	}
	for _, tt := range tests {
		if got := RoundFloat64(tt.in, tt.decimals); got != tt.want {
			t.Errorf("RoundFloat64(%v, %d) = %v, want %v", tt.in, tt.decimals, got, tt.want)
		}
	}
}

func TestOctasToPercentage(t *testing.T) {
	tests := map[float64]float64{0: 0, 4: 50, 8: 100, 1: 13}
	for octas, want := range tests {
		if got := OctasToPercentage(octas); got != want {
			t.Errorf("OctasToPercentage(%v) = %v, want %v", octas, got, want)
		}
	}
}
