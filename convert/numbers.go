package convert

import (
	"math"
)

func TwoDecimals(number float64) float64 {
	return RoundFloat64(number, 2)
}

func RoundFloat64(number float64, decimals int) float64 {
	return math.Round(number*math.Pow10(decimals)) / math.Pow10(decimals)
}

// OctasToPercentage maps cloud cover in eighths of the sky to 0..100.
func OctasToPercentage(octas float64) float64 {
	return math.Round((octas / 8) * 100)
}
