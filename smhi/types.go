package smhi

import (
	"time"
)

const BASE_URL = "https://opendata-download-metfcst.smhi.se"

const (
	paramCloudCover  = "tcc_mean"
	paramTemperature = "t"
)

// Point is one hour of the point forecast. Cloud cover is given in octas,
// 0 is a clear sky and 8 is overcast.
type Point struct {
	Hour        time.Time
	CloudCover  float64
	Temperature float64
}

type smhi struct {
	ApprovedTime time.Time   `json:"approvedTime"`
	TimeSeries   []timeEntry `json:"timeSeries"`
}

type timeEntry struct {
	ValidTime  time.Time   `json:"validTime"`
	Parameters []parameter `json:"parameters"`
}

type parameter struct {
	Name   string    `json:"name"`
	Unit   string    `json:"unit"`
	Values []float64 `json:"values"`
}

func (e timeEntry) value(name string) (float64, bool) {
	for _, p := range e.Parameters {
		if p.Name == name && len(p.Values) > 0 {
			return p.Values[0], true
		}
	}
	return 0, false
}
