package openmeteo

import "fmt"

type response struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Timezone  string  `json:"timezone"`
	Hourly    hourly  `json:"hourly"`
	Daily     daily   `json:"daily"`
}

// Values are pointers since the API returns null for missing hours.
type hourly struct {
	Time       []string   `json:"time"`
	CloudCover []*float64 `json:"cloud_cover"`
}

type daily struct {
	Time             []string   `json:"time"`
	DaylightDuration []*float64 `json:"daylight_duration"` // seconds
}

type errorResponse struct {
	Error  bool   `json:"error"`
	Reason string `json:"reason"`
}

// APIError is returned when Open-Meteo answers with a non 200 status
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("open-meteo API error %d: %s", e.StatusCode, e.Message)
}

// NetworkError wraps transport failures
type NetworkError struct {
	Operation string
	Err       error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("network error during %s: %v", e.Operation, e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}
