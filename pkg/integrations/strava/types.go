package strava

import "time"

// SummaryActivity is one entry of GET /athlete/activities.
type SummaryActivity struct {
	ID                 int64     `json:"id"`
	Name               string    `json:"name"`
	Type               string    `json:"type"`
	SportType          string    `json:"sport_type"`
	StartDate          time.Time `json:"start_date"`
	StartDateLocal     time.Time `json:"start_date_local"`
	Timezone           string    `json:"timezone,omitempty"`
	Distance           float64   `json:"distance"`     // meters
	MovingTime         int       `json:"moving_time"`  // seconds
	ElapsedTime        int       `json:"elapsed_time"` // seconds
	TotalElevationGain float64   `json:"total_elevation_gain"`
	AverageSpeed       float64   `json:"average_speed"` // m/s
	MaxSpeed           float64   `json:"max_speed"`     // m/s
	HasHeartrate       bool      `json:"has_heartrate"`
	AverageHeartrate   *float64  `json:"average_heartrate,omitempty"`
	MaxHeartrate       *float64  `json:"max_heartrate,omitempty"`
	ElevHigh           *float64  `json:"elev_high,omitempty"`
	ElevLow            *float64  `json:"elev_low,omitempty"`
}

// Split is an entry of splits_metric on a detailed activity.
type Split struct {
	Split               int      `json:"split"`
	Distance            float64  `json:"distance"`
	ElapsedTime         int      `json:"elapsed_time"`
	MovingTime          int      `json:"moving_time"`
	ElevationDifference float64  `json:"elevation_difference"`
	AverageSpeed        float64  `json:"average_speed"`
	AverageHeartrate    *float64 `json:"average_heartrate,omitempty"`
	PaceZone            int      `json:"pace_zone"`
}

// DetailedActivity is GET /activities/{id}.
type DetailedActivity struct {
	SummaryActivity
	Description  string  `json:"description"`
	Calories     float64 `json:"calories"`
	SplitsMetric []Split `json:"splits_metric"`
}

// Lap is an entry of GET /activities/{id}/laps.
type Lap struct {
	ID                 int64    `json:"id"`
	Name               string   `json:"name"`
	LapIndex           int      `json:"lap_index"`
	Split              int      `json:"split"`
	Distance           float64  `json:"distance"`
	ElapsedTime        int      `json:"elapsed_time"`
	MovingTime         int      `json:"moving_time"`
	AverageSpeed       float64  `json:"average_speed"`
	MaxSpeed           float64  `json:"max_speed"`
	TotalElevationGain float64  `json:"total_elevation_gain"`
	AverageHeartrate   *float64 `json:"average_heartrate,omitempty"`
	MaxHeartrate       *float64 `json:"max_heartrate,omitempty"`
}

// Athlete is the summary athlete embedded in token responses.
type Athlete struct {
	ID        int64  `json:"id"`
	Username  string `json:"username"`
	Firstname string `json:"firstname"`
	Lastname  string `json:"lastname"`
}
