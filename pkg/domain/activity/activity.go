package activity

import (
	"fmt"
	"math"
	"time"

	"github.com/stravabot/server/pkg/integrations/strava"
)

// SplitSource records where an activity's split segments came from. It is
// resolved once per activity.
type SplitSource int

const (
	// SplitSourceUnavailable means neither splits nor laps could be read.
	SplitSourceUnavailable SplitSource = iota
	// SplitSourceNative means splits_metric from the activity detail.
	SplitSourceNative
	// SplitSourceLaps means laps coerced into segments.
	SplitSourceLaps
)

func (s SplitSource) String() string {
	switch s {
	case SplitSourceNative:
		return "native"
	case SplitSourceLaps:
		return "laps"
	default:
		return "unavailable"
	}
}

func (s SplitSource) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *SplitSource) UnmarshalText(text []byte) error {
	switch string(text) {
	case "native":
		*s = SplitSourceNative
	case "laps":
		*s = SplitSourceLaps
	case "unavailable", "":
		*s = SplitSourceUnavailable
	default:
		return fmt.Errorf("unknown split source %q", text)
	}
	return nil
}

// SplitSegment is one kilometer split, or one lap when splits are missing.
// Index is 1-based.
type SplitSegment struct {
	Index               int      `json:"index"`
	Distance            float64  `json:"distance"`
	MovingTime          int      `json:"moving_time"`
	ElapsedTime         int      `json:"elapsed_time"`
	AverageSpeed        float64  `json:"average_speed"`
	ElevationDifference float64  `json:"elevation_difference"`
	AverageHeartrate    *float64 `json:"average_heartrate,omitempty"`
}

// Summary is one retrieved workout with its resolved splits.
type Summary struct {
	ID                 int64          `json:"id"`
	Name               string         `json:"name"`
	Type               string         `json:"type"`
	StartDate          time.Time      `json:"start_date"`
	Distance           float64        `json:"distance"`
	MovingTime         int            `json:"moving_time"`
	ElapsedTime        int            `json:"elapsed_time"`
	AverageSpeed       float64        `json:"average_speed"`
	MaxSpeed           float64        `json:"max_speed"`
	AverageHeartrate   *float64       `json:"average_heartrate,omitempty"`
	MaxHeartrate       *float64       `json:"max_heartrate,omitempty"`
	TotalElevationGain *float64       `json:"total_elevation_gain,omitempty"`
	Splits             []SplitSegment `json:"splits"`
	SplitSource        SplitSource    `json:"split_source"`
}

// Pace returns seconds per kilometer, or 0 when there is no distance.
func (s *Summary) Pace() float64 {
	if s.Distance <= 0 || s.MovingTime <= 0 {
		return 0
	}
	return float64(s.MovingTime) / (s.Distance / 1000)
}

// FromStrava builds a Summary without splits.
func FromStrava(a strava.SummaryActivity) Summary {
	sum := Summary{
		ID:               a.ID,
		Name:             a.Name,
		Type:             a.SportType,
		StartDate:        a.StartDate,
		Distance:         a.Distance,
		MovingTime:       a.MovingTime,
		ElapsedTime:      a.ElapsedTime,
		AverageSpeed:     a.AverageSpeed,
		MaxSpeed:         a.MaxSpeed,
		AverageHeartrate: a.AverageHeartrate,
		MaxHeartrate:     a.MaxHeartrate,
		Splits:           []SplitSegment{},
	}
	if sum.Type == "" {
		sum.Type = a.Type
	}
	if a.TotalElevationGain > 0 {
		gain := a.TotalElevationGain
		sum.TotalElevationGain = &gain
	}
	return sum
}

// SegmentsFromSplits maps native splits. The provider's split number is kept
// when present.
func SegmentsFromSplits(splits []strava.Split) []SplitSegment {
	out := make([]SplitSegment, 0, len(splits))
	for i, s := range splits {
		idx := s.Split
		if idx <= 0 {
			idx = i + 1
		}
		out = append(out, SplitSegment{
			Index:               idx,
			Distance:            s.Distance,
			MovingTime:          s.MovingTime,
			ElapsedTime:         s.ElapsedTime,
			AverageSpeed:        s.AverageSpeed,
			ElevationDifference: s.ElevationDifference,
			AverageHeartrate:    s.AverageHeartrate,
		})
	}
	return out
}

// SegmentsFromLaps coerces laps into segments with a synthetic 1-based index.
func SegmentsFromLaps(laps []strava.Lap) []SplitSegment {
	out := make([]SplitSegment, 0, len(laps))
	for i, l := range laps {
		out = append(out, SplitSegment{
			Index:               i + 1,
			Distance:            l.Distance,
			MovingTime:          l.MovingTime,
			ElapsedTime:         l.ElapsedTime,
			AverageSpeed:        l.AverageSpeed,
			ElevationDifference: l.TotalElevationGain,
			AverageHeartrate:    l.AverageHeartrate,
		})
	}
	return out
}

// FormatClock renders seconds as HH:MM:SS.
func FormatClock(seconds int) string {
	if seconds < 0 {
		seconds = 0
	}
	return fmt.Sprintf("%02d:%02d:%02d", seconds/3600, (seconds%3600)/60, seconds%60)
}

// FormatPace renders seconds per kilometer as M:SS. Zero renders as "-".
func FormatPace(secPerKm float64) string {
	if secPerKm <= 0 {
		return "-"
	}
	total := int(math.Round(secPerKm))
	return fmt.Sprintf("%d:%02d", total/60, total%60)
}
