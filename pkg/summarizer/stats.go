package summarizer

import (
	"context"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/stravabot/server/pkg/domain/activity"
)

// Stats is the offline summarizer used when no model is configured. It
// reports counts and averages only.
type Stats struct {
	printer *message.Printer
}

func NewStats(tag language.Tag) *Stats {
	return &Stats{printer: message.NewPrinter(tag)}
}

func (s *Stats) Summarize(_ context.Context, activities []activity.Summary) (string, error) {
	var distance float64
	var moving, withSplits int
	for _, a := range activities {
		distance += a.Distance
		moving += a.MovingTime
		if len(a.Splits) > 0 {
			withSplits++
		}
	}

	n := len(activities)
	avg := 0.0
	if n > 0 {
		avg = distance / float64(n) / 1000
	}
	pace := 0.0
	if distance > 0 {
		pace = float64(moving) / (distance / 1000)
	}

	p := s.printer
	return p.Sprintf("📊 Analisis %d aktivitas terakhir:\n", n) +
		p.Sprintf("• Total jarak: %.2f km\n", distance/1000) +
		p.Sprintf("• Rata-rata jarak: %.2f km\n", avg) +
		p.Sprintf("• Total waktu: %s\n", activity.FormatClock(moving)) +
		p.Sprintf("• Rata-rata pace: %s /km\n", activity.FormatPace(pace)) +
		p.Sprintf("• Split tersedia: %d dari %d", withSplits, n), nil
}
