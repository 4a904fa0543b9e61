package sheets

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"google.golang.org/api/sheets/v4"

	"github.com/stravabot/server/pkg/domain/activity"
)

const (
	DefaultActivitiesSheet = "Activities"
	activitiesLastColumn   = "L"
)

// ActivityLog appends one row per analyzed activity to the Activities tab.
type ActivityLog struct {
	svc           *sheets.Service
	spreadsheetID string
	sheetName     string
	now           func() time.Time
}

func NewActivityLog(svc *sheets.Service, spreadsheetID, sheetName string) *ActivityLog {
	if sheetName == "" {
		sheetName = DefaultActivitiesSheet
	}
	return &ActivityLog{
		svc:           svc,
		spreadsheetID: spreadsheetID,
		sheetName:     sheetName,
		now:           time.Now,
	}
}

// Append writes the activities of one run in provider order.
func (l *ActivityLog) Append(ctx context.Context, userID string, activities []activity.Summary) error {
	if len(activities) == 0 {
		return nil
	}

	fetchedAt := l.now().UTC().Format(time.RFC3339)
	rows := make([][]interface{}, 0, len(activities))
	for i := range activities {
		rows = append(rows, buildActivityRow(userID, fetchedAt, &activities[i]))
	}

	_, err := l.svc.Spreadsheets.Values.Append(l.spreadsheetID, l.sheetName+"!A:"+activitiesLastColumn, &sheets.ValueRange{Values: rows}).
		ValueInputOption("RAW").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).
		Do()
	if err != nil {
		return fmt.Errorf("append %d activity rows: %w", len(rows), err)
	}
	return nil
}

// buildActivityRow lays out: user id, fetched at, activity id, date, type,
// name, distance km, moving time, pace, average HR, split count, split source.
func buildActivityRow(userID, fetchedAt string, a *activity.Summary) []interface{} {
	date := ""
	if !a.StartDate.IsZero() {
		date = a.StartDate.UTC().Format("2006-01-02")
	}

	distance := ""
	if a.Distance > 0 {
		distance = fmt.Sprintf("%.2f", a.Distance/1000.0)
	}

	avgHR := ""
	if a.AverageHeartrate != nil {
		avgHR = fmt.Sprintf("%.0f", *a.AverageHeartrate)
	}

	return []interface{}{
		userID,
		fetchedAt,
		strconv.FormatInt(a.ID, 10),
		date,
		a.Type,
		a.Name,
		distance,
		activity.FormatClock(a.MovingTime),
		activity.FormatPace(a.Pace()),
		avgHR,
		strconv.Itoa(len(a.Splits)),
		a.SplitSource.String(),
	}
}
