package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/stravabot/server/pkg/domain/activity"
)

// RunSnapshot is the archived form of one pipeline run.
type RunSnapshot struct {
	UserID     string             `json:"user_id"`
	RunID      string             `json:"run_id"`
	ArchivedAt time.Time          `json:"archived_at"`
	Activities []activity.Summary `json:"activities"`
}

// RunArchive writes a JSON snapshot of each run to runs/{user}/{run}.json.
type RunArchive struct {
	blobs  BlobStore
	bucket string
	now    func() time.Time
}

func NewRunArchive(blobs BlobStore, bucket string) *RunArchive {
	return &RunArchive{blobs: blobs, bucket: bucket, now: time.Now}
}

func ObjectName(userID, runID string) string {
	return fmt.Sprintf("runs/%s/%s.json", userID, runID)
}

func (a *RunArchive) Archive(ctx context.Context, userID, runID string, activities []activity.Summary) error {
	data, err := json.Marshal(RunSnapshot{
		UserID:     userID,
		RunID:      runID,
		ArchivedAt: a.now().UTC(),
		Activities: activities,
	})
	if err != nil {
		return fmt.Errorf("marshal run snapshot: %w", err)
	}

	object := ObjectName(userID, runID)
	if err := a.blobs.Write(ctx, a.bucket, object, data); err != nil {
		return fmt.Errorf("write gs://%s/%s: %w", a.bucket, object, err)
	}
	return nil
}

// Load reads an archived run back. A missing run is ErrNotFound.
func (a *RunArchive) Load(ctx context.Context, userID, runID string) (*RunSnapshot, error) {
	object := ObjectName(userID, runID)
	data, err := a.blobs.Read(ctx, a.bucket, object)
	if err != nil {
		return nil, fmt.Errorf("read gs://%s/%s: %w", a.bucket, object, err)
	}
	var snap RunSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("decode run snapshot: %w", err)
	}
	return &snap, nil
}
