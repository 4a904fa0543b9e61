package storage

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stravabot/server/pkg/domain/activity"
	"github.com/stravabot/server/pkg/testing/mocks"
)

func TestRunArchive_ArchiveAndLoad(t *testing.T) {
	objects := map[string][]byte{}
	blobs := &mocks.MockBlobStore{
		WriteFunc: func(ctx context.Context, bucket, object string, data []byte) error {
			assert.Equal(t, "bucket", bucket)
			objects[object] = data
			return nil
		},
		ReadFunc: func(ctx context.Context, bucket, object string) ([]byte, error) {
			return objects[object], nil
		},
	}

	a := NewRunArchive(blobs, "bucket")
	a.now = func() time.Time { return time.Date(2025, 3, 1, 7, 0, 0, 0, time.UTC) }

	acts := []activity.Summary{{ID: 9, Name: "Run", Splits: []activity.SplitSegment{}, SplitSource: activity.SplitSourceLaps}}
	require.NoError(t, a.Archive(context.Background(), "42", "run-1", acts))
	assert.Contains(t, objects, "runs/42/run-1.json")
	assert.Contains(t, string(objects["runs/42/run-1.json"]), `"split_source":"laps"`)

	snap, err := a.Load(context.Background(), "42", "run-1")
	require.NoError(t, err)
	assert.Equal(t, "run-1", snap.RunID)
	require.Len(t, snap.Activities, 1)
	assert.Equal(t, int64(9), snap.Activities[0].ID)
}

func TestRunArchive_LoadMissing(t *testing.T) {
	blobs := &mocks.MockBlobStore{ReadFunc: func(ctx context.Context, bucket, object string) ([]byte, error) {
		return nil, ErrNotFound
	}}

	_, err := NewRunArchive(blobs, "bucket").Load(context.Background(), "42", "nope")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorContains(t, err, "gs://bucket/runs/42/nope.json")
}
