package mocks

import (
	"context"
	"fmt"

	"github.com/stravabot/server/pkg/apperrors"
	"github.com/stravabot/server/pkg/credentials"
	"github.com/stravabot/server/pkg/domain/activity"
	"github.com/stravabot/server/pkg/infrastructure/oauth"
	"github.com/stravabot/server/pkg/integrations/strava"
)

// --- Mock Fetcher ---
type MockFetcher struct {
	FetchRecentWithSplitsFunc func(ctx context.Context, userID string, count int) ([]activity.Summary, error)
	Calls                     int
}

func (m *MockFetcher) FetchRecentWithSplits(ctx context.Context, userID string, count int) ([]activity.Summary, error) {
	m.Calls++
	if m.FetchRecentWithSplitsFunc != nil {
		return m.FetchRecentWithSplitsFunc(ctx, userID, count)
	}
	return []activity.Summary{}, nil
}

// --- Mock Summarizer ---
type MockSummarizer struct {
	SummarizeFunc func(ctx context.Context, activities []activity.Summary) (string, error)
	Calls         int
}

func (m *MockSummarizer) Summarize(ctx context.Context, activities []activity.Summary) (string, error) {
	m.Calls++
	if m.SummarizeFunc != nil {
		return m.SummarizeFunc(ctx, activities)
	}
	return fmt.Sprintf("%d activities", len(activities)), nil
}

// --- Mock Activity Log ---
type MockActivityLog struct {
	AppendFunc func(ctx context.Context, userID string, activities []activity.Summary) error
	Calls      int
}

func (m *MockActivityLog) Append(ctx context.Context, userID string, activities []activity.Summary) error {
	m.Calls++
	if m.AppendFunc != nil {
		return m.AppendFunc(ctx, userID, activities)
	}
	return nil
}

// --- Mock Analyzed Publisher ---
type MockAnalyzedPublisher struct {
	PublishAnalyzedFunc func(ctx context.Context, userID, runID string, count int) error
	Calls               int
}

func (m *MockAnalyzedPublisher) PublishAnalyzed(ctx context.Context, userID, runID string, count int) error {
	m.Calls++
	if m.PublishAnalyzedFunc != nil {
		return m.PublishAnalyzedFunc(ctx, userID, runID, count)
	}
	return nil
}

// --- Mock Archiver ---
type MockArchiver struct {
	ArchiveFunc func(ctx context.Context, userID, runID string, activities []activity.Summary) error
	Calls       int
}

func (m *MockArchiver) Archive(ctx context.Context, userID, runID string, activities []activity.Summary) error {
	m.Calls++
	if m.ArchiveFunc != nil {
		return m.ArchiveFunc(ctx, userID, runID, activities)
	}
	return nil
}

// --- Mock Publisher ---
type MockPublisher struct {
	PublishFunc func(ctx context.Context, topic string, data []byte) (string, error)
}

func (m *MockPublisher) Publish(ctx context.Context, topic string, data []byte) (string, error) {
	if m.PublishFunc != nil {
		return m.PublishFunc(ctx, topic, data)
	}
	return "msg-id", nil
}

// --- Mock Storage ---
type MockBlobStore struct {
	WriteFunc func(ctx context.Context, bucket, object string, data []byte) error
	ReadFunc  func(ctx context.Context, bucket, object string) ([]byte, error)
}

func (m *MockBlobStore) Write(ctx context.Context, bucket, object string, data []byte) error {
	if m.WriteFunc != nil {
		return m.WriteFunc(ctx, bucket, object, data)
	}
	return nil
}

func (m *MockBlobStore) Read(ctx context.Context, bucket, object string) ([]byte, error) {
	if m.ReadFunc != nil {
		return m.ReadFunc(ctx, bucket, object)
	}
	return []byte("mock-data"), nil
}

// --- Mock Notifier ---
type MockNotifier struct {
	SendFunc func(ctx context.Context, userID, text string) error
	Sent     []string
}

func (m *MockNotifier) Send(ctx context.Context, userID, text string) error {
	m.Sent = append(m.Sent, text)
	if m.SendFunc != nil {
		return m.SendFunc(ctx, userID, text)
	}
	return nil
}

// --- Mock Token Source ---
type MockTokenSource struct {
	AccessTokenFunc func(ctx context.Context, userID string) (string, error)
}

func (m *MockTokenSource) AccessToken(ctx context.Context, userID string) (string, error) {
	if m.AccessTokenFunc != nil {
		return m.AccessTokenFunc(ctx, userID)
	}
	return "", apperrors.ErrNotConnected
}

// --- Mock Activity Provider ---
type MockActivityProvider struct {
	ListRecentFunc func(ctx context.Context, token string, count int) ([]strava.SummaryActivity, error)
	GetDetailFunc  func(ctx context.Context, token string, activityID int64) (*strava.DetailedActivity, error)
	ListLapsFunc   func(ctx context.Context, token string, activityID int64) ([]strava.Lap, error)
}

func (m *MockActivityProvider) ListRecent(ctx context.Context, token string, count int) ([]strava.SummaryActivity, error) {
	if m.ListRecentFunc != nil {
		return m.ListRecentFunc(ctx, token, count)
	}
	return []strava.SummaryActivity{}, nil
}

func (m *MockActivityProvider) GetDetail(ctx context.Context, token string, activityID int64) (*strava.DetailedActivity, error) {
	if m.GetDetailFunc != nil {
		return m.GetDetailFunc(ctx, token, activityID)
	}
	return nil, fmt.Errorf("activity %d not found", activityID)
}

func (m *MockActivityProvider) ListLaps(ctx context.Context, token string, activityID int64) ([]strava.Lap, error) {
	if m.ListLapsFunc != nil {
		return m.ListLapsFunc(ctx, token, activityID)
	}
	return nil, fmt.Errorf("activity %d not found", activityID)
}

// --- Mock OAuth Provider ---
type MockOAuthProvider struct {
	ExchangeFunc func(ctx context.Context, code string) (*oauth.Grant, error)
	RefreshFunc  func(ctx context.Context, refreshToken string) (*oauth.Grant, error)
}

func (m *MockOAuthProvider) Exchange(ctx context.Context, code string) (*oauth.Grant, error) {
	if m.ExchangeFunc != nil {
		return m.ExchangeFunc(ctx, code)
	}
	return nil, fmt.Errorf("exchange not configured")
}

func (m *MockOAuthProvider) Refresh(ctx context.Context, refreshToken string) (*oauth.Grant, error) {
	if m.RefreshFunc != nil {
		return m.RefreshFunc(ctx, refreshToken)
	}
	return nil, fmt.Errorf("refresh not configured")
}

// --- Mock Credential Store ---
type MockCredentialStore struct {
	GetFunc    func(ctx context.Context, userID string) (*credentials.Record, error)
	PutFunc    func(ctx context.Context, record *credentials.Record) error
	DeleteFunc func(ctx context.Context, userID string) error
}

func (m *MockCredentialStore) Get(ctx context.Context, userID string) (*credentials.Record, error) {
	if m.GetFunc != nil {
		return m.GetFunc(ctx, userID)
	}
	return nil, credentials.ErrNotFound
}

func (m *MockCredentialStore) Put(ctx context.Context, record *credentials.Record) error {
	if m.PutFunc != nil {
		return m.PutFunc(ctx, record)
	}
	return nil
}

func (m *MockCredentialStore) Delete(ctx context.Context, userID string) error {
	if m.DeleteFunc != nil {
		return m.DeleteFunc(ctx, userID)
	}
	return nil
}

// --- Mock Accounts ---
type MockAccounts struct {
	ConnectFunc    func(ctx context.Context, userID, code string) (*credentials.Record, error)
	DisconnectFunc func(ctx context.Context, userID string) error
	StatusFunc     func(ctx context.Context, userID string) (*credentials.Record, error)
}

func (m *MockAccounts) Connect(ctx context.Context, userID, code string) (*credentials.Record, error) {
	if m.ConnectFunc != nil {
		return m.ConnectFunc(ctx, userID, code)
	}
	return &credentials.Record{UserID: userID}, nil
}

func (m *MockAccounts) Disconnect(ctx context.Context, userID string) error {
	if m.DisconnectFunc != nil {
		return m.DisconnectFunc(ctx, userID)
	}
	return nil
}

func (m *MockAccounts) Status(ctx context.Context, userID string) (*credentials.Record, error) {
	if m.StatusFunc != nil {
		return m.StatusFunc(ctx, userID)
	}
	return nil, apperrors.ErrNotConnected
}
