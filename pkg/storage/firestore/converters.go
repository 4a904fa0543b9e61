package firestore

import (
	"time"

	"github.com/stravabot/server/pkg/credentials"
)

// Helper to safely get string from map
func getString(m map[string]interface{}, key string) string {
	if v, ok := m[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

// Helper to safely get an integer from map. Firestore returns int64 for
// integer fields, but documents written by hand may hold float64.
func getInt64(m map[string]interface{}, key string) int64 {
	switch v := m[key].(type) {
	case int64:
		return v
	case int:
		return int64(v)
	case float64:
		return int64(v)
	}
	return 0
}

// Helper to safely get time from map (handles time.Time from Firestore)
func getTime(m map[string]interface{}, key string) time.Time {
	if v, ok := m[key]; ok {
		if t, ok := v.(time.Time); ok {
			return t
		}
	}
	return time.Time{}
}

// --- Credential Converters ---

func CredentialToFirestore(r *credentials.Record) map[string]interface{} {
	m := map[string]interface{}{
		"user_id":             r.UserID,
		"access_token":        r.AccessToken,
		"refresh_token":       r.RefreshToken,
		"expires_at":          r.ExpiresAt,
		"provider_account_id": r.ProviderAccountID,
	}
	if !r.ConnectedAt.IsZero() {
		m["connected_at"] = r.ConnectedAt
	}
	if !r.UpdatedAt.IsZero() {
		m["updated_at"] = r.UpdatedAt
	}
	return m
}

func FirestoreToCredential(m map[string]interface{}) *credentials.Record {
	return &credentials.Record{
		UserID:            getString(m, "user_id"),
		AccessToken:       getString(m, "access_token"),
		RefreshToken:      getString(m, "refresh_token"),
		ExpiresAt:         getInt64(m, "expires_at"),
		ProviderAccountID: getString(m, "provider_account_id"),
		ConnectedAt:       getTime(m, "connected_at"),
		UpdatedAt:         getTime(m, "updated_at"),
	}
}
