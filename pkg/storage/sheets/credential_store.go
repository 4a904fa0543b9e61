package sheets

import (
	"context"
	"fmt"
	"strconv"
	"sync"

	"google.golang.org/api/sheets/v4"

	"github.com/stravabot/server/pkg/credentials"
)

const (
	DefaultTokensSheet = "Tokens"
	tokensLastColumn   = "E"
)

// CredentialStore implements credentials.Store on a spreadsheet tab with the
// columns: user id, access token, refresh token, expires at, athlete id.
//
// The Sheets API has no conditional writes, so find-then-write runs under a
// process-wide mutex. Put updates the existing row in place and only appends
// when the user has no row, which keeps one row per user.
type CredentialStore struct {
	svc           *sheets.Service
	spreadsheetID string
	sheetName     string

	mu sync.Mutex
}

func NewCredentialStore(svc *sheets.Service, spreadsheetID, sheetName string) *CredentialStore {
	if sheetName == "" {
		sheetName = DefaultTokensSheet
	}
	return &CredentialStore{
		svc:           svc,
		spreadsheetID: spreadsheetID,
		sheetName:     sheetName,
	}
}

func (s *CredentialStore) tableRange() string {
	return s.sheetName + "!A:" + tokensLastColumn
}

// findRow returns the 1-based row number holding userID, or 0.
func (s *CredentialStore) findRow(ctx context.Context, userID string) (int, []interface{}, error) {
	resp, err := s.svc.Spreadsheets.Values.Get(s.spreadsheetID, s.tableRange()).
		ValueRenderOption("UNFORMATTED_VALUE").
		Context(ctx).
		Do()
	if err != nil {
		return 0, nil, fmt.Errorf("read %s: %w", s.tableRange(), err)
	}

	for i, row := range resp.Values {
		if cellString(row, 0) == userID {
			return i + 1, row, nil
		}
	}
	return 0, nil, nil
}

func (s *CredentialStore) Get(ctx context.Context, userID string) (*credentials.Record, error) {
	_, row, err := s.findRow(ctx, userID)
	if err != nil {
		return nil, err
	}
	if row == nil {
		return nil, credentials.ErrNotFound
	}

	expiresAt, err := cellInt64(row, 3)
	if err != nil {
		return nil, fmt.Errorf("row for %s: %w", userID, err)
	}

	return &credentials.Record{
		UserID:            userID,
		AccessToken:       cellString(row, 1),
		RefreshToken:      cellString(row, 2),
		ExpiresAt:         expiresAt,
		ProviderAccountID: cellString(row, 4),
	}, nil
}

func (s *CredentialStore) Put(ctx context.Context, record *credentials.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rowNumber, _, err := s.findRow(ctx, record.UserID)
	if err != nil {
		return err
	}

	values := &sheets.ValueRange{
		Values: [][]interface{}{{
			record.UserID,
			record.AccessToken,
			record.RefreshToken,
			strconv.FormatInt(record.ExpiresAt, 10),
			record.ProviderAccountID,
		}},
	}

	if rowNumber > 0 {
		_, err = s.svc.Spreadsheets.Values.Update(s.spreadsheetID, rowRange(s.sheetName, rowNumber, tokensLastColumn), values).
			ValueInputOption("RAW").
			Context(ctx).
			Do()
		if err != nil {
			return fmt.Errorf("update row %d: %w", rowNumber, err)
		}
		return nil
	}

	_, err = s.svc.Spreadsheets.Values.Append(s.spreadsheetID, s.tableRange(), values).
		ValueInputOption("RAW").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).
		Do()
	if err != nil {
		return fmt.Errorf("append credential row: %w", err)
	}
	return nil
}

// Delete clears the user's row. Cleared rows are skipped by findRow.
func (s *CredentialStore) Delete(ctx context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rowNumber, _, err := s.findRow(ctx, userID)
	if err != nil {
		return err
	}
	if rowNumber == 0 {
		return nil
	}

	_, err = s.svc.Spreadsheets.Values.Clear(s.spreadsheetID, rowRange(s.sheetName, rowNumber, tokensLastColumn), &sheets.ClearValuesRequest{}).
		Context(ctx).
		Do()
	if err != nil {
		return fmt.Errorf("clear row %d: %w", rowNumber, err)
	}
	return nil
}
