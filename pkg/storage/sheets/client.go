// Package sheets stores credentials and the activity log in a Google
// spreadsheet, the layout the bot has always used: one "Tokens" tab keyed by
// chat id and one append-only "Activities" tab.
package sheets

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/oauth2/google"
	"golang.org/x/oauth2/jwt"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"
)

// Config for the service-account connection.
type Config struct {
	SpreadsheetID string
	ClientEmail   string
	PrivateKey    string
}

// NewService builds a Sheets client. With ClientEmail and PrivateKey set it
// signs as that service account; otherwise Application Default Credentials
// are used.
func NewService(ctx context.Context, cfg Config, opts ...option.ClientOption) (*sheets.Service, error) {
	if cfg.ClientEmail != "" && cfg.PrivateKey != "" {
		conf := &jwt.Config{
			Email:      cfg.ClientEmail,
			PrivateKey: []byte(normalizePrivateKey(cfg.PrivateKey)),
			Scopes:     []string{sheets.SpreadsheetsScope},
			TokenURL:   google.JWTTokenURL,
		}
		opts = append(opts, option.WithHTTPClient(conf.Client(ctx)))
	} else {
		opts = append(opts, option.WithScopes(sheets.SpreadsheetsScope))
	}

	svc, err := sheets.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("sheets init: %w", err)
	}
	return svc, nil
}

// normalizePrivateKey turns literal "\n" sequences (how keys survive being
// pasted into env vars) back into newlines.
func normalizePrivateKey(key string) string {
	if strings.Contains(key, `\n`) {
		return strings.ReplaceAll(key, `\n`, "\n")
	}
	return key
}

// cellString renders a cell read with UNFORMATTED_VALUE. Rows typed in by
// hand come back as numbers, so chat ids and expiries may be float64.
func cellString(row []interface{}, i int) string {
	if i >= len(row) {
		return ""
	}
	switch v := row[i].(type) {
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case nil:
		return ""
	default:
		return fmt.Sprint(v)
	}
}

func cellInt64(row []interface{}, i int) (int64, error) {
	s := cellString(row, i)
	if s == "" {
		return 0, nil
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid integer cell %q: %w", s, err)
	}
	return int64(f), nil
}

// rowRange returns the A1 range covering a single row, e.g. "Tokens!A3:E3".
func rowRange(sheetName string, row int, lastCol string) string {
	return fmt.Sprintf("%s!A%d:%s%d", sheetName, row, lastCol, row)
}
