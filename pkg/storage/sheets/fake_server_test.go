package sheets

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"
)

// fakeSheets serves the handful of values endpoints the stores use, backed
// by an in-memory grid per tab.
type fakeSheets struct {
	mu       sync.Mutex
	tabs     map[string][][]interface{}
	appends  int
	failNext bool
}

var singleRow = regexp.MustCompile(`^A(\d+):[A-Z]+\d+$`)

func newFakeSheets(t *testing.T) (*fakeSheets, *sheets.Service) {
	t.Helper()
	f := &fakeSheets{tabs: map[string][][]interface{}{}}
	srv := httptest.NewServer(f)
	t.Cleanup(srv.Close)

	svc, err := NewService(context.Background(), Config{},
		option.WithEndpoint(srv.URL+"/"),
		option.WithHTTPClient(srv.Client()),
	)
	require.NoError(t, err)
	return f, svc
}

func (f *fakeSheets) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.failNext {
		f.failNext = false
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"error":{"code":403,"message":"caller does not have permission"}}`))
		return
	}

	// /v4/spreadsheets/{id}/values/{range}[:verb]
	parts := strings.SplitN(r.URL.Path, "/values/", 2)
	if len(parts) != 2 {
		http.NotFound(w, r)
		return
	}
	rng, verb := parts[1], ""
	for _, v := range []string{":append", ":clear"} {
		if strings.HasSuffix(rng, v) {
			rng, verb = strings.TrimSuffix(rng, v), v
		}
	}
	tab, cells, _ := strings.Cut(rng, "!")

	switch {
	case r.Method == http.MethodGet:
		writeJSON(w, map[string]interface{}{"range": rng, "majorDimension": "ROWS", "values": f.tabs[tab]})

	case verb == ":append":
		var body sheets.ValueRange
		_ = json.NewDecoder(r.Body).Decode(&body)
		f.tabs[tab] = append(f.tabs[tab], body.Values...)
		f.appends++
		writeJSON(w, map[string]interface{}{"spreadsheetId": "sid"})

	case verb == ":clear":
		if n := rowIndex(cells); n > 0 && n <= len(f.tabs[tab]) {
			f.tabs[tab][n-1] = []interface{}{}
		}
		writeJSON(w, map[string]interface{}{"spreadsheetId": "sid", "clearedRange": rng})

	case r.Method == http.MethodPut:
		var body sheets.ValueRange
		_ = json.NewDecoder(r.Body).Decode(&body)
		n := rowIndex(cells)
		if n <= 0 || n > len(f.tabs[tab]) || len(body.Values) != 1 {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		f.tabs[tab][n-1] = body.Values[0]
		writeJSON(w, map[string]interface{}{"spreadsheetId": "sid", "updatedRows": 1})

	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func rowIndex(cells string) int {
	m := singleRow.FindStringSubmatch(cells)
	if m == nil {
		return 0
	}
	n, _ := strconv.Atoi(m[1])
	return n
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func (f *fakeSheets) rows(tab string) [][]interface{} {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.tabs[tab]
}

func (f *fakeSheets) seed(tab string, rows ...[]interface{}) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tabs[tab] = append(f.tabs[tab], rows...)
}
