package ingest

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/sells-group/ahj-registry/internal/fetcher"
	"github.com/sells-group/ahj-registry/internal/model"
	"github.com/sells-group/ahj-registry/internal/resilience"
	"github.com/sells-group/ahj-registry/internal/store"
)

func newTestStore(t *testing.T) *store.SQLiteStore {
	t.Helper()
	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "ingest.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))
	return st
}

// newTestFetcher returns a fetcher that never sleeps between attempts.
func newTestFetcher() *fetcher.HTTPFetcher {
	return fetcher.NewHTTPFetcher(fetcher.HTTPOptions{
		Timeout:    5 * time.Second,
		MaxRetries: 1,
		Retry: &resilience.RetryConfig{
			MaxAttempts:    1,
			InitialBackoff: time.Millisecond,
			MaxBackoff:     time.Millisecond,
		},
	})
}

func serveHTML(t *testing.T, routes map[string]string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, ok := routes[r.URL.Path]
		if !ok {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write([]byte(body)) //nolint:errcheck
	}))
	t.Cleanup(srv.Close)
	return srv
}

// runSource executes src through a fresh engine and returns its summary.
func runSource(t *testing.T, st *store.SQLiteStore, src Source) Summary {
	t.Helper()
	sum, err := NewEngine(st).Run(context.Background(), src)
	require.NoError(t, err)
	return sum
}

// adoptionsFor returns adoptions keyed by "jurisdiction name/code key".
func adoptionsFor(t *testing.T, st *store.SQLiteStore) map[string]model.CodeAdoption {
	t.Helper()
	ctx := context.Background()
	js, err := st.ListJurisdictions(ctx)
	require.NoError(t, err)
	names := make(map[int64]string, len(js))
	for _, j := range js {
		names[j.ID] = j.Name
	}
	ads, err := st.ListAdoptions(ctx, true)
	require.NoError(t, err)
	out := make(map[string]model.CodeAdoption, len(ads))
	for _, a := range ads {
		out[names[a.JurisdictionID]+"/"+a.CodeKey] = a
	}
	return out
}
