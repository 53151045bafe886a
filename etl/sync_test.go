package etl

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mbolis/typeform-etl/app"
	"github.com/mbolis/typeform-etl/config"
	"github.com/mbolis/typeform-etl/database"
	"github.com/mbolis/typeform-etl/typeform"
)

// fakeTypeform serves a two-form account: Alpha with one completed and
// one abandoned response, Beta with none. The payloads are static, so
// every sync against it fetches the same data.
type fakeTypeform struct {
	// since values seen on responses requests, keyed by "form/completed"
	sinces map[string][]string
	// form IDs whose responses endpoint replies 500
	failResponses map[string]bool
}

func newFakeTypeform() *fakeTypeform {
	return &fakeTypeform{
		sinces:        map[string][]string{},
		failResponses: map[string]bool{},
	}
}

func (f *fakeTypeform) server(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()

	mux.HandleFunc("GET /forms", func(w http.ResponseWriter, r *http.Request) {
		// out of order on purpose
		fmt.Fprint(w, `{"total_items": 2, "page_count": 1, "items": [
			{"id": "f2", "title": "Beta", "last_updated_at": "2026-08-28T09:00:00Z",
				"_links": {"display": "https://example.typeform.com/to/f2"}},
			{"id": "f1", "title": "Alpha", "last_updated_at": "2026-08-27T09:00:00Z",
				"_links": {"display": "https://example.typeform.com/to/f1"}}]}`)
	})

	mux.HandleFunc("GET /forms/{id}", func(w http.ResponseWriter, r *http.Request) {
		switch r.PathValue("id") {
		case "f1":
			fmt.Fprint(w, `{"id": "f1", "title": "Alpha",
				"workspace": {"href": "https://api.typeform.com/workspaces/ws0001"},
				"hidden": ["campaign"],
				"fields": [{"id": "fld1", "ref": "name", "type": "short_text", "title": "Name"}]}`)
		case "f2":
			fmt.Fprint(w, `{"id": "f2", "title": "Beta",
				"workspace": {"href": "https://api.typeform.com/workspaces/ws0002"},
				"fields": [{"id": "fld2", "ref": "score", "type": "opinion_scale", "title": "Score"}]}`)
		default:
			w.WriteHeader(http.StatusNotFound)
			fmt.Fprint(w, `{"code": "FORM_NOT_FOUND"}`)
		}
	})

	mux.HandleFunc("GET /forms/{id}/responses", func(w http.ResponseWriter, r *http.Request) {
		formID := r.PathValue("id")
		completed := r.URL.Query().Get("completed")
		f.sinces[formID+"/"+completed] = append(f.sinces[formID+"/"+completed], r.URL.Query().Get("since"))

		if f.failResponses[formID] {
			w.WriteHeader(http.StatusInternalServerError)
			fmt.Fprint(w, `{"code": "INTERNAL", "description": "boom"}`)
			return
		}

		switch formID + "/" + completed {
		case "f1/true":
			fmt.Fprint(w, `{"total_items": 1, "page_count": 1, "items": [
				{"response_id": "r1", "token": "r1",
					"landed_at": "2026-08-29T10:00:00Z", "submitted_at": "2026-08-29T10:05:00Z",
					"metadata": {"user_agent": "Mozilla/5.0", "referer": "https://example.com", "network_id": "d3adb33f"},
					"hidden": {"campaign": "spring"},
					"answers": [{"field": {"id": "fld1", "type": "short_text", "ref": "name"}, "type": "text", "text": "Alice"}]}]}`)
		case "f1/false":
			fmt.Fprint(w, `{"total_items": 1, "page_count": 1, "items": [
				{"response_id": "r2", "token": "r2",
					"landed_at": "2026-08-29T10:06:00Z",
					"metadata": {"user_agent": "curl/8.0", "referer": ""}}]}`)
		default:
			fmt.Fprint(w, `{"total_items": 0, "page_count": 0, "items": []}`)
		}
	})

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func newTestApp(t *testing.T, baseURL string, cfg config.Config) app.App {
	t.Helper()
	cfg.Token = "tkn"
	cfg.DBUrl = filepath.Join(t.TempDir(), "etl.db")
	cfg.TablePrefix = "tf_"

	db, dialect, err := database.Open(context.Background(), cfg)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	return app.App{
		DB:      db,
		Dialect: dialect,
		Client:  typeform.NewClient(typeform.ClientOptions{Token: cfg.Token, BaseURL: baseURL}),
		Config:  cfg,
	}
}

func count(t *testing.T, a app.App, table string) int {
	t.Helper()
	var n int
	require.NoError(t, a.DB.QueryRow("SELECT count(*) FROM tf_"+table).Scan(&n))
	return n
}

func TestSyncerRun(t *testing.T) {
	fake := newFakeTypeform()
	a := newTestApp(t, fake.server(t).URL, config.Config{})
	syncer := NewSyncer(a)

	stats, err := syncer.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, 2, stats.Forms)
	require.Equal(t, 3, stats.FormItems)
	require.Equal(t, 2, stats.Responses)
	require.Equal(t, 2, stats.Answers)

	t.Run("rows are merged into the destination", func(t *testing.T) {
		require.Equal(t, 2, count(t, a, "forms"))
		require.Equal(t, 3, count(t, a, "form_items"))
		require.Equal(t, 2, count(t, a, "responses"))
		require.Equal(t, 2, count(t, a, "answers"))

		var workspace string
		require.NoError(t, a.DB.QueryRow(`SELECT workspace FROM tf_forms WHERE id = 'f1'`).Scan(&workspace))
		require.Equal(t, "ws0001", workspace)

		var answer string
		require.NoError(t, a.DB.QueryRow(
			`SELECT answer FROM tf_answers WHERE response = 'r1' AND data_type_hint = 'hidden'`).Scan(&answer))
		require.Equal(t, "spring", answer)
	})

	t.Run("watermark marker and synclog are written", func(t *testing.T) {
		var value string
		require.NoError(t, a.DB.QueryRow(
			`SELECT value FROM tf_options WHERE name = 'typeform_last'`).Scan(&value))
		require.Equal(t, "2026-08-29 10:06:00", value)

		var version string
		var responses int
		require.NoError(t, a.DB.QueryRow(
			`SELECT version, responses FROM tf_synclog`).Scan(&version, &responses))
		require.Equal(t, Version, version)
		require.Equal(t, 2, responses)
	})

	t.Run("first run starts from the epoch", func(t *testing.T) {
		require.Equal(t, "1970-01-01T00:00:00", fake.sinces["f1/true"][0])
		require.Equal(t, "1970-01-01T00:00:00", fake.sinces["f1/false"][0])
	})

	t.Run("second run is incremental and idempotent", func(t *testing.T) {
		stats, err := syncer.Run(context.Background())
		require.NoError(t, err)
		require.Equal(t, 2, stats.Responses)

		// bounds come from the stored rows, one per completion state
		sinces := fake.sinces["f1/false"]
		require.Equal(t, "2026-08-29T10:06:00", sinces[len(sinces)-1])
		sinces = fake.sinces["f1/true"]
		require.Equal(t, "2026-08-29T10:05:00", sinces[len(sinces)-1])

		require.Equal(t, 2, count(t, a, "responses"))
		require.Equal(t, 2, count(t, a, "answers"))
		require.Equal(t, 2, count(t, a, "synclog"))
	})

	t.Run("restart rewinds to the epoch", func(t *testing.T) {
		a := a
		a.Restart = true
		_, err := NewSyncer(a).Run(context.Background())
		require.NoError(t, err)

		sinces := fake.sinces["f1/true"]
		require.Equal(t, "1970-01-01T00:00:00", sinces[len(sinces)-1])
	})
}

func TestSyncerDryRun(t *testing.T) {
	fake := newFakeTypeform()
	a := newTestApp(t, fake.server(t).URL, config.Config{DryRun: true})

	stats, err := NewSyncer(a).Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, 2, stats.Forms)
	require.Equal(t, 2, stats.Responses)

	// everything fetched and counted, nothing written
	require.Equal(t, 0, count(t, a, "forms"))
	require.Equal(t, 0, count(t, a, "responses"))
	require.Equal(t, 0, count(t, a, "synclog"))
	var n int
	require.NoError(t, a.DB.QueryRow(`SELECT count(*) FROM tf_options`).Scan(&n))
	require.Equal(t, 0, n)
}

func TestSyncerFetchFailureLeavesDestinationUntouched(t *testing.T) {
	fake := newFakeTypeform()
	fake.failResponses["f2"] = true
	a := newTestApp(t, fake.server(t).URL, config.Config{})

	_, err := NewSyncer(a).Run(context.Background())
	var apiErr *typeform.APIError
	require.ErrorAs(t, err, &apiErr)
	require.Equal(t, "f2", apiErr.FormID)

	require.Equal(t, 0, count(t, a, "forms"))
	require.Equal(t, 0, count(t, a, "responses"))
	require.Equal(t, 0, count(t, a, "synclog"))
}
