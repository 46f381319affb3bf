package mirror

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/mdmirror/mdmirror/internal/auth"
	"github.com/mdmirror/mdmirror/internal/hackmd"
	"github.com/mdmirror/mdmirror/internal/session"
	"github.com/mdmirror/mdmirror/internal/store/file"
)

const landingPage = `<meta name="csrf-token" content="tok">`

// hackmdStub emulates the remote surface: landing page, login,
// overview, and per-document download endpoints.
type hackmdStub struct {
	mux       *http.ServeMux
	requests  atomic.Int64
	failPages map[string]bool
}

func newHackMDStub(pages int, failPages map[string]bool) *hackmdStub {
	s := &hackmdStub{mux: http.NewServeMux(), failPages: failPages}

	s.mux.HandleFunc("/{$}", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(landingPage))
	})
	s.mux.HandleFunc("/login", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-Xsrf-Token") != "tok" {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		http.SetCookie(w, &http.Cookie{Name: "sid", Value: "session", Path: "/"})
	})
	s.mux.HandleFunc("/api/overview/team/", func(w http.ResponseWriter, r *http.Request) {
		if !authenticated(r) {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_, _ = w.Write([]byte(listingJSON(pages)))
	})
	s.mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if !authenticated(r) {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		id := filepath.Base(filepath.Dir(r.URL.Path))
		if s.failPages[id] {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		_, _ = fmt.Fprintf(w, "content of %s", id)
	})
	return s
}

func (s *hackmdStub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.requests.Add(1)
	s.mux.ServeHTTP(w, r)
}

func authenticated(r *http.Request) bool {
	cookie, err := r.Cookie("sid")
	return err == nil && cookie.Value == "session"
}

func listingJSON(n int) string {
	out := "["
	for i := 0; i < n; i++ {
		if i > 0 {
			out += ","
		}
		out += fmt.Sprintf(`{"id":"doc-%02d","title":"Doc %d","lastchangeAt":"2023-01-0%dT00:00:00.000Z"}`, i, i, i%9+1)
	}
	return out + "]"
}

func newRunner(t *testing.T, opts Options) (*Runner, hackmd.Store) {
	t.Helper()
	client, err := session.New(session.Config{
		Timeout:        5 * time.Second,
		MaxRetries:     0,
		BackoffInitial: time.Millisecond,
		BackoffMax:     time.Millisecond,
	}, zap.NewNop())
	require.NoError(t, err)

	store, err := file.New(opts.SnapshotPath, zap.NewNop())
	require.NoError(t, err)

	creds := auth.StaticProvider{Creds: hackmd.Credentials{Email: "u@example.com", Password: "pw"}}
	return NewRunner(opts, client, store, creds, zap.NewNop()), store
}

func TestRunBuildsAndPersists(t *testing.T) {
	t.Parallel()

	stub := newHackMDStub(4, nil)
	srv := httptest.NewServer(stub)
	defer srv.Close()

	path := filepath.Join(t.TempDir(), "hackmd.json")
	r, store := newRunner(t, Options{
		ServerURL:    srv.URL,
		Team:         "platform",
		SnapshotPath: path,
		Concurrency:  5,
	})

	pages, summary, err := r.Run(context.Background())
	require.NoError(t, err)
	require.NotNil(t, summary)
	require.Equal(t, 4, summary.Pages)
	require.Equal(t, 4, summary.Downloaded)
	require.Zero(t, summary.Failed)

	require.Len(t, pages, 4)
	for i, p := range pages {
		require.Equal(t, fmt.Sprintf("doc-%02d", i), p.ID, "listing order preserved")
		require.True(t, p.HasContent())
		require.Equal(t, fmt.Sprintf("content of doc-%02d", i), *p.Content)
	}

	persisted, err := store.Load(context.Background())
	require.NoError(t, err)
	require.Equal(t, pages, persisted)
}

func TestRunAbsorbsPerDocumentFailures(t *testing.T) {
	t.Parallel()

	stub := newHackMDStub(3, map[string]bool{"doc-01": true})
	srv := httptest.NewServer(stub)
	defer srv.Close()

	path := filepath.Join(t.TempDir(), "hackmd.json")
	r, _ := newRunner(t, Options{
		ServerURL:    srv.URL,
		Team:         "platform",
		SnapshotPath: path,
		Concurrency:  5,
	})

	pages, summary, err := r.Run(context.Background())
	require.NoError(t, err, "a single download failure never fails the run")
	require.Equal(t, 1, summary.Failed)
	require.Equal(t, 2, summary.Downloaded)

	require.True(t, pages[0].HasContent())
	require.False(t, pages[1].HasContent(), "only the failed page lacks content")
	require.True(t, pages[2].HasContent())
}

func TestRunLoadModeSkipsNetwork(t *testing.T) {
	t.Parallel()

	stub := newHackMDStub(0, nil)
	srv := httptest.NewServer(stub)
	defer srv.Close()

	path := filepath.Join(t.TempDir(), "hackmd.json")
	store, err := file.New(path, zap.NewNop())
	require.NoError(t, err)
	body := "cached"
	seed := hackmd.PageList{{ID: "x", Title: "X", Content: &body}}
	require.NoError(t, store.Save(context.Background(), seed))

	r, _ := newRunner(t, Options{
		ServerURL:    srv.URL,
		SnapshotPath: path,
	})

	pages, summary, err := r.Run(context.Background())
	require.NoError(t, err)
	require.Nil(t, summary, "load mode produces no build summary")
	require.Equal(t, seed, pages)
	require.Zero(t, stub.requests.Load(), "load mode makes no network calls")
}

func TestRunUpdateForcesRebuild(t *testing.T) {
	t.Parallel()

	stub := newHackMDStub(1, nil)
	srv := httptest.NewServer(stub)
	defer srv.Close()

	path := filepath.Join(t.TempDir(), "hackmd.json")
	store, err := file.New(path, zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, store.Save(context.Background(), hackmd.PageList{{ID: "stale"}}))

	r, _ := newRunner(t, Options{
		ServerURL:    srv.URL,
		Team:         "platform",
		SnapshotPath: path,
		Update:       true,
		Concurrency:  5,
	})

	pages, summary, err := r.Run(context.Background())
	require.NoError(t, err)
	require.NotNil(t, summary)
	require.Len(t, pages, 1)
	require.Equal(t, "doc-00", pages[0].ID)
}

// failingCreds marks the test as failed if the pipeline ever prompts.
type failingCreds struct{ t *testing.T }

func (f failingCreds) Credentials(context.Context) (hackmd.Credentials, error) {
	f.t.Fatal("credentials must not be requested")
	return hackmd.Credentials{}, nil
}

func TestRunMissingSnapshotPath(t *testing.T) {
	t.Parallel()

	client, err := session.New(session.Config{}, zap.NewNop())
	require.NoError(t, err)
	store, err := file.New(filepath.Join(t.TempDir(), "hackmd.json"), zap.NewNop())
	require.NoError(t, err)

	for _, update := range []bool{false, true} {
		r := NewRunner(Options{Team: "platform", Update: update}, client, store, failingCreds{t}, zap.NewNop())
		_, _, err = r.Run(context.Background())
		require.ErrorIs(t, err, hackmd.ErrMissingArgument)
		require.ErrorContains(t, err, "--snapshot")
	}
}

func TestRunMissingTeamInBuildMode(t *testing.T) {
	t.Parallel()

	stub := newHackMDStub(0, nil)
	srv := httptest.NewServer(stub)
	defer srv.Close()

	path := filepath.Join(t.TempDir(), "hackmd.json")
	client, err := session.New(session.Config{}, zap.NewNop())
	require.NoError(t, err)
	store, err := file.New(path, zap.NewNop())
	require.NoError(t, err)

	r := NewRunner(Options{
		ServerURL:    srv.URL,
		SnapshotPath: path,
	}, client, store, failingCreds{t}, zap.NewNop())

	_, _, err = r.Run(context.Background())
	require.ErrorIs(t, err, hackmd.ErrMissingArgument)
	require.ErrorContains(t, err, "--team")
	require.Zero(t, stub.requests.Load(), "no network before the argument check")
}

func TestRunLoginFailureAbortsBeforePersistence(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	mux.HandleFunc("/{$}", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(landingPage))
	})
	mux.HandleFunc("/login", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	path := filepath.Join(t.TempDir(), "hackmd.json")
	r, store := newRunner(t, Options{
		ServerURL:    srv.URL,
		Team:         "platform",
		SnapshotPath: path,
		Concurrency:  5,
	})

	_, _, err := r.Run(context.Background())
	require.ErrorIs(t, err, hackmd.ErrLoginFailed)

	exists, err := store.Exists(context.Background())
	require.NoError(t, err)
	require.False(t, exists, "no partial snapshot after a fatal failure")
}
