package meili

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/mdmirror/mdmirror/internal/config"
	"github.com/mdmirror/mdmirror/internal/hackmd"
)

// meiliStub fakes just enough of the Meilisearch REST surface for the
// publisher: health, index lookup and creation, document upsert, tasks.
type meiliStub struct {
	mu           sync.Mutex
	indexExists  bool
	healthy      bool
	taskStatus   string
	createdIndex map[string]string
	documents    []hackmd.Page
	docPrimary   string
}

func newMeiliStub(indexExists bool) *meiliStub {
	return &meiliStub{indexExists: indexExists, healthy: true, taskStatus: "succeeded"}
}

func (m *meiliStub) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, _ *http.Request) {
		m.mu.Lock()
		healthy := m.healthy
		m.mu.Unlock()
		if !healthy {
			http.Error(w, `{"status":"unavailable"}`, http.StatusServiceUnavailable)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "available"})
	})
	mux.HandleFunc("GET /indexes/{uid}", func(w http.ResponseWriter, r *http.Request) {
		m.mu.Lock()
		exists := m.indexExists
		m.mu.Unlock()
		if !exists {
			writeJSON(w, http.StatusNotFound, map[string]string{
				"message": "Index `" + r.PathValue("uid") + "` not found.",
				"code":    "index_not_found",
				"type":    "invalid_request",
			})
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"uid": r.PathValue("uid"), "primaryKey": "id"})
	})
	mux.HandleFunc("POST /indexes", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		_ = json.NewDecoder(r.Body).Decode(&body)
		m.mu.Lock()
		m.createdIndex = body
		m.indexExists = true
		m.mu.Unlock()
		writeJSON(w, http.StatusAccepted, map[string]any{
			"taskUid": 1, "indexUid": body["uid"], "status": "enqueued", "type": "indexCreation",
		})
	})
	mux.HandleFunc("POST /indexes/{uid}/documents", func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		var docs []hackmd.Page
		_ = json.Unmarshal(raw, &docs)
		m.mu.Lock()
		m.documents = docs
		m.docPrimary = r.URL.Query().Get("primaryKey")
		m.mu.Unlock()
		writeJSON(w, http.StatusAccepted, map[string]any{
			"taskUid": 2, "indexUid": r.PathValue("uid"), "status": "enqueued", "type": "documentAdditionOrUpdate",
		})
	})
	mux.HandleFunc("GET /tasks/{uid}", func(w http.ResponseWriter, r *http.Request) {
		m.mu.Lock()
		status := m.taskStatus
		m.mu.Unlock()
		writeJSON(w, http.StatusOK, map[string]any{
			"uid": 2, "status": status, "type": "documentAdditionOrUpdate",
		})
	})
	return mux
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func newPublisher(t *testing.T, stub *meiliStub) *Publisher {
	t.Helper()
	srv := httptest.NewServer(stub.handler())
	t.Cleanup(srv.Close)
	return New(config.SearchConfig{URL: srv.URL, APIKey: "masterKey", Index: "pages"}, zap.NewNop())
}

func TestPublishToExistingIndex(t *testing.T) {
	t.Parallel()

	stub := newMeiliStub(true)
	p := newPublisher(t, stub)

	body := "# notes"
	pages := hackmd.PageList{
		{ID: "a", Title: "Alpha", Content: &body},
		{ID: "b", Title: "Beta"},
	}
	require.NoError(t, p.Publish(context.Background(), pages))

	stub.mu.Lock()
	defer stub.mu.Unlock()
	require.Nil(t, stub.createdIndex, "existing index is not recreated")
	require.Equal(t, "id", stub.docPrimary)
	require.Len(t, stub.documents, 2)
	require.Equal(t, "a", stub.documents[0].ID)
	require.False(t, stub.documents[1].HasContent(), "pages without content are indexed with null content")
}

func TestPublishCreatesMissingIndex(t *testing.T) {
	t.Parallel()

	stub := newMeiliStub(false)
	p := newPublisher(t, stub)

	require.NoError(t, p.Publish(context.Background(), hackmd.PageList{{ID: "a", Title: "Alpha"}}))

	stub.mu.Lock()
	defer stub.mu.Unlock()
	require.Equal(t, map[string]string{"uid": "pages", "primaryKey": "id"}, stub.createdIndex)
	require.Len(t, stub.documents, 1)
}

func TestPublishHealthFailure(t *testing.T) {
	t.Parallel()

	stub := newMeiliStub(true)
	stub.healthy = false
	p := newPublisher(t, stub)

	err := p.Publish(context.Background(), hackmd.PageList{})
	require.ErrorContains(t, err, "meilisearch health")
}

func TestPublishFailedTask(t *testing.T) {
	t.Parallel()

	stub := newMeiliStub(true)
	stub.taskStatus = "failed"
	p := newPublisher(t, stub)

	err := p.Publish(context.Background(), hackmd.PageList{{ID: "a"}})
	require.ErrorContains(t, err, "status failed")
}
