package server

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stepchain/stepchain/collaborator"
	"github.com/stepchain/stepchain/config"
	"github.com/stepchain/stepchain/notify"
	"github.com/stepchain/stepchain/pipeline"
	"github.com/stepchain/stepchain/runstore"
)

func testPipeline(t *testing.T) *pipeline.Definition {
	t.Helper()
	def, err := pipeline.NewBuilder("echo-pipeline").
		RequireInput("requirement").
		Invoke("Echo", "echo",
			pipeline.NewTemplate(pipeline.FromInput("requirement", "requirement")),
			"echo_result", "requirement", "status").
		Build()
	require.NoError(t, err)
	return def
}

func newTestServer(t *testing.T) (*Server, *runstore.MemoryStore) {
	t.Helper()

	collaborators := collaborator.NewRegistry()
	require.NoError(t, collaborators.RegisterCollaborator(collaborator.NewMock("echo")))
	store := runstore.NewMemoryStore()

	engine := pipeline.NewEngine(&pipeline.EngineConfig{
		Collaborators: collaborators,
		Notifiers:     notify.NewRegistry(),
		Store:         store,
		Environment:   "test",
	})

	pipelines := pipeline.NewRegistry()
	require.NoError(t, pipelines.RegisterDefinition(testPipeline(t)))

	manager := NewRunManager(&RunManagerConfig{
		Engine:    engine,
		Pipelines: pipelines,
		Store:     store,
	})

	srv := New(&Config{
		Server:  config.ServerConfig{Host: "127.0.0.1", Port: 0},
		Manager: manager,
	})
	return srv, store
}

func TestTriggerAndPoll(t *testing.T) {
	srv, store := newTestServer(t)
	handler := srv.Handler()

	body := bytes.NewBufferString(`{"requirement": "manage household budget"}`)
	req := httptest.NewRequest(http.MethodPost, "/pipelines/echo-pipeline/runs", body)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	var created map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	runID := created["run_id"]
	require.NotEmpty(t, runID)
	assert.Equal(t, "echo-pipeline", created["pipeline"])

	// The run finishes in the background; poll until archived
	require.Eventually(t, func() bool {
		_, err := store.Get(context.Background(), runID)
		return err == nil
	}, 5*time.Second, 10*time.Millisecond)

	req = httptest.NewRequest(http.MethodGet, "/runs/"+runID, nil)
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var view RunStatusView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &view))
	assert.Equal(t, "succeeded", view.Status)
	assert.Equal(t, "echo-pipeline", view.Pipeline)
	assert.Contains(t, view.Context, "step_results")
}

func TestTriggerUnknownPipeline(t *testing.T) {
	srv, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/pipelines/nope/runs",
		strings.NewReader(`{}`))
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "unknown pipeline")
}

func TestTriggerMissingInput(t *testing.T) {
	srv, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/pipelines/echo-pipeline/runs",
		strings.NewReader(`{}`))
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "required input field 'requirement' missing")
}

func TestRunStatusNotFound(t *testing.T) {
	srv, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/runs/does-not-exist", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestListPipelines(t *testing.T) {
	srv, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/pipelines", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string][]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, []string{"echo-pipeline"}, body["pipelines"])
}

func TestListRuns(t *testing.T) {
	srv, store := newTestServer(t)
	handler := srv.Handler()

	require.NoError(t, store.Save(context.Background(), &runstore.Record{
		RunID:      "run-old",
		Pipeline:   "echo-pipeline",
		Status:     "failed",
		FinishedAt: time.Now().UTC(),
	}))

	req := httptest.NewRequest(http.MethodGet, "/runs?pipeline=echo-pipeline", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string][]RunStatusView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body["runs"], 1)
	assert.Equal(t, "run-old", body["runs"][0].RunID)
}

func TestTriggerAtCapacity(t *testing.T) {
	release := make(chan struct{})
	collaborators := collaborator.NewRegistry()
	require.NoError(t, collaborators.RegisterCollaborator(collaborator.NewFunc("echo",
		func(_ context.Context, payload map[string]interface{}) (map[string]interface{}, error) {
			<-release
			return map[string]interface{}{
				"requirement": payload["requirement"],
				"status":      "success",
			}, nil
		})))

	store := runstore.NewMemoryStore()
	engine := pipeline.NewEngine(&pipeline.EngineConfig{
		Collaborators: collaborators,
		Notifiers:     notify.NewRegistry(),
		Store:         store,
		Environment:   "test",
	})

	pipelines := pipeline.NewRegistry()
	require.NoError(t, pipelines.RegisterDefinition(testPipeline(t)))

	manager := NewRunManager(&RunManagerConfig{
		Engine:            engine,
		Pipelines:         pipelines,
		Store:             store,
		MaxConcurrentRuns: 1,
	})
	srv := New(&Config{Manager: manager})
	handler := srv.Handler()

	trigger := func() *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/pipelines/echo-pipeline/runs",
			strings.NewReader(`{"requirement": "manage household budget"}`))
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec
	}

	first := trigger()
	require.Equal(t, http.StatusCreated, first.Code)

	// The single slot is occupied; the next trigger is rejected, not queued
	second := trigger()
	assert.Equal(t, http.StatusServiceUnavailable, second.Code)
	assert.Contains(t, second.Body.String(), "capacity")

	close(release)
	require.NoError(t, manager.Wait())

	third := trigger()
	assert.Equal(t, http.StatusCreated, third.Code)
	require.NoError(t, manager.Wait())
}

func TestWriteJSONEncodeFailureLogged(t *testing.T) {
	var logs bytes.Buffer
	srv := New(&Config{Logger: slog.New(slog.NewTextHandler(&logs, nil))})

	rec := httptest.NewRecorder()
	srv.writeJSON(rec, http.StatusOK, map[string]interface{}{"bad": make(chan int)})

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, logs.String(), "response encoding failed")
}

func TestHealthz(t *testing.T) {
	srv, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"ok"`)
}
