package views

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tgienger/taskies/internal/app"
	"github.com/tgienger/taskies/internal/config"
	"github.com/tgienger/taskies/internal/gateway"
)

// dashboardApp serves two projects and tasks spread across both
func dashboardApp(t *testing.T) *app.App {
	t.Helper()
	r := mux.NewRouter()
	r.HandleFunc("/rest/v1/projects", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode([]gateway.ProjectRow{
			{ID: "p1", Name: "Launch", Status: "active", Priority: "high"},
			{ID: "p2", Name: "Hiring", Status: "on-hold", Priority: "low"},
		})
	}).Methods(http.MethodGet)
	r.HandleFunc("/rest/v1/tasks", func(w http.ResponseWriter, req *http.Request) {
		rows := []gateway.TaskRow{
			{ID: "t1", ProjectID: "p1", Title: "Draft brief", Status: "todo"},
			{ID: "t2", ProjectID: "p1", Title: "Ship it", Status: "completed", Progress: 100},
			{ID: "t3", ProjectID: "p2", Title: "Post role", Status: "in-progress"},
		}
		if req.URL.Query().Get("project_id") == "eq.p1" {
			rows = rows[:2]
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(rows)
	}).Methods(http.MethodGet)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)

	cfg := config.Default()
	cfg.GatewayURL = srv.URL
	cfg.AnonKey = "anon"
	cfg.CacheBackend = config.BackendFile
	cfg.CachePath = t.TempDir()

	l := logrus.New()
	l.Out = io.Discard
	a, err := app.New(cfg, app.WithLogger(l), app.WithGatewayOptions(gateway.WithHTTPClient(srv.Client())))
	require.NoError(t, err)
	t.Cleanup(func() { a.Close() })
	return a
}

func TestProjectStatsCoverEveryProject(t *testing.T) {
	a := dashboardApp(t)
	ctx := context.Background()

	// the cache only holds one project's tasks, as after leaving its task view
	_, err := a.Tasks.FetchTasks(ctx, "p1", "")
	require.NoError(t, err)
	require.Len(t, a.Tasks.Tasks(), 2)

	v := NewProjectListView(ctx, a)
	v.Update(v.loadProjects())
	v.Update(v.loadTasks())

	assert.Equal(t, 2, v.stats.TotalProjects)
	assert.Equal(t, 1, v.stats.ActiveProjects)
	assert.Equal(t, 3, v.stats.TotalTasks)
	assert.Equal(t, 1, v.stats.CompletedTasks)
	assert.Equal(t, 1, v.stats.TasksInProgress)
	assert.Equal(t, 33, v.stats.WeeklyProgress)

	// narrowing the task cache again does not shrink the summary
	_, err = a.Tasks.FetchTasks(ctx, "p1", "")
	require.NoError(t, err)
	v.Update(projectChangedMsg{})
	assert.Equal(t, 3, v.stats.TotalTasks)
}

func TestProjectStatsKeepSnapshotWhenOffline(t *testing.T) {
	a := offlineApp(t)
	seedTasks(t, a,
		`{"id":"t1","project_id":"p1","title":"Draft brief","status":"todo"}`,
		`{"id":"t3","project_id":"p2","title":"Post role","status":"completed"}`,
	)

	v := NewProjectListView(context.Background(), a)
	assert.Nil(t, v.loadTasks())
	v.Update(v.loadProjects())
	assert.Equal(t, 2, v.stats.TotalTasks)
	assert.Equal(t, 50, v.stats.WeeklyProgress)
	assert.NotEmpty(t, v.err)
}
