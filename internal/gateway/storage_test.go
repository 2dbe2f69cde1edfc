package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUploadDownloadAndPublicURL(t *testing.T) {
	objects := map[string][]byte{}

	r := mux.NewRouter()
	r.HandleFunc("/storage/v1/object/{bucket}/{path:.*}", func(w http.ResponseWriter, req *http.Request) {
		vars := mux.Vars(req)
		assert.Equal(t, "attachments", vars["bucket"])
		assert.Equal(t, "text/plain", req.Header.Get("Content-Type"))
		assert.Equal(t, "false", req.Header.Get("x-upsert"))
		data, _ := io.ReadAll(req.Body)
		objects[vars["path"]] = data
		writeJSON(w, http.StatusOK, map[string]string{"Key": vars["bucket"] + "/" + vars["path"]})
	}).Methods(http.MethodPost)
	r.HandleFunc("/storage/v1/object/{bucket}/{path:.*}", func(w http.ResponseWriter, req *http.Request) {
		data, ok := objects[mux.Vars(req)["path"]]
		if !ok {
			writeJSON(w, http.StatusNotFound, map[string]string{"message": "Object not found"})
			return
		}
		_, _ = w.Write(data)
	}).Methods(http.MethodGet)

	c, srv := newTestClient(t, r, Config{})
	ctx := context.Background()

	require.NoError(t, c.Upload(ctx, "attachments", "t1/abc-notes.txt", "text/plain", strings.NewReader("hello")))
	assert.Equal(t, "hello", string(objects["t1/abc-notes.txt"]))

	data, err := c.Download(ctx, "attachments", "t1/abc-notes.txt")
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))

	_, err = c.Download(ctx, "attachments", "t1/missing.txt")
	assert.Equal(t, KindNotFound, KindOf(err))

	assert.Equal(t, srv.URL+"/storage/v1/object/public/attachments/t1/abc-notes.txt", c.PublicURL("attachments", "/t1/abc-notes.txt"))
}

func TestListAndRemove(t *testing.T) {
	r := mux.NewRouter()
	r.HandleFunc("/storage/v1/object/list/{bucket}", func(w http.ResponseWriter, req *http.Request) {
		var body map[string]any
		require.NoError(t, json.NewDecoder(req.Body).Decode(&body))
		assert.Equal(t, "t1/", body["prefix"])
		writeJSON(w, http.StatusOK, []ObjectInfo{{Name: "abc-notes.txt", ID: "o1"}})
	}).Methods(http.MethodPost)
	r.HandleFunc("/storage/v1/object/{bucket}", func(w http.ResponseWriter, req *http.Request) {
		var body struct {
			Prefixes []string `json:"prefixes"`
		}
		require.NoError(t, json.NewDecoder(req.Body).Decode(&body))
		assert.Equal(t, []string{"t1/abc-notes.txt"}, body.Prefixes)
		writeJSON(w, http.StatusOK, []ObjectInfo{})
	}).Methods(http.MethodDelete)

	c, _ := newTestClient(t, r, Config{})
	ctx := context.Background()

	objs, err := c.List(ctx, "attachments", "t1/")
	require.NoError(t, err)
	require.Len(t, objs, 1)
	assert.Equal(t, "abc-notes.txt", objs[0].Name)

	require.NoError(t, c.Remove(ctx, "attachments", "t1/abc-notes.txt"))
	require.NoError(t, c.Remove(ctx, "attachments"))
}

func TestSubscribeDeliversChanges(t *testing.T) {
	r := mux.NewRouter()
	r.HandleFunc("/realtime/v1/stream", func(w http.ResponseWriter, req *http.Request) {
		assert.Equal(t, "project:p1", req.URL.Query().Get("channel"))
		assert.Equal(t, []string{"tasks:project_id=eq.p1", "task_comments"}, req.URL.Query()["table"])
		assert.Equal(t, "text/event-stream", req.Header.Get("Accept"))

		w.Header().Set("Content-Type", "text/event-stream")
		w.WriteHeader(http.StatusOK)
		flusher := w.(http.Flusher)

		fmt.Fprint(w, ": keep-alive\n\n")
		fmt.Fprint(w, "event: presence\ndata: {\"type\":\"INSERT\"}\n\n")
		fmt.Fprint(w, "event: change\ndata: {\"type\":\"UPDATE\",\"table\":\"tasks\",\n")
		fmt.Fprint(w, "data: \"record\":{\"id\":\"t1\",\"title\":\"Ship\",\"status\":\"review\"}}\n\n")
		fmt.Fprint(w, "data: {\"type\":\"DELETE\",\"table\":\"task_comments\",\"old_record\":{\"id\":\"c1\",\"task_id\":\"t1\"}}\n\n")
		flusher.Flush()
		<-req.Context().Done()
	}).Methods(http.MethodGet)

	c, _ := newTestClient(t, r, Config{})
	got := make(chan Change, 4)
	sub, err := c.Subscribe(context.Background(), ProjectChannel("p1"), func(ch Change) { got <- ch })
	require.NoError(t, err)

	var changes []Change
	for len(changes) < 2 {
		select {
		case ch := <-got:
			changes = append(changes, ch)
		case <-time.After(5 * time.Second):
			t.Fatal("timed out waiting for changes")
		}
	}
	sub.Unsubscribe()
	assert.NoError(t, sub.Err())

	assert.Equal(t, ChangeUpdate, changes[0].Type)
	var task TaskRow
	require.NoError(t, changes[0].Decode(&task))
	assert.Equal(t, "review", task.Status)

	assert.Equal(t, ChangeDelete, changes[1].Type)
	var comment CommentRow
	require.NoError(t, changes[1].Decode(&comment))
	assert.Equal(t, "c1", comment.ID)
}

func TestSubscribeRejected(t *testing.T) {
	r := mux.NewRouter()
	r.HandleFunc("/realtime/v1/stream", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"msg": "JWT expired"})
	})

	c, _ := newTestClient(t, r, Config{})
	_, err := c.Subscribe(context.Background(), TableChannel("projects"), func(Change) {})
	require.Error(t, err)
	assert.Equal(t, KindAuth, KindOf(err))
}

func TestChannels(t *testing.T) {
	assert.Equal(t, Channel{Name: "public:projects", Filters: []TableFilter{{Table: "projects"}}}, TableChannel("projects"))

	ch := TaskChannel("t1")
	assert.Equal(t, "task:t1", ch.Name)
	assert.Equal(t, []TableFilter{
		{Table: "tasks", Filter: "id=eq.t1"},
		{Table: "task_comments", Filter: "task_id=eq.t1"},
	}, ch.Filters)
}
