package gateway

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"
)

// ChangeType is the kind of row change pushed by the realtime feed
type ChangeType string

const (
	ChangeInsert ChangeType = "INSERT"
	ChangeUpdate ChangeType = "UPDATE"
	ChangeDelete ChangeType = "DELETE"
)

// Change is one row change on a subscribed table
type Change struct {
	Type            ChangeType      `json:"type"`
	Table           string          `json:"table"`
	Record          json.RawMessage `json:"record"`
	OldRecord       json.RawMessage `json:"old_record"`
	CommitTimestamp time.Time       `json:"commit_timestamp"`
}

// Decode unmarshals the changed row into out. Deletes decode the old row.
func (ch Change) Decode(out any) error {
	raw := ch.Record
	if ch.Type == ChangeDelete || len(raw) == 0 || string(raw) == "null" {
		raw = ch.OldRecord
	}
	if len(raw) == 0 {
		return fmt.Errorf("%s change on %s carries no row", ch.Type, ch.Table)
	}
	return json.Unmarshal(raw, out)
}

// TableFilter selects changes of one table, optionally narrowed by a
// column filter such as "project_id=eq.42"
type TableFilter struct {
	Table  string
	Filter string
}

// Channel is a named set of table filters delivered over one stream
type Channel struct {
	Name    string
	Filters []TableFilter
}

// TableChannel follows every change of table
func TableChannel(table string) Channel {
	return Channel{Name: "public:" + table, Filters: []TableFilter{{Table: table}}}
}

// ProjectChannel follows the tasks of a project and all task comments
func ProjectChannel(projectID string) Channel {
	return Channel{
		Name: "project:" + projectID,
		Filters: []TableFilter{
			{Table: tasksTable, Filter: "project_id=eq." + projectID},
			{Table: commentsTable},
		},
	}
}

// TaskChannel follows one task and its comments
func TaskChannel(taskID string) Channel {
	return Channel{
		Name: "task:" + taskID,
		Filters: []TableFilter{
			{Table: tasksTable, Filter: "id=eq." + taskID},
			{Table: commentsTable, Filter: "task_id=eq." + taskID},
		},
	}
}

// Subscription is a live change stream
type Subscription struct {
	Channel Channel

	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once
	mu     sync.Mutex
	err    error
}

// Unsubscribe closes the stream and waits for the reader to stop
func (s *Subscription) Unsubscribe() {
	s.once.Do(s.cancel)
	<-s.done
}

// Done is closed once the stream has ended
func (s *Subscription) Done() <-chan struct{} { return s.done }

// Err returns why the stream ended, nil after Unsubscribe
func (s *Subscription) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Subscribe opens a change stream for ch and calls fn for every change until
// ctx is done or Unsubscribe is called. fn runs on the stream's goroutine.
func (c *Client) Subscribe(ctx context.Context, ch Channel, fn func(Change)) (*Subscription, error) {
	c.restoreSession()

	q := url.Values{"channel": {ch.Name}}
	for _, f := range ch.Filters {
		spec := f.Table
		if f.Filter != "" {
			spec += ":" + f.Filter
		}
		q.Add("table", spec)
	}
	u := *c.base
	u.Path = c.base.Path + "/realtime/v1/stream"
	u.RawQuery = q.Encode()

	streamCtx, cancel := context.WithCancel(ctx)
	res, err := c.breaker.Execute(func() (interface{}, error) {
		req, err := http.NewRequestWithContext(streamCtx, http.MethodGet, u.String(), nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("apikey", c.anonKey)
		req.Header.Set("Authorization", "Bearer "+c.bearer(false))
		req.Header.Set("Accept", "text/event-stream")

		// the stream outlives the request timeout of the regular client
		stream := &http.Client{Transport: c.http.Transport}
		resp, err := stream.Do(req)
		if err != nil {
			return nil, AsError(err)
		}
		if resp.StatusCode != http.StatusOK {
			body, _ := io.ReadAll(resp.Body)
			resp.Body.Close()
			return nil, responseError(resp.StatusCode, body)
		}
		return resp, nil
	})
	if err != nil {
		cancel()
		return nil, AsError(err)
	}
	resp := res.(*http.Response)

	sub := &Subscription{Channel: ch, cancel: cancel, done: make(chan struct{})}
	go func() {
		defer close(sub.done)
		defer resp.Body.Close()
		err := readEvents(resp.Body, fn)
		if err != nil && !errors.Is(streamCtx.Err(), context.Canceled) {
			sub.mu.Lock()
			sub.err = AsError(err)
			sub.mu.Unlock()
			c.log.Warnf("Event ID: REALTIME_STREAM_CLOSED, Description: channel %s: %v", ch.Name, err)
		}
	}()
	c.log.Infof("Event ID: REALTIME_SUBSCRIBED, Description: channel %s", ch.Name)
	return sub, nil
}

// readEvents parses a server-sent event stream, delivering "change" events
func readEvents(r io.Reader, fn func(Change)) error {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	event := ""
	var data []string
	dispatch := func() {
		defer func() { event, data = "", nil }()
		if len(data) == 0 || (event != "" && event != "change") {
			return
		}
		var ch Change
		if err := json.Unmarshal([]byte(strings.Join(data, "\n")), &ch); err != nil {
			return
		}
		fn(ch)
	}

	for sc.Scan() {
		line := sc.Text()
		switch {
		case line == "":
			dispatch()
		case strings.HasPrefix(line, ":"):
			// comment / keep-alive
		case strings.HasPrefix(line, "event:"):
			event = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
		case strings.HasPrefix(line, "data:"):
			data = append(data, strings.TrimPrefix(strings.TrimPrefix(line, "data:"), " "))
		}
	}
	dispatch()
	if err := sc.Err(); err != nil {
		return err
	}
	return io.EOF
}
