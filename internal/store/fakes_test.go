package store

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/tgienger/taskies/internal/gateway"
)

var testNow = time.Date(2025, 7, 9, 15, 0, 0, 0, time.UTC)

func testOptions() []Option {
	l := logrus.New()
	l.Out = io.Discard
	return []Option{WithLogger(l), WithClock(func() time.Time { return testNow })}
}

type memCache struct {
	mu     sync.Mutex
	m      map[string][]byte
	writes map[string]int
}

func newMemCache() *memCache {
	return &memCache{m: map[string][]byte{}, writes: map[string]int{}}
}

func (c *memCache) writeCount(key string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.writes[key]
}

func (c *memCache) Get(key string) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.m[key], nil
}

func (c *memCache) Set(key string, value []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.m[key] = value
	c.writes[key]++
	return nil
}

func (c *memCache) Delete(key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.m, key)
	return nil
}

// fakeAuth is an in-memory AuthGateway
type fakeAuth struct {
	signInErr     error
	signOutErr    error
	getUserErr    error
	getSessionErr error
	session       *gateway.Session
	updates    []gateway.UserAttributes
	signUps    int
	listeners  []gateway.AuthListener
}

func (f *fakeAuth) SignIn(_ context.Context, email, _ string) (*gateway.Session, error) {
	if f.signInErr != nil {
		return nil, f.signInErr
	}
	f.session = &gateway.Session{
		AccessToken:  "token-" + email,
		RefreshToken: "refresh",
		User: &gateway.AuthUser{
			ID:           "u1",
			Email:        email,
			UserMetadata: map[string]any{"firstName": "Ada", "lastName": "Lovelace", "role": "manager"},
			CreatedAt:    testNow.Add(-24 * time.Hour),
		},
	}
	f.emit(gateway.EventSignedIn, f.session)
	return f.session, nil
}

func (f *fakeAuth) SignUp(_ context.Context, email, _ string, _ map[string]any) (*gateway.AuthUser, error) {
	f.signUps++
	return &gateway.AuthUser{ID: "u2", Email: email}, nil
}

func (f *fakeAuth) SignOut(context.Context) error {
	f.session = nil
	f.emit(gateway.EventSignedOut, nil)
	return f.signOutErr
}

func (f *fakeAuth) ResetPassword(context.Context, string) error { return nil }

func (f *fakeAuth) UpdateUser(_ context.Context, attrs gateway.UserAttributes) (*gateway.AuthUser, error) {
	f.updates = append(f.updates, attrs)
	if f.session == nil {
		return nil, gateway.NewError(gateway.KindAuth, "Auth session missing!")
	}
	return f.session.User, nil
}

func (f *fakeAuth) GetSession(context.Context) (*gateway.Session, error) {
	if f.getSessionErr != nil {
		return nil, f.getSessionErr
	}
	return f.session, nil
}

func (f *fakeAuth) GetUser(context.Context) (*gateway.AuthUser, error) {
	if f.getUserErr != nil {
		return nil, f.getUserErr
	}
	if f.session == nil {
		return nil, gateway.NewError(gateway.KindAuth, "Auth session missing!")
	}
	return f.session.User, nil
}

func (f *fakeAuth) OnAuthStateChange(fn gateway.AuthListener) func() {
	f.listeners = append(f.listeners, fn)
	return func() { f.listeners = nil }
}

func (f *fakeAuth) emit(ev gateway.AuthEvent, s *gateway.Session) {
	for _, fn := range f.listeners {
		fn(ev, s)
	}
}

// applyPatch merges a column patch into a row the way the backend does
func applyPatch[T any](row T, patch gateway.Patch) T {
	raw, _ := json.Marshal(row)
	m := map[string]any{}
	_ = json.Unmarshal(raw, &m)
	for k, v := range patch {
		m[k] = v
	}
	raw, _ = json.Marshal(m)
	var out T
	_ = json.Unmarshal(raw, &out)
	return out
}

// fakeProjects is an in-memory ProjectGateway
type fakeProjects struct {
	err     error
	seq     int
	rows    map[string]gateway.ProjectRow
	members []gateway.MemberRow
	created []gateway.ProjectRow
}

func newFakeProjects() *fakeProjects {
	return &fakeProjects{rows: map[string]gateway.ProjectRow{}}
}

func (f *fakeProjects) CreateProject(_ context.Context, row gateway.ProjectRow) (*gateway.ProjectRow, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.created = append(f.created, row)
	f.seq++
	row.ID = fmt.Sprintf("p%d", f.seq)
	f.rows[row.ID] = row
	return &row, nil
}

func (f *fakeProjects) ListProjects(_ context.Context, ownerID string) ([]gateway.ProjectRow, error) {
	if f.err != nil {
		return nil, f.err
	}
	var out []gateway.ProjectRow
	for i := 1; i <= f.seq; i++ {
		if r, ok := f.rows[fmt.Sprintf("p%d", i)]; ok && r.OwnerID == ownerID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeProjects) GetProject(_ context.Context, id string) (*gateway.ProjectRow, error) {
	if f.err != nil {
		return nil, f.err
	}
	r, ok := f.rows[id]
	if !ok {
		return nil, gateway.NewError(gateway.KindNotFound, "JSON object requested, multiple (or no) rows returned")
	}
	return &r, nil
}

func (f *fakeProjects) UpdateProject(_ context.Context, id string, patch gateway.Patch) (*gateway.ProjectRow, error) {
	if f.err != nil {
		return nil, f.err
	}
	r, ok := f.rows[id]
	if !ok {
		return nil, gateway.NewError(gateway.KindNotFound, "not found")
	}
	r = applyPatch(r, patch)
	f.rows[id] = r
	return &r, nil
}

func (f *fakeProjects) DeleteProject(_ context.Context, id string) error {
	if f.err != nil {
		return f.err
	}
	delete(f.rows, id)
	return nil
}

func (f *fakeProjects) ListProjectMembers(_ context.Context, projectID string) ([]gateway.MemberRow, error) {
	var out []gateway.MemberRow
	for _, m := range f.members {
		if m.ProjectID == projectID {
			out = append(out, m)
		}
	}
	return out, nil
}

func (f *fakeProjects) AddProjectMember(_ context.Context, projectID, userID, role string) (*gateway.MemberRow, error) {
	if f.err != nil {
		return nil, f.err
	}
	m := gateway.MemberRow{
		ID:        fmt.Sprintf("m%d", len(f.members)+1),
		ProjectID: projectID,
		UserID:    userID,
		Role:      role,
		JoinedAt:  testNow,
		Users:     &gateway.UserRow{ID: userID, Email: userID + "@example.com"},
	}
	f.members = append(f.members, m)
	return &m, nil
}

func (f *fakeProjects) RemoveProjectMember(_ context.Context, projectID, userID string) error {
	return f.err
}

func (f *fakeProjects) UpdateProjectMemberRole(_ context.Context, projectID, userID, role string) (*gateway.MemberRow, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &gateway.MemberRow{ID: "m-upd", ProjectID: projectID, UserID: userID, Role: role}, nil
}

// fakeTasks is an in-memory TaskGateway
type fakeTasks struct {
	err         error
	attachErr   error
	seq         int
	rows        map[string]gateway.TaskRow
	patches     []gateway.Patch
	comments    map[string]gateway.CommentRow
	uploads     map[string][]byte
	removed     []string
	attachments map[string]gateway.AttachmentRow
}

func newFakeTasks() *fakeTasks {
	return &fakeTasks{
		rows:        map[string]gateway.TaskRow{},
		comments:    map[string]gateway.CommentRow{},
		uploads:     map[string][]byte{},
		attachments: map[string]gateway.AttachmentRow{},
	}
}

func (f *fakeTasks) CreateTask(_ context.Context, row gateway.TaskRow) (*gateway.TaskRow, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.seq++
	row.ID = fmt.Sprintf("t%d", f.seq)
	f.rows[row.ID] = row
	return &row, nil
}

func (f *fakeTasks) ordered() []gateway.TaskRow {
	var out []gateway.TaskRow
	for i := 1; i <= f.seq; i++ {
		if r, ok := f.rows[fmt.Sprintf("t%d", i)]; ok {
			out = append(out, r)
		}
	}
	return out
}

func (f *fakeTasks) ListTasks(_ context.Context, projectID, assigneeID string) ([]gateway.TaskRow, error) {
	if f.err != nil {
		return nil, f.err
	}
	var out []gateway.TaskRow
	for _, r := range f.ordered() {
		if projectID != "" && r.ProjectID != projectID {
			continue
		}
		if assigneeID != "" && (r.AssigneeID == nil || *r.AssigneeID != assigneeID) {
			continue
		}
		out = append(out, r)
	}
	return out, nil
}

func (f *fakeTasks) GetTask(_ context.Context, id string) (*gateway.TaskRow, error) {
	if f.err != nil {
		return nil, f.err
	}
	r, ok := f.rows[id]
	if !ok {
		return nil, gateway.NewError(gateway.KindNotFound, "not found")
	}
	for _, c := range f.comments {
		if c.TaskID == id {
			r.TaskComments = append(r.TaskComments, c)
		}
	}
	return &r, nil
}

func (f *fakeTasks) ListTasksByStatus(_ context.Context, status, projectID string) ([]gateway.TaskRow, error) {
	var out []gateway.TaskRow
	for _, r := range f.ordered() {
		if r.Status == status && (projectID == "" || r.ProjectID == projectID) {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeTasks) ListOverdueTasks(_ context.Context, userID string, now time.Time) ([]gateway.TaskRow, error) {
	var out []gateway.TaskRow
	for _, r := range f.ordered() {
		if r.DueDate != nil && r.DueDate.Before(now) && r.Status != "completed" && r.Status != "cancelled" {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeTasks) UpdateTask(_ context.Context, id string, patch gateway.Patch) (*gateway.TaskRow, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.patches = append(f.patches, patch)
	r, ok := f.rows[id]
	if !ok {
		return nil, gateway.NewError(gateway.KindNotFound, "not found")
	}
	r = applyPatch(r, patch)
	f.rows[id] = r
	return &r, nil
}

func (f *fakeTasks) DeleteTask(_ context.Context, id string) error {
	if f.err != nil {
		return f.err
	}
	delete(f.rows, id)
	return nil
}

func (f *fakeTasks) CreateComment(_ context.Context, row gateway.CommentRow) (*gateway.CommentRow, error) {
	if f.err != nil {
		return nil, f.err
	}
	row.ID = fmt.Sprintf("c%d", len(f.comments)+1)
	row.User = &gateway.UserRow{ID: row.UserID, FirstName: "Ada"}
	f.comments[row.ID] = row
	return &row, nil
}

func (f *fakeTasks) UpdateComment(_ context.Context, id, content string, now time.Time) (*gateway.CommentRow, error) {
	if f.err != nil {
		return nil, f.err
	}
	c, ok := f.comments[id]
	if !ok {
		return nil, gateway.NewError(gateway.KindNotFound, "not found")
	}
	c.Content = content
	c.EditedAt = &now
	c.UpdatedAt = now
	c.User = nil
	f.comments[id] = c
	return &c, nil
}

func (f *fakeTasks) DeleteComment(_ context.Context, id string) error {
	if f.err != nil {
		return f.err
	}
	delete(f.comments, id)
	return nil
}

func (f *fakeTasks) CreateAttachment(_ context.Context, row gateway.AttachmentRow) (*gateway.AttachmentRow, error) {
	if f.attachErr != nil {
		return nil, f.attachErr
	}
	row.ID = fmt.Sprintf("a%d", len(f.attachments)+1)
	f.attachments[row.ID] = row
	return &row, nil
}

func (f *fakeTasks) DeleteAttachment(_ context.Context, id string) error {
	delete(f.attachments, id)
	return nil
}

func (f *fakeTasks) Upload(_ context.Context, bucket, path, _ string, r io.Reader) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	f.uploads[bucket+"/"+path] = data
	return nil
}

func (f *fakeTasks) Download(_ context.Context, bucket, path string) ([]byte, error) {
	data, ok := f.uploads[bucket+"/"+path]
	if !ok {
		return nil, gateway.NewError(gateway.KindNotFound, "Object not found")
	}
	return data, nil
}

func (f *fakeTasks) Remove(_ context.Context, bucket string, paths ...string) error {
	for _, p := range paths {
		f.removed = append(f.removed, bucket+"/"+p)
		delete(f.uploads, bucket+"/"+p)
	}
	return nil
}
