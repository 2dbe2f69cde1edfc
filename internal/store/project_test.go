package store

import (
	"context"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tgienger/taskies/internal/gateway"
	"github.com/tgienger/taskies/internal/models"
)

func newTestProjectStore(t *testing.T) (*ProjectStore, *fakeProjects, *memCache) {
	t.Helper()
	gw := newFakeProjects()
	cache := newMemCache()
	return NewProjectStore(gw, cache, testOptions()...), gw, cache
}

func TestCreateProjectAppliesDefaults(t *testing.T) {
	s, gw, _ := newTestProjectStore(t)

	p, err := s.CreateProject(context.Background(), models.NewProject{Name: "Launch", OwnerID: "u1"})
	require.NoError(t, err)
	assert.NotEmpty(t, p.ID)
	assert.Equal(t, models.ProjectActive, p.Status)
	assert.Equal(t, 0, p.Progress)
	assert.Equal(t, models.PriorityMedium, p.Priority)
	assert.Equal(t, DefaultProjectColor, p.Color)
	assert.Equal(t, DefaultProjectIcon, p.Icon)
	assert.Equal(t, []string{}, p.Tags)
	assert.Equal(t, []models.ProjectMember{}, p.Members)

	require.Len(t, gw.created, 1)
	assert.True(t, testNow.Equal(gw.created[0].CreatedAt))
	assert.Len(t, s.Projects(), 1)
	assert.False(t, s.IsLoading())
}

func TestCreateProjectRejectsEmptyName(t *testing.T) {
	s, gw, _ := newTestProjectStore(t)

	_, err := s.CreateProject(context.Background(), models.NewProject{Name: "  "})
	require.Error(t, err)
	assert.Equal(t, gateway.KindValidation, gateway.KindOf(err))
	assert.ErrorIs(t, err, models.ErrProjectNameEmpty)
	assert.Equal(t, err, s.Err())
	assert.Empty(t, gw.created)
}

func TestProjectErrorClearedBySuccess(t *testing.T) {
	s, gw, _ := newTestProjectStore(t)
	ctx := context.Background()

	gw.err = gateway.NewError(gateway.KindNetwork, "offline")
	_, err := s.FetchProjects(ctx, "u1")
	require.Error(t, err)
	assert.Equal(t, "offline", s.Err().Error())

	gw.err = nil
	_, err = s.FetchProjects(ctx, "u1")
	require.NoError(t, err)
	assert.NoError(t, s.Err())
}

func TestUpdateProject(t *testing.T) {
	s, _, _ := newTestProjectStore(t)
	ctx := context.Background()
	p, err := s.CreateProject(ctx, models.NewProject{Name: "Launch", OwnerID: "u1"})
	require.NoError(t, err)

	bad := 120
	_, err = s.UpdateProject(ctx, p.ID, models.ProjectUpdate{Progress: &bad})
	assert.ErrorIs(t, err, models.ErrProgressRange)

	name, progress := "Launch v2", 40
	updated, err := s.UpdateProject(ctx, p.ID, models.ProjectUpdate{Name: &name, Progress: &progress})
	require.NoError(t, err)
	assert.Equal(t, "Launch v2", updated.Name)
	assert.Equal(t, 40, updated.Progress)

	cached, ok := s.ProjectByID(p.ID)
	require.True(t, ok)
	assert.Equal(t, "Launch v2", cached.Name)
}

func TestFetchAndDeleteProjects(t *testing.T) {
	s, gw, _ := newTestProjectStore(t)
	ctx := context.Background()
	gw.rows["p1"] = gateway.ProjectRow{ID: "p1", Name: "Mine", OwnerID: "u1", Status: "active"}
	gw.rows["p2"] = gateway.ProjectRow{ID: "p2", Name: "Theirs", OwnerID: "u2", Status: "active"}
	gw.seq = 2

	ps, err := s.FetchProjects(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, ps, 1)
	assert.Equal(t, "Mine", ps[0].Name)

	s.SetCurrent("p1")
	require.NotNil(t, s.Current())

	require.NoError(t, s.DeleteProject(ctx, "p1"))
	assert.Empty(t, s.Projects())
	assert.Nil(t, s.Current())
}

func TestProjectMembersSplice(t *testing.T) {
	s, gw, _ := newTestProjectStore(t)
	ctx := context.Background()
	gw.rows["p1"] = gateway.ProjectRow{ID: "p1", Name: "Launch", OwnerID: "u1", Status: "active"}
	gw.seq = 1

	_, err := s.FetchProjects(ctx, "u1")
	require.NoError(t, err)
	_, err = s.FetchProjectByID(ctx, "p1")
	require.NoError(t, err)

	_, err = s.AddProjectMember(ctx, "p1", "u2", models.MemberRole("boss"))
	assert.Equal(t, gateway.KindValidation, gateway.KindOf(err))

	_, err = s.AddProjectMember(ctx, "p1", "u2", models.MemberMember)
	require.NoError(t, err)
	_, err = s.AddProjectMember(ctx, "p1", "u2", models.MemberAdmin)
	require.NoError(t, err)

	for _, p := range []models.Project{s.Projects()[0], *s.Current()} {
		require.Len(t, p.Members, 1)
		assert.Equal(t, models.MemberAdmin, p.Members[0].Role)
		assert.Equal(t, "u2@example.com", p.Members[0].User.Email)
	}
	assert.Len(t, s.UserProjects("u2"), 1)

	_, err = s.UpdateProjectMemberRole(ctx, "p1", "u2", models.MemberOwner)
	require.NoError(t, err)
	cur := s.Current()
	assert.Equal(t, models.MemberOwner, cur.Members[0].Role)
	assert.NotNil(t, cur.Members[0].User, "user kept when the update returns none")

	require.NoError(t, s.RemoveProjectMember(ctx, "p1", "u2"))
	assert.Empty(t, s.Projects()[0].Members)
	assert.Empty(t, s.Current().Members)
	assert.Empty(t, s.UserProjects("u2"))

	// a refetch keeps members loaded earlier
	_, err = s.AddProjectMember(ctx, "p1", "u3", models.MemberMember)
	require.NoError(t, err)
	ps, err := s.FetchProjects(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, ps[0].Members, 1)
}

func TestProjectQueries(t *testing.T) {
	s, _, _ := newTestProjectStore(t)
	ctx := context.Background()
	for _, in := range []models.NewProject{
		{Name: "Website Redesign", Description: "New landing pages", OwnerID: "u1", Priority: models.PriorityHigh},
		{Name: "Mobile App", Description: "iOS and Android", OwnerID: "u1", Tags: []string{"redesign"}},
		{Name: "Backlog", OwnerID: "u2", Status: models.ProjectOnHold},
	} {
		_, err := s.CreateProject(ctx, in)
		require.NoError(t, err)
	}

	names := func(ps []models.Project) []string {
		var out []string
		for _, p := range ps {
			out = append(out, p.Name)
		}
		return out
	}
	assert.Equal(t, []string{"Website Redesign", "Mobile App"}, names(s.SearchProjects("REDESIGN")))
	assert.Equal(t, []string{"Mobile App"}, names(s.SearchProjects("android")))
	assert.Empty(t, s.SearchProjects("nothing"))
	assert.Equal(t, []string{"Website Redesign"}, names(s.ProjectsByPriority(models.PriorityHigh)))
	assert.Equal(t, []string{"Backlog"}, names(s.ProjectsByStatus(models.ProjectOnHold)))
	assert.Equal(t, []string{"Website Redesign", "Mobile App"}, names(s.UserProjects("u1")))
}

func TestProjectSliceSurvivesRestart(t *testing.T) {
	s, gw, cache := newTestProjectStore(t)
	ctx := context.Background()
	_, err := s.CreateProject(ctx, models.NewProject{Name: "Launch", OwnerID: "u1", Tags: []string{"q3"}})
	require.NoError(t, err)
	_, err = s.FetchProjectByID(ctx, "p1")
	require.NoError(t, err)

	restored := NewProjectStore(gw, cache, testOptions()...)
	if diff := cmp.Diff(s.Projects(), restored.Projects()); diff != "" {
		t.Errorf("projects mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(s.Current(), restored.Current()); diff != "" {
		t.Errorf("current project mismatch (-want +got):\n%s", diff)
	}
}

func TestProjectGettersDoNotShareState(t *testing.T) {
	s, _, _ := newTestProjectStore(t)
	deadline := time.Date(2025, 9, 30, 0, 0, 0, 0, time.UTC)
	budget := 1200.0
	_, err := s.CreateProject(context.Background(), models.NewProject{
		Name: "Launch", OwnerID: "u1", Deadline: &deadline, Budget: &budget,
	})
	require.NoError(t, err)

	got := s.Projects()[0]
	require.NotNil(t, got.Deadline)
	require.NotNil(t, got.Budget)
	*got.Deadline = deadline.AddDate(1, 0, 0)
	*got.Budget = 0

	again := s.Projects()[0]
	assert.True(t, again.Deadline.Equal(deadline))
	assert.Equal(t, 1200.0, *again.Budget)
}

func TestProjectSliceOutdatedVersionIgnored(t *testing.T) {
	cache := newMemCache()
	require.NoError(t, cache.Set(ProjectsKey, []byte(`{"state":{"projects":[{"id":"p1"}]},"version":0}`)))
	s := NewProjectStore(newFakeProjects(), cache, testOptions()...)
	assert.Empty(t, s.Projects())
}

func TestProjectApplyChange(t *testing.T) {
	s, _, _ := newTestProjectStore(t)

	require.NoError(t, s.ApplyChange(gateway.Change{
		Type:   gateway.ChangeInsert,
		Table:  "projects",
		Record: []byte(`{"id":"p9","name":"Remote","owner_id":"u1","status":"active","tags":null}`),
	}))
	require.Len(t, s.Projects(), 1)
	assert.Equal(t, []string{}, s.Projects()[0].Tags)

	require.NoError(t, s.ApplyChange(gateway.Change{
		Type:   gateway.ChangeUpdate,
		Table:  "projects",
		Record: []byte(`{"id":"p9","name":"Renamed","owner_id":"u1","status":"completed"}`),
	}))
	assert.Equal(t, "Renamed", s.Projects()[0].Name)

	require.NoError(t, s.ApplyChange(gateway.Change{
		Type:   gateway.ChangeUpdate,
		Table:  "tasks",
		Record: []byte(`{"id":"t1"}`),
	}))
	assert.Len(t, s.Projects(), 1)

	require.NoError(t, s.ApplyChange(gateway.Change{
		Type:      gateway.ChangeDelete,
		Table:     "projects",
		OldRecord: []byte(`{"id":"p9"}`),
	}))
	assert.Empty(t, s.Projects())
}
