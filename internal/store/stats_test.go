package store

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/tgienger/taskies/internal/models"
)

func TestComputeStats(t *testing.T) {
	yesterday := testNow.AddDate(0, 0, -1)
	projects := []models.Project{
		{ID: "p1", Status: models.ProjectActive},
		{ID: "p2", Status: models.ProjectActive},
		{ID: "p3", Status: models.ProjectCompleted},
	}
	tasks := []models.Task{
		{ID: "t1", Status: models.StatusCompleted, DueDate: &yesterday},
		{ID: "t2", Status: models.StatusInProgress, DueDate: &yesterday},
		{ID: "t3", Status: models.StatusTodo},
	}

	got := ComputeStats(projects, tasks, testNow)
	assert.Equal(t, models.DashboardStats{
		TotalProjects:   3,
		ActiveProjects:  2,
		TotalTasks:      3,
		CompletedTasks:  1,
		OverdueTasks:    1,
		TasksInProgress: 1,
		WeeklyProgress:  33,
		MonthlyProgress: 67,
	}, got)
}

func TestComputeStatsEmpty(t *testing.T) {
	assert.Equal(t, models.DashboardStats{}, ComputeStats(nil, nil, testNow))
}
