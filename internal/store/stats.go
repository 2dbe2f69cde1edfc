package store

import (
	"math"
	"time"

	"github.com/tgienger/taskies/internal/models"
)

// ComputeStats summarizes projects and tasks for the dashboard. Weekly
// progress is the share of completed tasks; monthly progress the share of
// active projects.
func ComputeStats(projects []models.Project, tasks []models.Task, now time.Time) models.DashboardStats {
	st := models.DashboardStats{
		TotalProjects: len(projects),
		TotalTasks:    len(tasks),
	}
	for _, p := range projects {
		if p.Status == models.ProjectActive {
			st.ActiveProjects++
		}
	}
	for _, t := range tasks {
		switch t.Status {
		case models.StatusCompleted:
			st.CompletedTasks++
		case models.StatusInProgress:
			st.TasksInProgress++
		}
		if Overdue(t, now) {
			st.OverdueTasks++
		}
	}
	st.WeeklyProgress = percent(st.CompletedTasks, st.TotalTasks)
	st.MonthlyProgress = percent(st.ActiveProjects, st.TotalProjects)
	return st
}

func percent(n, total int) int {
	return int(math.Round(float64(n) / float64(max(total, 1)) * 100))
}
