package services

import (
	"context"
	"errors"
	"slices"
	"testing"

	"github.com/taskmaster/agenda/internal/application/state"
	"github.com/taskmaster/agenda/internal/domain/entities"
	"github.com/taskmaster/agenda/internal/ports"
)

// seedProjects stores three projects; the middle one owns three tasks.
func seedProjects(t *testing.T, h *harness) {
	t.Helper()

	tasks := []entities.ProjectTask{
		{ID: "c1", ProjectID: "p2", Name: "one", State: entities.ProjectTaskTodo},
		{ID: "c2", ProjectID: "p2", Name: "two", State: entities.ProjectTaskPaused},
		{ID: "c3", ProjectID: "p2", Name: "three", State: entities.ProjectTaskDone},
	}
	projects := []entities.Project{
		{ID: "p1", Name: "Alpha", Tasks: []entities.ProjectTask{}},
		{ID: "p2", Name: "Beta", Tasks: tasks},
		{ID: "p3", Name: "Gamma", Tasks: []entities.ProjectTask{}},
	}
	for _, p := range projects {
		h.projects.seed(projectRow(p))
	}
	h.projectTasks.seed(tasks...)
	h.seedState(t, func(st *state.State) { st.Projects = projects })
}

func projectIDs(projects []entities.Project) []string {
	ids := make([]string, 0, len(projects))
	for _, p := range projects {
		ids = append(ids, p.ID)
	}
	return ids
}

func TestProjectServiceCascadeDelete(t *testing.T) {
	h := newHarness(t)
	seedProjects(t, h)
	svc := NewProjectService(h.coord, h.projects, h.projectTasks, h.clock, h.log)

	if err := svc.Delete(context.Background(), "p2"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}

	want := []string{
		"delete project_tasks c1",
		"delete project_tasks c2",
		"delete project_tasks c3",
		"delete projects p2",
	}
	if got := h.journal.list(); !slices.Equal(got, want) {
		t.Errorf("remote calls = %v, want %v", got, want)
	}
	if got := projectIDs(svc.List(context.Background())); !slices.Equal(got, []string{"p1", "p3"}) {
		t.Errorf("projects = %v", got)
	}
}

func TestProjectServiceCascadeDeleteCompensates(t *testing.T) {
	h := newHarness(t)
	seedProjects(t, h)
	svc := NewProjectService(h.coord, h.projects, h.projectTasks, h.clock, h.log)
	h.projectTasks.deleteErr["c2"] = errRemote

	err := svc.Delete(context.Background(), "p2")
	if !errors.Is(err, ErrPersistFailed) || !errors.Is(err, errRemote) {
		t.Fatalf("Delete() error = %v, want ErrPersistFailed wrapping the remote error", err)
	}

	want := []string{
		"delete project_tasks c1",
		"delete project_tasks c2",
		"upsert project_tasks c1",
	}
	if got := h.journal.list(); !slices.Equal(got, want) {
		t.Errorf("remote calls = %v, want %v", got, want)
	}
	if _, ok := h.projects.get("p2"); !ok {
		t.Error("parent row was deleted")
	}
	if _, ok := h.projectTasks.get("c1"); !ok {
		t.Error("deleted child was not restored")
	}

	projects := svc.List(context.Background())
	if got := projectIDs(projects); !slices.Equal(got, []string{"p1", "p2", "p3"}) {
		t.Fatalf("projects = %v, want original order", got)
	}
	if n := len(projects[1].Tasks); n != 3 {
		t.Errorf("restored project has %d tasks, want 3", n)
	}
}

func TestProjectServiceCascadeDeleteParentFailure(t *testing.T) {
	h := newHarness(t)
	seedProjects(t, h)
	svc := NewProjectService(h.coord, h.projects, h.projectTasks, h.clock, h.log)
	h.projects.deleteErr["p2"] = errRemote

	if err := svc.Delete(context.Background(), "p2"); !errors.Is(err, ErrPersistFailed) {
		t.Fatalf("Delete() error = %v", err)
	}
	if n := h.projectTasks.count(); n != 3 {
		t.Errorf("child rows = %d, want all 3 restored", n)
	}
}

func TestProjectServiceSaveAndRename(t *testing.T) {
	h := newHarness(t)
	seedProjects(t, h)
	svc := NewProjectService(h.coord, h.projects, h.projectTasks, h.clock, h.log)
	ctx := context.Background()

	created, err := svc.Save(ctx, ports.ProjectForm{Name: "Delta"})
	if err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if created.Tasks == nil || len(created.Tasks) != 0 {
		t.Errorf("new project tasks = %v, want empty", created.Tasks)
	}

	renamed, err := svc.Save(ctx, ports.ProjectForm{ID: "p2", Name: "Beta 2"})
	if err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if renamed.Name != "Beta 2" || len(renamed.Tasks) != 3 {
		t.Errorf("renamed = %s with %d tasks", renamed.Name, len(renamed.Tasks))
	}

	if _, err := svc.Save(ctx, ports.ProjectForm{}); !errors.Is(err, entities.ErrValidation) {
		t.Errorf("Save(empty) error = %v, want ErrValidation", err)
	}
}

func TestProjectServiceSaveTask(t *testing.T) {
	h := newHarness(t)
	seedProjects(t, h)
	svc := NewProjectService(h.coord, h.projects, h.projectTasks, h.clock, h.log)
	ctx := context.Background()

	task, err := svc.SaveTask(ctx, "p1", ports.ProjectTaskForm{Name: "Design"})
	if err != nil {
		t.Fatalf("SaveTask() error = %v", err)
	}
	if task.State != entities.ProjectTaskTodo || task.ProjectID != "p1" {
		t.Errorf("task = %+v", task)
	}

	if _, err := svc.SaveTask(ctx, "nope", ports.ProjectTaskForm{Name: "x"}); !errors.Is(err, entities.ErrProjectNotFound) {
		t.Errorf("SaveTask(unknown project) error = %v", err)
	}

	now := h.clock.Now()
	h.seedState(t, func(st *state.State) {
		st.Projects[1].Tasks[0].IsRunning = true
		st.Projects[1].Tasks[0].StartTime = &now
	})
	_, err = svc.SaveTask(ctx, "p2", ports.ProjectTaskForm{ID: "c1", Name: "one", State: "done"})
	if !errors.Is(err, entities.ErrTimerAlreadyRunning) {
		t.Errorf("state change on running task error = %v, want ErrTimerAlreadyRunning", err)
	}

	renamed, err := svc.SaveTask(ctx, "p2", ports.ProjectTaskForm{ID: "c1", Name: "one renamed"})
	if err != nil {
		t.Fatalf("rename running task error = %v", err)
	}
	if !renamed.IsRunning || renamed.StartTime == nil {
		t.Error("rename lost the running stopwatch")
	}
}

func TestProjectServiceDeleteTaskCompensates(t *testing.T) {
	h := newHarness(t)
	seedProjects(t, h)
	svc := NewProjectService(h.coord, h.projects, h.projectTasks, h.clock, h.log)
	h.projects.upsertFor["p2"] = errRemote

	err := svc.DeleteTask(context.Background(), "p2", "c1")
	if !errors.Is(err, ErrPersistFailed) {
		t.Fatalf("DeleteTask() error = %v", err)
	}

	want := []string{
		"delete project_tasks c1",
		"upsert projects p2",
		"upsert project_tasks c1",
	}
	if got := h.journal.list(); !slices.Equal(got, want) {
		t.Errorf("remote calls = %v, want %v", got, want)
	}

	p, err := svc.Get(context.Background(), "p2")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if _, ok := p.FindTask("c1"); !ok {
		t.Error("task not restored locally")
	}
}

func TestProjectServiceDeleteTask(t *testing.T) {
	h := newHarness(t)
	seedProjects(t, h)
	svc := NewProjectService(h.coord, h.projects, h.projectTasks, h.clock, h.log)

	if err := svc.DeleteTask(context.Background(), "p2", "c3"); err != nil {
		t.Fatalf("DeleteTask() error = %v", err)
	}
	if _, ok := h.projectTasks.get("c3"); ok {
		t.Error("row still present")
	}
	if err := svc.DeleteTask(context.Background(), "p2", "c3"); !errors.Is(err, entities.ErrProjectTaskNotFound) {
		t.Errorf("second DeleteTask() error = %v", err)
	}
}
