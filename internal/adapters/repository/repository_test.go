package repository

import (
	"context"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/taskmaster/agenda/internal/domain/entities"
	"github.com/taskmaster/agenda/internal/infrastructure/database"
)

func setupTestDB(t *testing.T) *sqlx.DB {
	t.Helper()
	db, err := database.NewSQLiteMemory()
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db.DB
}

func fixedNow(at time.Time) func() time.Time {
	return func() time.Time { return at }
}

func TestTaskRepositoryOrdering(t *testing.T) {
	db := setupTestDB(t)
	repo := NewTaskRepository(db)
	ctx := context.Background()

	tasks := []entities.Task{
		{ID: "late", Title: "late", Date: "2024-05-02", Time: "09:00"},
		{ID: "timed", Title: "timed", Date: "2024-05-01", Time: "08:30"},
		{ID: "untimed", Title: "untimed", Date: "2024-05-01"},
		{ID: "early", Title: "early", Date: "2024-05-01", Time: "07:00"},
	}
	for _, task := range tasks {
		if _, err := repo.Upsert(ctx, task); err != nil {
			t.Fatalf("Upsert(%s) error: %v", task.ID, err)
		}
	}

	loaded, err := repo.Load(ctx)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	want := []string{"untimed", "early", "timed", "late"}
	if len(loaded) != len(want) {
		t.Fatalf("Load() returned %d tasks, want %d", len(loaded), len(want))
	}
	for i, id := range want {
		if loaded[i].ID != id {
			t.Errorf("position %d = %s, want %s", i, loaded[i].ID, id)
		}
	}
}

func TestTaskRepositoryUpsertKeepsCreatedAt(t *testing.T) {
	db := setupTestDB(t)
	repo := NewTaskRepository(db)
	ctx := context.Background()

	created := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	repo.now = fixedNow(created)
	first, err := repo.Upsert(ctx, entities.Task{ID: "t1", Title: "draft", Date: "2024-05-01", Priority: entities.PriorityUrgent})
	if err != nil {
		t.Fatalf("Upsert() error: %v", err)
	}
	if !first.CreatedAt.Equal(created) {
		t.Errorf("CreatedAt = %v, want %v", first.CreatedAt, created)
	}

	updated := created.Add(time.Hour)
	repo.now = fixedNow(updated)
	first.Title = "final"
	first.Status = entities.TaskStatusDone
	second, err := repo.Upsert(ctx, first)
	if err != nil {
		t.Fatalf("Upsert() error: %v", err)
	}

	if second.Title != "final" || second.Status != entities.TaskStatusDone || second.Priority != entities.PriorityUrgent {
		t.Errorf("unexpected task after update: %+v", second)
	}
	if !second.CreatedAt.Equal(created) {
		t.Errorf("CreatedAt changed to %v", second.CreatedAt)
	}
	if !second.UpdatedAt.Equal(updated) {
		t.Errorf("UpdatedAt = %v, want %v", second.UpdatedAt, updated)
	}
}

func TestTaskRepositoryLegacyStatuses(t *testing.T) {
	db := setupTestDB(t)
	repo := NewTaskRepository(db)
	ctx := context.Background()

	rows := map[string]string{
		"a": "afazer",
		"b": "em_andamento",
		"c": "Concluída",
		"d": "mystery",
	}
	for id, status := range rows {
		_, err := db.Exec(`INSERT INTO tasks (id, title, date, status, priority) VALUES (?, ?, ?, ?, ?)`,
			id, id, "2024-01-01", status, "urgente")
		if err != nil {
			t.Fatalf("insert %s: %v", id, err)
		}
	}

	loaded, err := repo.Load(ctx)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	want := map[string]entities.TaskStatus{
		"a": entities.TaskStatusPending,
		"b": entities.TaskStatusInProgress,
		"c": entities.TaskStatusDone,
		"d": entities.TaskStatusPending,
	}
	for _, task := range loaded {
		if task.Status != want[task.ID] {
			t.Errorf("task %s status = %s, want %s", task.ID, task.Status, want[task.ID])
		}
		if task.Priority != entities.PriorityUrgent {
			t.Errorf("task %s priority = %s, want urgent", task.ID, task.Priority)
		}
	}
}

func TestTaskRepositoryDelete(t *testing.T) {
	db := setupTestDB(t)
	repo := NewTaskRepository(db)
	ctx := context.Background()

	if _, err := repo.Upsert(ctx, entities.Task{ID: "t1", Title: "x", Date: "2024-01-01"}); err != nil {
		t.Fatalf("Upsert() error: %v", err)
	}
	if err := repo.Delete(ctx, "t1"); err != nil {
		t.Fatalf("Delete() error: %v", err)
	}
	if err := repo.Delete(ctx, "t1"); err != nil {
		t.Errorf("Delete() of missing id error: %v", err)
	}

	loaded, err := repo.Load(ctx)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if len(loaded) != 0 {
		t.Errorf("expected no tasks, got %d", len(loaded))
	}
}

func TestExamRepositoryMapping(t *testing.T) {
	db := setupTestDB(t)
	repo := NewExamRepository(db)
	ctx := context.Background()

	saved, err := repo.Upsert(ctx, entities.Exam{
		ID:       "e1",
		Type:     "Blood test",
		Date:     "2024-06-10",
		Time:     "08:15",
		Location: "Lab",
		Notes:    "fasting",
		FileName: "request.pdf",
	})
	if err != nil {
		t.Fatalf("Upsert() error: %v", err)
	}

	if saved.Type != "Blood test" || saved.Notes != "fasting" || saved.Location != "Lab" {
		t.Errorf("unexpected exam: %+v", saved)
	}
	if saved.FileName != "" {
		t.Errorf("FileName should not be persisted, got %q", saved.FileName)
	}
}

func TestShoppingRepositoryCoercesNulls(t *testing.T) {
	db := setupTestDB(t)
	repo := NewShoppingRepository(db)
	ctx := context.Background()

	_, err := db.Exec(`INSERT INTO shopping_items (id, list_type, name, quantity, unit_price) VALUES (?, ?, ?, NULL, NULL)`,
		"legacy", "supermarket", "bread")
	if err != nil {
		t.Fatalf("insert legacy row: %v", err)
	}
	if _, err := repo.Upsert(ctx, entities.ShoppingItem{ID: "new", List: "pharmacy", Name: "aspirin", Quantity: 2, UnitPrice: 4.5, Purchased: true}); err != nil {
		t.Fatalf("Upsert() error: %v", err)
	}

	loaded, err := repo.Load(ctx)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	byID := map[string]entities.ShoppingItem{}
	for _, item := range loaded {
		byID[item.ID] = item
	}

	legacy := byID["legacy"]
	if legacy.Quantity != 1 || legacy.UnitPrice != 0 || legacy.Purchased {
		t.Errorf("legacy item not coerced: %+v", legacy)
	}
	fresh := byID["new"]
	if fresh.List != "pharmacy" || fresh.Quantity != 2 || fresh.UnitPrice != 4.5 || !fresh.Purchased {
		t.Errorf("unexpected item: %+v", fresh)
	}
}

func TestProjectTaskRepositoryTimeFields(t *testing.T) {
	db := setupTestDB(t)
	projects := NewProjectRepository(db)
	tasks := NewProjectTaskRepository(db)
	ctx := context.Background()

	if _, err := projects.Upsert(ctx, entities.Project{ID: "p1", Name: "Thesis"}); err != nil {
		t.Fatalf("Upsert(project) error: %v", err)
	}

	start := time.Date(2024, 5, 1, 9, 0, 0, 123456789, time.UTC)
	saved, err := tasks.Upsert(ctx, entities.ProjectTask{
		ID:        "pt1",
		ProjectID: "p1",
		Name:      "Write intro",
		State:     entities.ProjectTaskTodo,
		TimeSpent: 1500*time.Millisecond + 999*time.Microsecond,
		IsRunning: true,
		StartTime: &start,
	})
	if err != nil {
		t.Fatalf("Upsert(task) error: %v", err)
	}

	if saved.TimeSpent != 1500*time.Millisecond {
		t.Errorf("TimeSpent = %v, want 1.5s", saved.TimeSpent)
	}
	if !saved.IsRunning || saved.StartTime == nil {
		t.Fatalf("expected running task with start time, got %+v", saved)
	}
	if want := start.Truncate(time.Millisecond); !saved.StartTime.Equal(want) {
		t.Errorf("StartTime = %v, want %v", saved.StartTime, want)
	}

	saved.IsRunning = false
	saved.StartTime = nil
	saved.State = entities.ProjectTaskPaused
	paused, err := tasks.Upsert(ctx, saved)
	if err != nil {
		t.Fatalf("Upsert(pause) error: %v", err)
	}
	if paused.IsRunning || paused.StartTime != nil || paused.State != entities.ProjectTaskPaused {
		t.Errorf("unexpected paused task: %+v", paused)
	}

	byProject, err := tasks.LoadByProject(ctx, "p1")
	if err != nil {
		t.Fatalf("LoadByProject() error: %v", err)
	}
	if len(byProject) != 1 || byProject[0].Name != "Write intro" {
		t.Errorf("LoadByProject() = %+v", byProject)
	}
}

func TestProjectTaskRepositoryRunningWithoutStart(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	if _, err := db.Exec(`INSERT INTO projects (id, name) VALUES (?, ?)`, "p1", "p"); err != nil {
		t.Fatalf("insert project: %v", err)
	}
	_, err := db.Exec(`INSERT INTO project_tasks (id, project_id, title, state, time_spent, is_running, start_time) VALUES (?, ?, ?, ?, NULL, 1, NULL)`,
		"pt1", "p1", "broken", "pausada")
	if err != nil {
		t.Fatalf("insert task: %v", err)
	}

	loaded, err := NewProjectTaskRepository(db).Load(ctx)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if len(loaded) != 1 {
		t.Fatalf("Load() returned %d rows", len(loaded))
	}
	got := loaded[0]
	if got.IsRunning || got.StartTime != nil || got.TimeSpent != 0 || got.State != entities.ProjectTaskPaused {
		t.Errorf("unexpected task: %+v", got)
	}
}

func TestProjectDeleteRequiresTasksGone(t *testing.T) {
	db := setupTestDB(t)
	gw := NewGateway(db)
	ctx := context.Background()

	if _, err := gw.Projects.Upsert(ctx, entities.Project{ID: "p1", Name: "p"}); err != nil {
		t.Fatalf("Upsert(project) error: %v", err)
	}
	if _, err := gw.ProjectTasks.Upsert(ctx, entities.ProjectTask{ID: "pt1", ProjectID: "p1", Name: "t"}); err != nil {
		t.Fatalf("Upsert(task) error: %v", err)
	}

	if err := gw.Projects.Delete(ctx, "p1"); err == nil {
		t.Fatal("expected foreign key violation while tasks exist")
	}

	if err := gw.ProjectTasks.Delete(ctx, "pt1"); err != nil {
		t.Fatalf("Delete(task) error: %v", err)
	}
	if err := gw.Projects.Delete(ctx, "p1"); err != nil {
		t.Fatalf("Delete(project) error: %v", err)
	}
}
