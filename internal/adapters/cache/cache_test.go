package cache

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/taskmaster/agenda/internal/application/state"
	"github.com/taskmaster/agenda/internal/domain/entities"
	"github.com/taskmaster/agenda/internal/ports"
)

func sampleData() state.Data {
	start := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	return state.Data{
		Tasks: []entities.Task{{ID: "t1", Title: "Pay rent", Date: "2024-05-01", Status: entities.TaskStatusPending}},
		Shopping: map[string][]entities.ShoppingItem{
			"supermarket": {{ID: "i1", List: "supermarket", Name: "milk", Quantity: 2, UnitPrice: 1.25}},
			"pharmacy":    {},
		},
		Projects: []entities.Project{{
			ID:   "p1",
			Name: "Thesis",
			Tasks: []entities.ProjectTask{{
				ID: "pt1", ProjectID: "p1", Name: "Write", IsRunning: true, StartTime: &start, TimeSpent: time.Minute,
			}},
		}},
	}
}

func TestFileCacheRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "snapshot.json")
	c := NewFileCache(path)
	c.now = func() time.Time { return time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC) }
	defer c.Close()
	ctx := context.Background()

	if _, _, err := c.Load(ctx); !errors.Is(err, ports.ErrCacheMiss) {
		t.Fatalf("Load() on empty cache error = %v, want ErrCacheMiss", err)
	}

	if err := c.Save(ctx, sampleData()); err != nil {
		t.Fatalf("Save() error: %v", err)
	}

	data, savedAt, err := c.Load(ctx)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if !savedAt.Equal(time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)) {
		t.Errorf("savedAt = %v", savedAt)
	}
	if len(data.Tasks) != 1 || data.Tasks[0].Title != "Pay rent" {
		t.Errorf("tasks = %+v", data.Tasks)
	}
	if got := data.Shopping["supermarket"]; len(got) != 1 || got[0].Quantity != 2 {
		t.Errorf("supermarket list = %+v", got)
	}
	pt := data.Projects[0].Tasks[0]
	if !pt.IsRunning || pt.StartTime == nil || pt.TimeSpent != time.Minute {
		t.Errorf("project task = %+v", pt)
	}

	if _, err := os.Stat(path + ".tmp"); !os.IsNotExist(err) {
		t.Errorf("temporary file left behind: %v", err)
	}
}

func TestFileCacheCorrupted(t *testing.T) {
	path := filepath.Join(t.TempDir(), "snapshot.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o600); err != nil {
		t.Fatal(err)
	}
	c := NewFileCache(path)
	defer c.Close()

	if _, _, err := c.Load(context.Background()); err == nil || errors.Is(err, ports.ErrCacheMiss) {
		t.Errorf("Load() error = %v, want a decode error", err)
	}
}

func TestNopCache(t *testing.T) {
	var c Nop
	if err := c.Save(context.Background(), sampleData()); err != nil {
		t.Fatalf("Save() error: %v", err)
	}
	if _, _, err := c.Load(context.Background()); !errors.Is(err, ports.ErrCacheMiss) {
		t.Errorf("Load() error = %v, want ErrCacheMiss", err)
	}
}

// TestRedisCacheRoundTrip needs a reachable server: REDIS_ADDR=localhost:6379.
func TestRedisCacheRoundTrip(t *testing.T) {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set")
	}

	client := redis.NewClient(&redis.Options{Addr: addr})
	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		t.Skipf("redis not reachable: %v", err)
	}

	key := "agenda:test:" + t.Name()
	c := NewRedisCacheWithClient(client, key, time.Minute)
	defer c.Close()
	defer client.Del(ctx, key)

	if _, _, err := c.Load(ctx); !errors.Is(err, ports.ErrCacheMiss) {
		t.Fatalf("Load() on empty key error = %v, want ErrCacheMiss", err)
	}
	if err := c.Save(ctx, sampleData()); err != nil {
		t.Fatalf("Save() error: %v", err)
	}
	data, _, err := c.Load(ctx)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if len(data.Projects) != 1 || data.Projects[0].Name != "Thesis" {
		t.Errorf("projects = %+v", data.Projects)
	}
}
