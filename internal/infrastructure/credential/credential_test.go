package credential

import (
	"errors"
	"testing"

	"github.com/taskmaster/agenda/internal/infrastructure/config"
)

func fileKeyring(t *testing.T) config.KeyringConfig {
	t.Helper()
	return config.KeyringConfig{
		Enabled: true,
		Service: "agenda-test",
		Key:     "database-password",
		Backend: "file",
		FileDir: t.TempDir(),
	}
}

func TestStoreRoundTrip(t *testing.T) {
	store, err := Open(fileKeyring(t))
	if err != nil {
		t.Fatalf("Open() error: %v", err)
	}

	if err := store.Set("database-password", "s3cret"); err != nil {
		t.Fatalf("Set() error: %v", err)
	}
	got, err := store.Get("database-password")
	if err != nil {
		t.Fatalf("Get() error: %v", err)
	}
	if got != "s3cret" {
		t.Errorf("Get() = %q, want %q", got, "s3cret")
	}

	if err := store.Delete("database-password"); err != nil {
		t.Fatalf("Delete() error: %v", err)
	}
	if _, err := store.Get("database-password"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get() after Delete error = %v, want ErrNotFound", err)
	}
}

func TestResolveDatabasePassword(t *testing.T) {
	kc := fileKeyring(t)
	store, err := Open(kc)
	if err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	if err := store.Set(kc.Key, "from-keyring"); err != nil {
		t.Fatalf("Set() error: %v", err)
	}

	tests := []struct {
		name string
		cfg  config.DatabaseConfig
		want string
	}{
		{"keyring fills empty password", config.DatabaseConfig{Driver: "postgres", Keyring: kc}, "from-keyring"},
		{"explicit password wins", config.DatabaseConfig{Driver: "postgres", Password: "explicit", Keyring: kc}, "explicit"},
		{"sqlite ignores keyring", config.DatabaseConfig{Driver: "sqlite", Keyring: kc}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := tt.cfg
			if err := ResolveDatabasePassword(&cfg); err != nil {
				t.Fatalf("ResolveDatabasePassword() error: %v", err)
			}
			if cfg.Password != tt.want {
				t.Errorf("Password = %q, want %q", cfg.Password, tt.want)
			}
		})
	}
}
