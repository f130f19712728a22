package sqlite

import (
	"context"
	"errors"
	"testing"

	"github.com/sakif/linkspark/internal/model"
)

// newTestDB opens a fresh in-memory database with all migrations applied.
func newTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := New(":memory:")
	if err != nil {
		t.Fatalf("failed to create test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// registerTestUser creates an email account with a profile and fails the
// test on error.
func registerTestUser(t *testing.T, db *DB, email, username string) (*model.User, *model.Profile) {
	t.Helper()
	user := &model.User{Email: email, PasswordHash: "hash"}
	profile := &model.Profile{
		Username:    username,
		DisplayName: username,
		TemplateID:  "black_white",
	}
	if err := db.CreateWithProfile(context.Background(), user, profile); err != nil {
		t.Fatalf("failed to register test user: %v", err)
	}
	return user, profile
}

func TestNew_AppliesMigrations(t *testing.T) {
	db := newTestDB(t)

	version, err := db.MigrationVersion(context.Background())
	if err != nil {
		t.Fatalf("MigrationVersion() error = %v", err)
	}
	if version < 1 {
		t.Errorf("MigrationVersion() = %d, want >= 1", version)
	}
}

func TestDriverFor(t *testing.T) {
	tests := []struct {
		dsn  string
		want string
	}{
		{"data/linkspark.db", "sqlite"},
		{":memory:", "sqlite"},
		{"file:test.db?cache=shared", "sqlite"},
		{"libsql://db-org.turso.io?authToken=x", "libsql"},
		{"wss://db-org.turso.io", "libsql"},
	}
	for _, tt := range tests {
		if got := driverFor(tt.dsn); got != tt.want {
			t.Errorf("driverFor(%q) = %q, want %q", tt.dsn, got, tt.want)
		}
	}
}

func TestUniqueViolation(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantColumn string
		wantOK     bool
	}{
		{"nil", nil, "", false},
		{"other error", errors.New("disk I/O error"), "", false},
		{
			name:       "username",
			err:        errors.New("constraint failed: UNIQUE constraint failed: profiles.username (2067)"),
			wantColumn: "profiles.username",
			wantOK:     true,
		},
		{
			name:       "email at end",
			err:        errors.New("UNIQUE constraint failed: users.email"),
			wantColumn: "users.email",
			wantOK:     true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			column, ok := uniqueViolation(tt.err)
			if ok != tt.wantOK || column != tt.wantColumn {
				t.Errorf("uniqueViolation() = (%q, %v), want (%q, %v)", column, ok, tt.wantColumn, tt.wantOK)
			}
		})
	}
}
