package migrations

import (
	"io/fs"
	"strings"
	"testing"
)

func TestInitMigrationContainsSchema(t *testing.T) {
	data, err := fs.ReadFile(FS, "00001_init.sql")
	if err != nil {
		t.Fatalf("read migration file: %v", err)
	}
	content := string(data)

	checks := []string{
		"-- +goose Up",
		"-- +goose Down",
		"CREATE TABLE IF NOT EXISTS products",
		"version     BIGINT NOT NULL DEFAULT 1",
		"CREATE TABLE IF NOT EXISTS transactions",
		"CHECK (type IN ('sale','arrival','refund','swap','correction'))",
		"CREATE TABLE IF NOT EXISTS transaction_items",
		"CREATE TABLE IF NOT EXISTS activity_logs",
		"CREATE TABLE IF NOT EXISTS idempotency_keys",
		"DROP TABLE IF EXISTS products",
	}
	for _, sub := range checks {
		if !strings.Contains(content, sub) {
			t.Errorf("missing expected statement %q", sub)
		}
	}
}

func TestMigrationsAreVersioned(t *testing.T) {
	entries, err := fs.Glob(FS, "*.sql")
	if err != nil {
		t.Fatalf("glob migrations: %v", err)
	}
	if len(entries) == 0 {
		t.Fatal("no migrations embedded")
	}
	for _, name := range entries {
		if len(name) < 6 || strings.IndexFunc(name[:5], func(r rune) bool { return r < '0' || r > '9' }) >= 0 {
			t.Errorf("migration %q lacks a numeric version prefix", name)
		}
	}
}
