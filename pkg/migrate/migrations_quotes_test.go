package migrate_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/laundrylink/laundrylink-backend/pkg/migrate"
)

func TestQuoteMigrationContainsConstraints(t *testing.T) {
	matches, err := filepath.Glob(filepath.Join("migrations", "*_create_delivery_quotes.sql"))
	if err != nil {
		t.Fatalf("glob migrations: %v", err)
	}
	if len(matches) == 0 {
		t.Fatalf("no delivery quotes migration file found")
	}

	data, err := os.ReadFile(matches[0])
	if err != nil {
		t.Fatalf("read migration file: %v", err)
	}
	content := string(data)

	checks := []string{
		"CREATE TYPE service_type AS ENUM",
		"CREATE TYPE quote_status AS ENUM",
		"CREATE TABLE IF NOT EXISTS delivery_quotes",
		"CREATE UNIQUE INDEX IF NOT EXISTS idx_delivery_quotes_quote_id",
		"CREATE INDEX IF NOT EXISTS idx_delivery_quotes_status_expires",
		"DROP TABLE IF EXISTS delivery_quotes",
	}

	for _, sub := range checks {
		if !strings.Contains(content, sub) {
			t.Errorf("missing expected statement %q", sub)
		}
	}
}

func TestDeliveryMigrationContainsIdempotencyIndexes(t *testing.T) {
	matches, err := filepath.Glob(filepath.Join("migrations", "*_create_deliveries_and_orders.sql"))
	if err != nil {
		t.Fatalf("glob migrations: %v", err)
	}
	if len(matches) == 0 {
		t.Fatalf("no deliveries migration file found")
	}

	data, err := os.ReadFile(matches[0])
	if err != nil {
		t.Fatalf("read migration file: %v", err)
	}
	content := string(data)

	checks := []string{
		"CREATE UNIQUE INDEX IF NOT EXISTS idx_deliveries_idempotency_key",
		"CREATE UNIQUE INDEX IF NOT EXISTS idx_deliveries_delivery_uid",
		"CREATE UNIQUE INDEX IF NOT EXISTS idx_deliveries_quote_id",
		"CREATE UNIQUE INDEX IF NOT EXISTS idx_orders_uuid",
		"CREATE UNIQUE INDEX IF NOT EXISTS idx_delivery_attempts_idempotency_key",
		"WHERE resolved_at IS NULL",
	}

	for _, sub := range checks {
		if !strings.Contains(content, sub) {
			t.Errorf("missing expected statement %q", sub)
		}
	}
}

func TestManifestMigrationEnforcesSingleOwner(t *testing.T) {
	matches, err := filepath.Glob(filepath.Join("migrations", "*_create_manifest_items.sql"))
	if err != nil {
		t.Fatalf("glob migrations: %v", err)
	}
	if len(matches) == 0 {
		t.Fatalf("no manifest items migration file found")
	}

	data, err := os.ReadFile(matches[0])
	if err != nil {
		t.Fatalf("read migration file: %v", err)
	}
	content := string(data)

	checks := []string{
		"CONSTRAINT chk_manifest_items_single_owner CHECK",
		"REFERENCES delivery_quotes(id) ON DELETE CASCADE",
		"REFERENCES deliveries(id) ON DELETE CASCADE",
		"REFERENCES orders(id) ON DELETE CASCADE",
	}

	for _, sub := range checks {
		if !strings.Contains(content, sub) {
			t.Errorf("missing expected statement %q", sub)
		}
	}
}

func TestOutboxMigrationContainsDedupeIndex(t *testing.T) {
	matches, err := filepath.Glob(filepath.Join("migrations", "*_create_outbox_tables.sql"))
	if err != nil {
		t.Fatalf("glob migrations: %v", err)
	}
	if len(matches) == 0 {
		t.Fatalf("no outbox migration file found")
	}

	data, err := os.ReadFile(matches[0])
	if err != nil {
		t.Fatalf("read migration file: %v", err)
	}
	content := string(data)

	checks := []string{
		"CREATE UNIQUE INDEX IF NOT EXISTS ux_outbox_events_event_aggregate",
		"CREATE TABLE IF NOT EXISTS outbox_events",
		"CREATE TABLE IF NOT EXISTS outbox_dlq",
		"'delivery_recovered'",
	}

	for _, sub := range checks {
		if !strings.Contains(content, sub) {
			t.Errorf("missing expected statement %q", sub)
		}
	}
}

func TestMigrationDirValidates(t *testing.T) {
	if err := migrate.ValidateDir("migrations"); err != nil {
		t.Fatalf("validate migrations dir: %v", err)
	}
}
