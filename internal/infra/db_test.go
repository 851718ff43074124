package infra

import (
	"io/fs"
	"strings"
	"testing"

	"ridedesk/migrations"
)

func TestSplitSQLDropsCommentsAndBlanks(t *testing.T) {
	in := `-- header
CREATE TABLE a (id TEXT);

-- second
CREATE INDEX a_idx ON a (id);
`
	stmts := SplitSQL(StripSQLComments(in))
	if len(stmts) != 2 {
		t.Fatalf("expected 2 statements, got %d: %q", len(stmts), stmts)
	}
	if !strings.HasPrefix(stmts[0], "CREATE TABLE") || !strings.HasPrefix(stmts[1], "CREATE INDEX") {
		t.Fatalf("unexpected statements: %q", stmts)
	}
}

func TestEmbeddedSchemaHasCoreTables(t *testing.T) {
	content, err := fs.ReadFile(migrations.FS, "0001_init.sql")
	if err != nil {
		t.Fatalf("read schema: %v", err)
	}
	for _, table := range []string{"trips", "trip_offers", "trip_events"} {
		if !strings.Contains(string(content), "CREATE TABLE IF NOT EXISTS "+table+" ") {
			t.Fatalf("schema missing table %s", table)
		}
	}
}
