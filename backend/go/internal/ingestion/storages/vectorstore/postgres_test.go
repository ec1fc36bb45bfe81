package vectorstore

import (
	"strings"
	"testing"
)

func TestVectorLiteral(t *testing.T) {
	if got := vectorLiteral([]float32{1, 2.5, -0.125}); got != "[1,2.5,-0.125]" {
		t.Errorf("vectorLiteral() = %s", got)
	}
	if got := vectorLiteral(nil); got != "[]" {
		t.Errorf("vectorLiteral(nil) = %s", got)
	}
}

func TestUpsertQuery_QuotesTable(t *testing.T) {
	q := upsertQuery(`repo"chunks`)
	if !strings.Contains(q, `INSERT INTO "repo""chunks"`) {
		t.Errorf("table name is not sanitized: %s", q)
	}
	if !strings.Contains(q, "ON CONFLICT (id) DO UPDATE") {
		t.Errorf("query must upsert: %s", q)
	}
}
