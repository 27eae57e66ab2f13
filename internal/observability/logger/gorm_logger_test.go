package logger

import "testing"

func TestOperationAndTableFromSQL(t *testing.T) {
	cases := []struct {
		sql       string
		operation string
		table     string
	}{
		{sql: "SELECT id FROM applications WHERE id = ?", operation: "SELECT", table: "applications"},
		{sql: "INSERT INTO vessels (id) VALUES (?)", operation: "INSERT", table: "vessels"},
		{sql: "UPDATE webhook_events SET processed_at = ?", operation: "UPDATE", table: "webhook_events"},
		{sql: "WITH x AS (SELECT 1) DELETE FROM passengers", operation: "SELECT", table: "passengers"},
		{sql: "", operation: "UNKNOWN", table: ""},
	}

	for _, tc := range cases {
		if got := operationFromSQL(tc.sql); got != tc.operation {
			t.Fatalf("operationFromSQL(%q) = %q, want %q", tc.sql, got, tc.operation)
		}
		if got := tableFromSQL(tc.sql); got != tc.table {
			t.Fatalf("tableFromSQL(%q) = %q, want %q", tc.sql, got, tc.table)
		}
	}
}
