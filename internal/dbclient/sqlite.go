package dbclient

import (
	"mongocsvexport/internal/domain"

	_ "modernc.org/sqlite"
)

// buildSQLiteDSN opens an external SQLite file read-mostly, in WAL mode with
// a busy timeout so exports can run while another process writes.
func buildSQLiteDSN(conn *domain.DatabaseConnection) string {
	return conn.Host + "?_journal_mode=WAL&_busy_timeout=5000"
}
