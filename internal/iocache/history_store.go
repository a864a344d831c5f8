package iocache

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/keithrbennett/covloupe/internal/contract"
	"github.com/keithrbennett/covloupe/schema"

	// Database drivers registered with database/sql.
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"
)

// Table names for coverage history.
const (
	runsTable      = "covloupe_runs"
	fileStatsTable = "covloupe_file_stats"
)

// HistoryStoreImpl implements the HistoryStore interface.
type HistoryStoreImpl struct {
	db      *sql.DB
	backend schema.DatabaseBackend
	connStr string
}

var _ contract.HistoryStore = &HistoryStoreImpl{} // Compile-time check

// NewHistoryStore creates a new HistoryStore with the specified backend.
func NewHistoryStore(backend schema.DatabaseBackend, connStr string) (contract.HistoryStore, error) {
	if backend == schema.NoneBackend {
		// No-op store for disabled tracking
		return &HistoryStoreImpl{backend: backend}, nil
	}

	db, connStr, err := openDB(backend, connStr)
	if err != nil {
		return nil, err
	}

	// Ping to verify connection
	if err := db.Ping(); err != nil {
		_ = db.Close()
		var connDetail string
		switch backend {
		case schema.MySQLBackend:
			connDetail = "Check that MySQL is running and the connection string is correct. Ensure user/password are valid."
		case schema.PostgreSQLBackend:
			connDetail = "Check that PostgreSQL is running and the connection string is correct. Ensure user/password are valid."
		default:
			connDetail = "Verify the database file is writable."
		}
		return nil, fmt.Errorf("failed to connect to %s database: %w. %s", backend, err, connDetail)
	}

	if err := createHistoryTables(db, backend); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create history tables: %w", err)
	}

	return &HistoryStoreImpl{db: db, backend: backend, connStr: connStr}, nil
}

// openDB opens a connection for backend. MySQL connection strings get
// parseTime enabled so DATETIME columns scan into time.Time.
func openDB(backend schema.DatabaseBackend, connStr string) (*sql.DB, string, error) {
	switch backend {
	case schema.SQLiteBackend:
		dbPath := connStr
		if dbPath == "" {
			dbPath = contract.GetHistoryDBFilePath()
		}
		db, err := sql.Open("sqlite", dbPath)
		if err != nil {
			return nil, "", fmt.Errorf("failed to open SQLite database at %q: %w. Check that the directory is writable", dbPath, err)
		}
		// Limit SQLite to a single open connection to avoid "database is locked" errors
		db.SetMaxOpenConns(1)
		return db, dbPath, nil

	case schema.MySQLBackend:
		cfg, err := mysql.ParseDSN(connStr)
		if err != nil {
			return nil, "", fmt.Errorf("invalid MySQL connection string: %w. Expected format: user:password@tcp(host:port)/dbname", err)
		}
		cfg.ParseTime = true
		dsn := cfg.FormatDSN()
		db, err := sql.Open("mysql", dsn)
		if err != nil {
			return nil, "", fmt.Errorf("failed to open MySQL database: %w", err)
		}
		return db, dsn, nil

	case schema.PostgreSQLBackend:
		db, err := sql.Open("pgx", connStr)
		if err != nil {
			return nil, "", fmt.Errorf("failed to open PostgreSQL database: %w. Check connection string format: host=... dbname=... user=...", err)
		}
		return db, connStr, nil

	default:
		return nil, "", fmt.Errorf("unsupported backend: %s", backend)
	}
}

// withMultiStatements enables multi-statement execution on a MySQL DSN, which
// migration scripts need.
func withMultiStatements(connStr string) (string, error) {
	cfg, err := mysql.ParseDSN(connStr)
	if err != nil {
		return "", fmt.Errorf("invalid MySQL connection string: %w", err)
	}
	cfg.MultiStatements = true
	return cfg.FormatDSN(), nil
}

// createHistoryTables creates the history tables when they do not exist yet.
func createHistoryTables(db *sql.DB, backend schema.DatabaseBackend) error {
	tables := []struct {
		name  string
		query string
	}{
		{runsTable, getCreateRunsQuery(backend)},
		{fileStatsTable, getCreateFileStatsQuery(backend)},
	}

	for _, table := range tables {
		if _, err := db.Exec(table.query); err != nil {
			return fmt.Errorf("failed to create table %s: %w", table.name, err)
		}
	}
	return nil
}

// getCreateRunsQuery returns the CREATE TABLE query for covloupe_runs.
func getCreateRunsQuery(backend schema.DatabaseBackend) string {
	quotedTableName := quoteTableName(runsTable, backend)

	switch backend {
	case schema.MySQLBackend:
		return fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS %s (
				run_id BIGINT AUTO_INCREMENT PRIMARY KEY,
				recorded_at DATETIME(6) NOT NULL,
				root VARCHAR(1024) NOT NULL,
				resultset_path VARCHAR(1024) NOT NULL,
				coverage_timestamp BIGINT NOT NULL,
				covered_lines INT NOT NULL,
				total_lines INT NOT NULL,
				percentage DOUBLE NOT NULL,
				files_total INT NOT NULL,
				files_stale INT NOT NULL
			);
		`, quotedTableName)

	case schema.PostgreSQLBackend:
		return fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS %s (
				run_id BIGSERIAL PRIMARY KEY,
				recorded_at TIMESTAMPTZ NOT NULL,
				root TEXT NOT NULL,
				resultset_path TEXT NOT NULL,
				coverage_timestamp BIGINT NOT NULL,
				covered_lines INT NOT NULL,
				total_lines INT NOT NULL,
				percentage DOUBLE PRECISION NOT NULL,
				files_total INT NOT NULL,
				files_stale INT NOT NULL
			);
		`, quotedTableName)

	default: // SQLite
		return fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS %s (
				run_id INTEGER PRIMARY KEY AUTOINCREMENT,
				recorded_at TEXT NOT NULL,
				root TEXT NOT NULL,
				resultset_path TEXT NOT NULL,
				coverage_timestamp INTEGER NOT NULL,
				covered_lines INTEGER NOT NULL,
				total_lines INTEGER NOT NULL,
				percentage REAL NOT NULL,
				files_total INTEGER NOT NULL,
				files_stale INTEGER NOT NULL
			);
		`, quotedTableName)
	}
}

// getCreateFileStatsQuery returns the CREATE TABLE query for covloupe_file_stats.
func getCreateFileStatsQuery(backend schema.DatabaseBackend) string {
	quotedTableName := quoteTableName(fileStatsTable, backend)

	switch backend {
	case schema.MySQLBackend:
		return fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS %s (
				run_id BIGINT NOT NULL,
				file_path VARCHAR(512) NOT NULL,
				covered INT NOT NULL,
				total INT NOT NULL,
				percentage DOUBLE NOT NULL,
				stale VARCHAR(32) NOT NULL,
				PRIMARY KEY (run_id, file_path)
			);
		`, quotedTableName)

	case schema.PostgreSQLBackend:
		return fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS %s (
				run_id BIGINT NOT NULL,
				file_path TEXT NOT NULL,
				covered INT NOT NULL,
				total INT NOT NULL,
				percentage DOUBLE PRECISION NOT NULL,
				stale TEXT NOT NULL,
				PRIMARY KEY (run_id, file_path)
			);
		`, quotedTableName)

	default: // SQLite
		return fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS %s (
				run_id INTEGER NOT NULL,
				file_path TEXT NOT NULL,
				covered INTEGER NOT NULL,
				total INTEGER NOT NULL,
				percentage REAL NOT NULL,
				stale TEXT NOT NULL,
				PRIMARY KEY (run_id, file_path)
			);
		`, quotedTableName)
	}
}

// RecordRun stores a run and its file rows in one transaction and returns the run ID.
func (hs *HistoryStoreImpl) RecordRun(run schema.HistoryRunRecord, files []schema.HistoryFileRecord) (int64, error) {
	// Skip for NoneBackend
	if hs.backend == schema.NoneBackend || hs.db == nil {
		return 0, nil
	}

	tx, err := hs.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	quotedRuns := quoteTableName(runsTable, hs.backend)
	args := []any{
		formatTime(run.RecordedAt, hs.backend), run.Root, run.ResultsetPath, run.CoverageTimestamp,
		run.CoveredLines, run.TotalLines, run.Percentage, run.FilesTotal, run.FilesStale,
	}

	var runID int64
	switch hs.backend {
	case schema.PostgreSQLBackend:
		query := fmt.Sprintf(`INSERT INTO %s (recorded_at, root, resultset_path, coverage_timestamp,
			covered_lines, total_lines, percentage, files_total, files_stale)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9) RETURNING run_id`, quotedRuns)
		err = tx.QueryRow(query, args...).Scan(&runID)
	default: // SQLite and MySQL
		query := fmt.Sprintf(`INSERT INTO %s (recorded_at, root, resultset_path, coverage_timestamp,
			covered_lines, total_lines, percentage, files_total, files_stale)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`, quotedRuns)
		var result sql.Result
		result, err = tx.Exec(query, args...)
		if err == nil {
			runID, err = result.LastInsertId()
		}
	}
	if err != nil {
		return 0, fmt.Errorf("failed to insert run: %w", err)
	}

	quotedFiles := quoteTableName(fileStatsTable, hs.backend)
	var fileQuery string
	switch hs.backend {
	case schema.PostgreSQLBackend:
		fileQuery = fmt.Sprintf(`INSERT INTO %s (run_id, file_path, covered, total, percentage, stale)
			VALUES ($1, $2, $3, $4, $5, $6)`, quotedFiles)
	default: // SQLite and MySQL
		fileQuery = fmt.Sprintf(`INSERT INTO %s (run_id, file_path, covered, total, percentage, stale)
			VALUES (?, ?, ?, ?, ?, ?)`, quotedFiles)
	}

	stmt, err := tx.Prepare(fileQuery)
	if err != nil {
		return 0, fmt.Errorf("failed to prepare file insert: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for _, f := range files {
		if _, err := stmt.Exec(runID, f.FilePath, f.Covered, f.Total, f.Percentage, f.Stale); err != nil {
			return 0, fmt.Errorf("failed to insert file stats for %s: %w", f.FilePath, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit run: %w", err)
	}
	return runID, nil
}

// Close closes the underlying connection.
func (hs *HistoryStoreImpl) Close() error {
	if hs.db != nil {
		return hs.db.Close()
	}
	return nil
}

// GetStatus returns status information about the history store.
func (hs *HistoryStoreImpl) GetStatus() (schema.HistoryStatus, error) {
	status := schema.HistoryStatus{
		Backend:    string(hs.backend),
		Connected:  hs.db != nil,
		TableSizes: make(map[string]int64),
	}

	if hs.backend == schema.NoneBackend || hs.db == nil {
		return status, nil
	}

	quotedRuns := quoteTableName(runsTable, hs.backend)

	row := hs.db.QueryRow(fmt.Sprintf("SELECT COUNT(*) FROM %s", quotedRuns))
	if err := row.Scan(&status.TotalRuns); err != nil {
		return status, fmt.Errorf("failed to get total runs: %w", err)
	}

	if status.TotalRuns > 0 {
		lastQuery := fmt.Sprintf("SELECT run_id, recorded_at, percentage FROM %s ORDER BY run_id DESC LIMIT 1", quotedRuns)
		var lastAt any
		if err := hs.db.QueryRow(lastQuery).Scan(&status.LastRunID, hs.timeDest(&lastAt), &status.LastPercentage); err != nil {
			return status, fmt.Errorf("failed to get last run info: %w", err)
		}
		t, err := hs.scannedTime(lastAt)
		if err != nil {
			return status, fmt.Errorf("failed to parse last run time: %w", err)
		}
		status.LastRunTime = t

		oldestQuery := fmt.Sprintf("SELECT recorded_at FROM %s ORDER BY run_id ASC LIMIT 1", quotedRuns)
		var oldestAt any
		if err := hs.db.QueryRow(oldestQuery).Scan(hs.timeDest(&oldestAt)); err != nil {
			return status, fmt.Errorf("failed to get oldest run time: %w", err)
		}
		if status.OldestRunTime, err = hs.scannedTime(oldestAt); err != nil {
			return status, fmt.Errorf("failed to parse oldest run time: %w", err)
		}
	}

	for _, table := range []string{runsTable, fileStatsTable} {
		countQuery := fmt.Sprintf("SELECT COUNT(*) FROM %s", quoteTableName(table, hs.backend))
		var count int64
		if err := hs.db.QueryRow(countQuery).Scan(&count); err != nil {
			return status, fmt.Errorf("failed to get count for table %s: %w", table, err)
		}
		status.TableSizes[table] = count
	}

	status.SizeBytes = hs.sizeBytes()
	return status, nil
}

// sizeBytes estimates the storage used by the history tables. Failures give 0.
func (hs *HistoryStoreImpl) sizeBytes() int64 {
	var size int64
	switch hs.backend {
	case schema.SQLiteBackend:
		row := hs.db.QueryRow("SELECT page_count * page_size FROM pragma_page_count(), pragma_page_size()")
		if err := row.Scan(&size); err != nil {
			return 0
		}
	case schema.MySQLBackend:
		cfg, err := mysql.ParseDSN(hs.connStr)
		if err != nil || cfg.DBName == "" {
			return 0
		}
		query := `SELECT COALESCE(SUM(data_length + index_length), 0) FROM information_schema.tables
			WHERE table_schema = ? AND table_name IN (?, ?)`
		if err := hs.db.QueryRow(query, cfg.DBName, runsTable, fileStatsTable).Scan(&size); err != nil {
			return 0
		}
	case schema.PostgreSQLBackend:
		query := "SELECT pg_total_relation_size($1) + pg_total_relation_size($2)"
		if err := hs.db.QueryRow(query, runsTable, fileStatsTable).Scan(&size); err != nil {
			return 0
		}
	}
	return size
}

// GetAllRuns retrieves all runs from the store, oldest first.
func (hs *HistoryStoreImpl) GetAllRuns() ([]schema.HistoryRunRecord, error) {
	// Skip for NoneBackend
	if hs.backend == schema.NoneBackend || hs.db == nil {
		return nil, nil
	}

	query := fmt.Sprintf(`SELECT run_id, recorded_at, root, resultset_path, coverage_timestamp,
		covered_lines, total_lines, percentage, files_total, files_stale
		FROM %s ORDER BY run_id`, quoteTableName(runsTable, hs.backend))

	rows, err := hs.db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var results []schema.HistoryRunRecord
	for rows.Next() {
		var record schema.HistoryRunRecord
		var recordedAt any
		if err := rows.Scan(&record.RunID, hs.timeDest(&recordedAt), &record.Root, &record.ResultsetPath,
			&record.CoverageTimestamp, &record.CoveredLines, &record.TotalLines, &record.Percentage,
			&record.FilesTotal, &record.FilesStale); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		if record.RecordedAt, err = hs.scannedTime(recordedAt); err != nil {
			return nil, fmt.Errorf("failed to parse recorded_at: %w", err)
		}
		results = append(results, record)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating runs: %w", err)
	}
	return results, nil
}

// GetAllFileStats retrieves all per-file rows from the store.
func (hs *HistoryStoreImpl) GetAllFileStats() ([]schema.HistoryFileRecord, error) {
	// Skip for NoneBackend
	if hs.backend == schema.NoneBackend || hs.db == nil {
		return nil, nil
	}

	query := fmt.Sprintf(`SELECT run_id, file_path, covered, total, percentage, stale
		FROM %s ORDER BY run_id, file_path`, quoteTableName(fileStatsTable, hs.backend))

	rows, err := hs.db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to query file stats: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var results []schema.HistoryFileRecord
	for rows.Next() {
		var record schema.HistoryFileRecord
		if err := rows.Scan(&record.RunID, &record.FilePath, &record.Covered, &record.Total,
			&record.Percentage, &record.Stale); err != nil {
			return nil, fmt.Errorf("failed to scan file stats: %w", err)
		}
		results = append(results, record)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating file stats: %w", err)
	}
	return results, nil
}

// timeDest returns the scan destination for a time column. SQLite stores
// RFC3339 text; the other backends scan native timestamps.
func (hs *HistoryStoreImpl) timeDest(dst *any) any {
	if hs.backend == schema.SQLiteBackend {
		s := new(string)
		*dst = s
		return s
	}
	t := new(time.Time)
	*dst = t
	return t
}

// scannedTime converts a value filled through timeDest into a time.Time.
func (hs *HistoryStoreImpl) scannedTime(v any) (time.Time, error) {
	switch x := v.(type) {
	case *string:
		return time.Parse(time.RFC3339Nano, *x)
	case *time.Time:
		return *x, nil
	default:
		return time.Time{}, fmt.Errorf("unexpected time value %T", v)
	}
}

// formatTime converts a time.Time to the appropriate format for the backend.
func formatTime(t time.Time, backend schema.DatabaseBackend) any {
	switch backend {
	case schema.SQLiteBackend:
		return t.UTC().Format(time.RFC3339Nano)
	default:
		return t
	}
}

// quoteTableName returns the properly quoted table name for the given backend.
func quoteTableName(name string, backend schema.DatabaseBackend) string {
	switch backend {
	case schema.MySQLBackend:
		return fmt.Sprintf("`%s`", name)
	default: // SQLite and PostgreSQL
		return fmt.Sprintf("\"%s\"", name)
	}
}
