package store

import (
	"database/sql"
	"fmt"
	"log"
	"sync"

	_ "modernc.org/sqlite"

	"BreadthSentinel/internal/model"
)

// SQLiteStore persists the breadth series and symbol states to SQLite.
type SQLiteStore struct {
	db *sql.DB
	mu sync.Mutex
}

// NewSQLiteStore opens (or creates) the database and runs migrations.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// WAL mode so API reads don't block a refresh pass mid-write.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	s := &SQLiteStore{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	log.Printf("[INFO] sqlite store opened: %s", dbPath)
	return s, nil
}

func (s *SQLiteStore) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS breadth_series (
			date             TEXT PRIMARY KEY,
			percentage_above REAL NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS symbol_states (
			symbol   TEXT PRIMARY KEY,
			last_ema REAL NOT NULL,
			date     TEXT NOT NULL
		)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("exec %q: %w", stmt[:40], err)
		}
	}
	return nil
}

func (s *SQLiteStore) LoadSeries() ([]model.BreadthPoint, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.Query(`SELECT date, percentage_above FROM breadth_series ORDER BY date ASC`)
	if err != nil {
		return nil, fmt.Errorf("load series: %w", err)
	}
	defer rows.Close()

	var points []model.BreadthPoint
	for rows.Next() {
		var p model.BreadthPoint
		if err := rows.Scan(&p.Date, &p.PercentageAbove); err != nil {
			return nil, fmt.Errorf("scan series row: %w", err)
		}
		points = append(points, p)
	}
	return points, rows.Err()
}

// SaveSeries upserts all points in a single transaction so a pass is
// persisted atomically from the caller's point of view.
func (s *SQLiteStore) SaveSeries(points []model.BreadthPoint) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin save series: %w", err)
	}
	stmt, err := tx.Prepare(`INSERT OR REPLACE INTO breadth_series (date, percentage_above) VALUES (?, ?)`)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("prepare save series: %w", err)
	}
	defer stmt.Close()

	for _, p := range points {
		if _, err := stmt.Exec(p.Date, p.PercentageAbove); err != nil {
			tx.Rollback()
			return fmt.Errorf("save point %s: %w", p.Date, err)
		}
	}
	return tx.Commit()
}

func (s *SQLiteStore) LoadSymbolStates() ([]model.SymbolState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.Query(`SELECT symbol, last_ema, date FROM symbol_states ORDER BY symbol ASC`)
	if err != nil {
		return nil, fmt.Errorf("load symbol states: %w", err)
	}
	defer rows.Close()

	var states []model.SymbolState
	for rows.Next() {
		var st model.SymbolState
		if err := rows.Scan(&st.Symbol, &st.LastEMA, &st.Date); err != nil {
			return nil, fmt.Errorf("scan state row: %w", err)
		}
		states = append(states, st)
	}
	return states, rows.Err()
}

func (s *SQLiteStore) SaveSymbolStates(states []model.SymbolState) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin save states: %w", err)
	}
	stmt, err := tx.Prepare(`INSERT OR REPLACE INTO symbol_states (symbol, last_ema, date) VALUES (?, ?, ?)`)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("prepare save states: %w", err)
	}
	defer stmt.Close()

	for _, st := range states {
		if _, err := stmt.Exec(st.Symbol, st.LastEMA, st.Date); err != nil {
			tx.Rollback()
			return fmt.Errorf("save state %s: %w", st.Symbol, err)
		}
	}
	return tx.Commit()
}

func (s *SQLiteStore) Close() error {
	log.Println("[INFO] closing sqlite store")
	return s.db.Close()
}
