package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"tessera/internal"
)

type DB struct {
	conn *sql.DB
}

func Open(path string) (*DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	if _, err := conn.Exec(`PRAGMA journal_mode = WAL;`); err != nil {
		_ = conn.Close()
		return nil, err
	}

	db := &DB{conn: conn}
	if err := db.init(); err != nil {
		_ = conn.Close()
		return nil, err
	}

	return db, nil
}

func (d *DB) Close() error {
	return d.conn.Close()
}

func (d *DB) init() error {
	schema := `
CREATE TABLE IF NOT EXISTS guests (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  fullName TEXT NOT NULL,
  salutation TEXT NOT NULL DEFAULT '',
  phone TEXT NOT NULL,
  email TEXT NOT NULL DEFAULT '',
  totalVisits INTEGER NOT NULL DEFAULT 0,
  isVip INTEGER NOT NULL DEFAULT 0,
  birthday TEXT,
  lastVisitAt TEXT,
  notes TEXT NOT NULL DEFAULT '',
  tags TEXT NOT NULL DEFAULT '',
  city TEXT NOT NULL DEFAULT 'doha',
  locationId INTEGER,
  createdAt TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP,
  updatedAt TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP,
  FOREIGN KEY(locationId) REFERENCES locations(id)
);
CREATE INDEX IF NOT EXISTS idx_guests_phone ON guests(phone);
CREATE INDEX IF NOT EXISTS idx_guests_email ON guests(email);

CREATE TABLE IF NOT EXISTS locations (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  name TEXT NOT NULL UNIQUE
);

CREATE TABLE IF NOT EXISTS import_runs (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  fileName TEXT NOT NULL,
  declaredRows INTEGER NOT NULL,
  processed INTEGER NOT NULL DEFAULT 0,
  created INTEGER NOT NULL DEFAULT 0,
  updated INTEGER NOT NULL DEFAULT 0,
  skipped INTEGER NOT NULL DEFAULT 0,
  failed INTEGER NOT NULL DEFAULT 0,
  status TEXT NOT NULL DEFAULT 'running',
  startedAt TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP,
  finishedAt TEXT
);
`

	_, err := d.conn.Exec(schema)
	return err
}

// ListIdentitySnapshot reads the (id, phone, email) projection the identity
// index is built from.
func (d *DB) ListIdentitySnapshot() ([]internal.IdentityRow, error) {
	rows, err := d.conn.Query(`SELECT id, phone, email FROM guests`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []internal.IdentityRow
	for rows.Next() {
		var row internal.IdentityRow
		if err := rows.Scan(&row.ID, &row.Phone, &row.Email); err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

func (d *DB) CreateGuest(f internal.GuestFields) (int64, error) {
	result, err := d.conn.Exec(`
INSERT INTO guests (fullName, salutation, phone, email, totalVisits, isVip, birthday, lastVisitAt, notes, tags, city, locationId)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
`, f.FullName, f.Salutation, f.Phone, f.Email, f.TotalVisits, boolToInt(f.IsVIP),
		timeToText(f.Birthday), timeToText(f.LastVisitAt), f.Notes, f.Tags, f.City, f.LocationID)
	if err != nil {
		return 0, err
	}
	return result.LastInsertId()
}

// UpdateGuest applies a sparse patch: only present fields reach the SET
// clause, so unmapped import columns never disturb stored values.
func (d *DB) UpdateGuest(id int64, patch internal.GuestPatch) error {
	sets := []string{}
	args := []any{}

	add := func(clause string, value any) {
		sets = append(sets, clause)
		args = append(args, value)
	}

	if patch.FullName != nil {
		add("fullName = ?", *patch.FullName)
	}
	if patch.Salutation != nil {
		add("salutation = ?", *patch.Salutation)
	}
	if patch.Email != nil {
		add("email = ?", *patch.Email)
	}
	if patch.TotalVisits != nil {
		add("totalVisits = ?", *patch.TotalVisits)
	}
	if patch.IsVIP != nil {
		add("isVip = ?", boolToInt(*patch.IsVIP))
	}
	if patch.Notes != nil {
		add("notes = ?", *patch.Notes)
	}
	if patch.Tags != nil {
		add("tags = ?", *patch.Tags)
	}
	if patch.City != nil {
		add("city = ?", *patch.City)
	}
	if patch.SetBirthday {
		add("birthday = ?", timeToText(patch.Birthday))
	}
	if patch.SetLastVisit {
		add("lastVisitAt = ?", timeToText(patch.LastVisitAt))
	}
	if patch.SetLocation {
		add("locationId = ?", patch.LocationID)
	}

	if len(sets) == 0 {
		return nil
	}
	sets = append(sets, "updatedAt = CURRENT_TIMESTAMP")

	args = append(args, id)
	query := fmt.Sprintf(`UPDATE guests SET %s WHERE id = ?`, strings.Join(sets, ", "))
	result, err := d.conn.Exec(query, args...)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("guest not found: id=%d", id)
	}
	return nil
}

func (d *DB) GetGuestByID(id int64) (*internal.GuestRow, error) {
	var row internal.GuestRow
	err := d.conn.QueryRow(`
SELECT id, fullName, salutation, phone, email, totalVisits, isVip, birthday, lastVisitAt, notes, tags, city, locationId
FROM guests WHERE id = ?
`, id).Scan(
		&row.ID, &row.FullName, &row.Salutation, &row.Phone, &row.Email, &row.TotalVisits,
		&row.IsVIP, &row.Birthday, &row.LastVisitAt, &row.Notes, &row.Tags, &row.City, &row.LocationID,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}

func (d *DB) CountGuests() (int, error) {
	var count int
	err := d.conn.QueryRow(`SELECT COUNT(*) FROM guests`).Scan(&count)
	return count, err
}

func (d *DB) AddLocation(name string) (int64, error) {
	var id int64
	err := d.conn.QueryRow(`SELECT id FROM locations WHERE name = ?`, name).Scan(&id)
	if err == nil {
		return id, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return 0, err
	}

	result, err := d.conn.Exec(`INSERT INTO locations (name) VALUES (?)`, name)
	if err != nil {
		return 0, err
	}
	return result.LastInsertId()
}

func (d *DB) ListLocations() ([]internal.LocationRow, error) {
	rows, err := d.conn.Query(`SELECT id, name FROM locations ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []internal.LocationRow
	for rows.Next() {
		var row internal.LocationRow
		if err := rows.Scan(&row.ID, &row.Name); err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

// ResolveLocationByName matches free location text against known location
// names, case-insensitive substring in either direction. Locations are few;
// the scan happens in memory.
func (d *DB) ResolveLocationByName(text string) (*int64, error) {
	needle := strings.ToLower(strings.TrimSpace(text))
	if needle == "" {
		return nil, nil
	}

	locations, err := d.ListLocations()
	if err != nil {
		return nil, err
	}
	for _, loc := range locations {
		name := strings.ToLower(loc.Name)
		if strings.Contains(needle, name) || strings.Contains(name, needle) {
			id := loc.ID
			return &id, nil
		}
	}
	return nil, nil
}

func (d *DB) BeginRun(fileName string, declaredRows int) (int64, error) {
	result, err := d.conn.Exec(`
INSERT INTO import_runs (fileName, declaredRows, status) VALUES (?, ?, 'running')
`, fileName, declaredRows)
	if err != nil {
		return 0, err
	}
	return result.LastInsertId()
}

func (d *DB) CompleteRun(runID int64, summary internal.RunSummary) error {
	result, err := d.conn.Exec(`
UPDATE import_runs
SET processed = ?, created = ?, updated = ?, skipped = ?, failed = ?, status = ?, finishedAt = CURRENT_TIMESTAMP
WHERE id = ?
`, summary.Processed, summary.Created, summary.Updated, summary.Skipped, summary.Failed, string(summary.Status), runID)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("import run not found: id=%d", runID)
	}
	return nil
}

func (d *DB) GetRun(runID int64) (*internal.ImportRunRow, error) {
	var row internal.ImportRunRow
	err := d.conn.QueryRow(`
SELECT id, fileName, declaredRows, processed, created, updated, skipped, failed, status, startedAt, finishedAt
FROM import_runs WHERE id = ?
`, runID).Scan(
		&row.ID, &row.FileName, &row.DeclaredRows, &row.Processed, &row.Created,
		&row.Updated, &row.Skipped, &row.Failed, &row.Status, &row.StartedAt, &row.FinishedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}

func (d *DB) ListRuns(limit int) ([]internal.ImportRunRow, error) {
	rows, err := d.conn.Query(`
SELECT id, fileName, declaredRows, processed, created, updated, skipped, failed, status, startedAt, finishedAt
FROM import_runs ORDER BY id DESC LIMIT ?
`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []internal.ImportRunRow
	for rows.Next() {
		var row internal.ImportRunRow
		if err := rows.Scan(
			&row.ID, &row.FileName, &row.DeclaredRows, &row.Processed, &row.Created,
			&row.Updated, &row.Skipped, &row.Failed, &row.Status, &row.StartedAt, &row.FinishedAt,
		); err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

func boolToInt(v bool) int {
	if v {
		return 1
	}
	return 0
}

func timeToText(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.UTC().Format(time.RFC3339)
	return &s
}
