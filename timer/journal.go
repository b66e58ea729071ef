package timer

import (
	"context"
	"database/sql"
	"sync"
	"time"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/wippyai/lasr/errors"
)

const journalSchema = `CREATE TABLE IF NOT EXISTS actions (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	run INTEGER NOT NULL,
	at INTEGER NOT NULL,
	action TEXT NOT NULL,
	value TEXT NOT NULL DEFAULT '',
	game_ms INTEGER NOT NULL DEFAULT 0
)`

// Entry is one recorded timer action.
type Entry struct {
	At       time.Time
	Action   string
	Value    string
	ID       int64
	Run      int64
	GameTime time.Duration
}

// Journal wraps a Timer and records every discrete action it forwards.
// Game time updates are not recorded on their own; the latest value is
// stored with each entry. Pause/resume and variables are recorded only
// when they change. Journal write failures are logged, never returned.
type Journal struct {
	Timer
	db       *sql.DB
	now      func() time.Time
	vars     map[string]string
	mu       sync.Mutex
	run      int64
	gameTime time.Duration
	loading  bool
}

// OpenJournal opens or creates the SQLite journal at path and wraps next.
func OpenJournal(path string, next Timer) (*Journal, error) {
	db, err := sql.Open("sqlite", journalDSN(path, false))
	if err != nil {
		return nil, journalError(err, "open %s", path)
	}
	if _, err := db.Exec(journalSchema); err != nil {
		db.Close()
		return nil, journalError(err, "create schema")
	}
	var run int64
	if err := db.QueryRow("SELECT COALESCE(MAX(run), 0) FROM actions").Scan(&run); err != nil {
		db.Close()
		return nil, journalError(err, "read last run")
	}
	return &Journal{Timer: next, db: db, now: time.Now, vars: map[string]string{}, run: run}, nil
}

func (j *Journal) Start() error {
	if err := j.Timer.Start(); err != nil {
		return err
	}
	j.mu.Lock()
	j.run++
	j.gameTime = 0
	j.mu.Unlock()
	j.record(ActionStart, "")
	return nil
}

func (j *Journal) Split() error {
	if err := j.Timer.Split(); err != nil {
		return err
	}
	j.record(ActionSplit, "")
	return nil
}

func (j *Journal) Reset() error {
	if err := j.Timer.Reset(); err != nil {
		return err
	}
	j.record(ActionReset, "")
	return nil
}

func (j *Journal) PauseGameTime() error {
	if err := j.Timer.PauseGameTime(); err != nil {
		return err
	}
	if j.setLoading(true) {
		j.record(ActionPauseGameTime, "")
	}
	return nil
}

func (j *Journal) ResumeGameTime() error {
	if err := j.Timer.ResumeGameTime(); err != nil {
		return err
	}
	if j.setLoading(false) {
		j.record(ActionResumeGameTime, "")
	}
	return nil
}

func (j *Journal) SetGameTime(d time.Duration) error {
	if err := j.Timer.SetGameTime(d); err != nil {
		return err
	}
	j.mu.Lock()
	j.gameTime = d
	j.mu.Unlock()
	return nil
}

func (j *Journal) SetVariable(key, value string) error {
	if err := j.Timer.SetVariable(key, value); err != nil {
		return err
	}
	j.mu.Lock()
	old, seen := j.vars[key]
	j.vars[key] = value
	j.mu.Unlock()
	if !seen || old != value {
		j.record(ActionSetVariable, key+"="+value)
	}
	return nil
}

func (j *Journal) setLoading(v bool) bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	changed := j.loading != v
	j.loading = v
	return changed
}

func (j *Journal) record(a Action, value string) {
	j.mu.Lock()
	run, game := j.run, j.gameTime
	j.mu.Unlock()
	_, err := j.db.Exec("INSERT INTO actions (run, at, action, value, game_ms) VALUES (?, ?, ?, ?, ?)",
		run, j.now().UnixMilli(), a.String(), value, game.Milliseconds())
	if err != nil {
		Logger().Warn("journal write failed", zap.Stringer("action", a), zap.Error(err))
	}
}

// Entries returns the recorded actions in insertion order. A run of zero
// returns every run.
func (j *Journal) Entries(ctx context.Context, run int64) ([]Entry, error) {
	return ReadEntries(ctx, j.db, run)
}

// ReadEntries reads journal entries from an open database.
func ReadEntries(ctx context.Context, db *sql.DB, run int64) ([]Entry, error) {
	rows, err := db.QueryContext(ctx,
		"SELECT id, run, at, action, value, game_ms FROM actions WHERE ? = 0 OR run = ? ORDER BY id", run, run)
	if err != nil {
		return nil, journalError(err, "query actions")
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var e Entry
		var at, game int64
		if err := rows.Scan(&e.ID, &e.Run, &at, &e.Action, &e.Value, &game); err != nil {
			return nil, journalError(err, "scan action")
		}
		e.At = time.UnixMilli(at)
		e.GameTime = time.Duration(game) * time.Millisecond
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, journalError(err, "iterate actions")
	}
	return out, nil
}

// OpenJournalReadOnly opens an existing journal for reading entries.
func OpenJournalReadOnly(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", journalDSN(path, true))
	if err != nil {
		return nil, journalError(err, "open %s", path)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, journalError(err, "open %s", path)
	}
	return db, nil
}

// Close closes the database. The wrapped timer is not closed.
func (j *Journal) Close() error {
	return j.db.Close()
}

// journalDSN sets the busy timeout through the DSN so that every pooled
// connection gets it, not only the one that served a PRAGMA statement.
func journalDSN(path string, readOnly bool) string {
	dsn := "file:" + path + "?_pragma=busy_timeout(5000)"
	if readOnly {
		dsn += "&mode=ro"
	}
	return dsn
}

func journalError(cause error, format string, args ...any) error {
	return errors.New(errors.PhaseTimer, errors.KindBackend).Cause(cause).Detail("journal: "+format, args...).Build()
}
