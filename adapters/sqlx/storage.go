package sqlx

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"loyaltykit/core"
)

// Driver selects the SQL dialect.
type Driver string

const (
	DriverPostgres Driver = "postgres"
	DriverMySQL    Driver = "mysql"
	DriverSQLite   Driver = "sqlite"
)

func init() {
	// modernc registers itself as "sqlite"
	sqlx.BindDriver(string(DriverSQLite), sqlx.QUESTION)
}

// Config holds SQL connection configuration
type Config struct {
	Driver          Driver        `json:"driver" env:"LOYALTYKIT_SQL_DRIVER"`
	DSN             string        `json:"dsn" env:"LOYALTYKIT_SQL_DSN"`
	MaxOpenConns    int           `json:"max_open_conns" env:"LOYALTYKIT_SQL_MAX_OPEN_CONNS"`
	MaxIdleConns    int           `json:"max_idle_conns" env:"LOYALTYKIT_SQL_MAX_IDLE_CONNS"`
	ConnMaxLifetime time.Duration `json:"conn_max_lifetime" env:"LOYALTYKIT_SQL_CONN_MAX_LIFETIME"`
	AutoMigrate     bool          `json:"auto_migrate" env:"LOYALTYKIT_SQL_AUTO_MIGRATE"`
}

// DefaultConfig returns sensible defaults for the given driver
func DefaultConfig(driver Driver) Config {
	cfg := Config{
		Driver:          driver,
		MaxOpenConns:    10,
		MaxIdleConns:    5,
		ConnMaxLifetime: 30 * time.Minute,
		AutoMigrate:     true,
	}
	switch driver {
	case DriverPostgres:
		cfg.DSN = "postgres://localhost:5432/loyaltykit?sslmode=disable"
	case DriverMySQL:
		cfg.DSN = "root@tcp(localhost:3306)/loyaltykit?parseTime=true"
	case DriverSQLite:
		cfg.DSN = "file:loyaltykit.db?_pragma=busy_timeout(5000)"
		// sqlite allows a single writer
		cfg.MaxOpenConns = 1
		cfg.MaxIdleConns = 1
	}
	return cfg
}

// Validate checks the driver and DSN.
func (c Config) Validate() error {
	switch c.Driver {
	case DriverPostgres, DriverMySQL, DriverSQLite:
	default:
		return fmt.Errorf("unsupported driver %q", c.Driver)
	}
	if c.DSN == "" {
		return errors.New("dsn cannot be empty")
	}
	return nil
}

// Store implements engine.Repository on a relational database.
// Tables:
// - participants(seq, participant_id) -> first-write order
// - participant_values(participant_id, track, field, value, updated_at)
// - participant_entries(id, participant_id, track, field, value, created_at)
// Shared fields use an empty track.
type Store struct {
	db     *sqlx.DB
	driver Driver
}

// New opens a connection pool and migrates the schema when configured.
func New(ctx context.Context, cfg Config) (*Store, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	db, err := sqlx.ConnectContext(ctx, string(cfg.Driver), cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", cfg.Driver, err)
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	s := NewWithDB(db, cfg.Driver)
	if cfg.AutoMigrate {
		if err := s.Migrate(ctx); err != nil {
			_ = db.Close()
			return nil, err
		}
	}
	return s, nil
}

// NewWithDB wraps an existing handle (useful for testing)
func NewWithDB(db *sqlx.DB, driver Driver) *Store {
	return &Store{db: db, driver: driver}
}

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) schema() []string {
	switch s.driver {
	case DriverMySQL:
		return []string{
			`CREATE TABLE IF NOT EXISTS participants (
				seq BIGINT AUTO_INCREMENT PRIMARY KEY,
				participant_id VARCHAR(191) NOT NULL UNIQUE
			)`,
			`CREATE TABLE IF NOT EXISTS participant_values (
				participant_id VARCHAR(191) NOT NULL,
				track VARCHAR(32) NOT NULL,
				field VARCHAR(32) NOT NULL,
				value LONGTEXT NOT NULL,
				updated_at DATETIME(6) NOT NULL,
				PRIMARY KEY (participant_id, track, field)
			)`,
			`CREATE TABLE IF NOT EXISTS participant_entries (
				id BIGINT AUTO_INCREMENT PRIMARY KEY,
				participant_id VARCHAR(191) NOT NULL,
				track VARCHAR(32) NOT NULL,
				field VARCHAR(32) NOT NULL,
				value LONGTEXT NOT NULL,
				created_at DATETIME(6) NOT NULL,
				INDEX participant_entries_key (participant_id, track, field, id)
			)`,
		}
	case DriverSQLite:
		return []string{
			`CREATE TABLE IF NOT EXISTS participants (
				seq INTEGER PRIMARY KEY AUTOINCREMENT,
				participant_id TEXT NOT NULL UNIQUE
			)`,
			`CREATE TABLE IF NOT EXISTS participant_values (
				participant_id TEXT NOT NULL,
				track TEXT NOT NULL,
				field TEXT NOT NULL,
				value TEXT NOT NULL,
				updated_at TIMESTAMP NOT NULL,
				PRIMARY KEY (participant_id, track, field)
			)`,
			`CREATE TABLE IF NOT EXISTS participant_entries (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				participant_id TEXT NOT NULL,
				track TEXT NOT NULL,
				field TEXT NOT NULL,
				value TEXT NOT NULL,
				created_at TIMESTAMP NOT NULL
			)`,
			`CREATE INDEX IF NOT EXISTS participant_entries_key ON participant_entries (participant_id, track, field, id)`,
		}
	default:
		return []string{
			`CREATE TABLE IF NOT EXISTS participants (
				seq BIGSERIAL PRIMARY KEY,
				participant_id TEXT NOT NULL UNIQUE
			)`,
			`CREATE TABLE IF NOT EXISTS participant_values (
				participant_id TEXT NOT NULL,
				track TEXT NOT NULL,
				field TEXT NOT NULL,
				value TEXT NOT NULL,
				updated_at TIMESTAMPTZ NOT NULL,
				PRIMARY KEY (participant_id, track, field)
			)`,
			`CREATE TABLE IF NOT EXISTS participant_entries (
				id BIGSERIAL PRIMARY KEY,
				participant_id TEXT NOT NULL,
				track TEXT NOT NULL,
				field TEXT NOT NULL,
				value TEXT NOT NULL,
				created_at TIMESTAMPTZ NOT NULL
			)`,
			`CREATE INDEX IF NOT EXISTS participant_entries_key ON participant_entries (participant_id, track, field, id)`,
		}
	}
}

// Migrate creates the tables if they do not exist.
func (s *Store) Migrate(ctx context.Context) error {
	for _, stmt := range s.schema() {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

func (s *Store) registerSQL() string {
	switch s.driver {
	case DriverMySQL:
		return `INSERT IGNORE INTO participants (participant_id) VALUES (?)`
	case DriverSQLite:
		return `INSERT OR IGNORE INTO participants (participant_id) VALUES (?)`
	default:
		return `INSERT INTO participants (participant_id) VALUES (?) ON CONFLICT (participant_id) DO NOTHING`
	}
}

func (s *Store) forUpdate() string {
	if s.driver == DriverSQLite {
		return ""
	}
	return " FOR UPDATE"
}

// inTx runs fn in a transaction that also registers the key's participant.
func (s *Store) inTx(ctx context.Context, key core.Key, fn func(tx *sqlx.Tx) error) (err error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()
	if _, err = tx.ExecContext(ctx, tx.Rebind(s.registerSQL()), key.Participant); err != nil {
		return err
	}
	if err = fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *Store) Get(ctx context.Context, key core.Key) (string, error) {
	var value string
	q := s.db.Rebind(`SELECT value FROM participant_values WHERE participant_id = ? AND track = ? AND field = ?`)
	err := s.db.GetContext(ctx, &value, q, key.Participant, key.Track, key.Field)
	if errors.Is(err, sql.ErrNoRows) {
		return "", core.ErrNotFound
	}
	if err != nil {
		return "", err
	}
	return value, nil
}

// upsert reads the current row under lock and writes what next returns.
func (s *Store) upsert(ctx context.Context, tx *sqlx.Tx, key core.Key, next func(current string, found bool) (string, error)) error {
	var current string
	q := tx.Rebind(`SELECT value FROM participant_values WHERE participant_id = ? AND track = ? AND field = ?` + s.forUpdate())
	err := tx.GetContext(ctx, &current, q, key.Participant, key.Track, key.Field)
	found := true
	if errors.Is(err, sql.ErrNoRows) {
		found = false
	} else if err != nil {
		return err
	}
	value, err := next(current, found)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	if found {
		_, err = tx.ExecContext(ctx, tx.Rebind(`UPDATE participant_values SET value = ?, updated_at = ? WHERE participant_id = ? AND track = ? AND field = ?`),
			value, now, key.Participant, key.Track, key.Field)
		return err
	}
	_, err = tx.ExecContext(ctx, tx.Rebind(`INSERT INTO participant_values (participant_id, track, field, value, updated_at) VALUES (?, ?, ?, ?, ?)`),
		key.Participant, key.Track, key.Field, value, now)
	return err
}

func (s *Store) Set(ctx context.Context, key core.Key, value string) error {
	return s.inTx(ctx, key, func(tx *sqlx.Tx) error {
		return s.upsert(ctx, tx, key, func(string, bool) (string, error) { return value, nil })
	})
}

func (s *Store) IncrBy(ctx context.Context, key core.Key, delta int64) (int64, error) {
	var total int64
	err := s.inTx(ctx, key, func(tx *sqlx.Tx) error {
		return s.upsert(ctx, tx, key, func(current string, found bool) (string, error) {
			var base int64
			if found {
				v, err := strconv.ParseInt(current, 10, 64)
				if err != nil {
					return "", err
				}
				base = v
			}
			next, err := core.AddSafe(base, delta)
			if err != nil {
				return "", err
			}
			total = next
			return strconv.FormatInt(next, 10), nil
		})
	})
	if err != nil {
		return 0, err
	}
	return total, nil
}

func (s *Store) Append(ctx context.Context, key core.Key, value string) error {
	return s.inTx(ctx, key, func(tx *sqlx.Tx) error {
		_, err := tx.ExecContext(ctx, tx.Rebind(`INSERT INTO participant_entries (participant_id, track, field, value, created_at) VALUES (?, ?, ?, ?, ?)`),
			key.Participant, key.Track, key.Field, value, time.Now().UTC())
		return err
	})
}

func (s *Store) Range(ctx context.Context, key core.Key, limit int) ([]string, error) {
	out := []string{}
	if limit == 0 {
		return out, nil
	}
	var err error
	if limit < 0 {
		q := s.db.Rebind(`SELECT value FROM participant_entries WHERE participant_id = ? AND track = ? AND field = ? ORDER BY id ASC`)
		err = s.db.SelectContext(ctx, &out, q, key.Participant, key.Track, key.Field)
	} else {
		q := s.db.Rebind(`SELECT value FROM (SELECT id, value FROM participant_entries WHERE participant_id = ? AND track = ? AND field = ? ORDER BY id DESC LIMIT ?) recent ORDER BY id ASC`)
		err = s.db.SelectContext(ctx, &out, q, key.Participant, key.Track, key.Field, limit)
	}
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Store) Participants(ctx context.Context) ([]core.ParticipantID, error) {
	var ids []string
	if err := s.db.SelectContext(ctx, &ids, `SELECT participant_id FROM participants ORDER BY seq ASC`); err != nil {
		return nil, err
	}
	out := make([]core.ParticipantID, len(ids))
	for i, id := range ids {
		out[i] = core.ParticipantID(id)
	}
	return out, nil
}
