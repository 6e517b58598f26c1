package database

import (
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"github.com/chandra-mta/Ocat-Flask-App-sub000/pkg/config"
)

// Schema creates the tables owned by this service. The observation source
// tables are owned upstream and only read here.
const Schema = `
CREATE TABLE IF NOT EXISTS signoff_ledger (
	obsidrev       TEXT PRIMARY KEY,
	obsid          INTEGER NOT NULL,
	rev            INTEGER NOT NULL,
	seq_nbr        TEXT NOT NULL DEFAULT '',
	submitter      TEXT NOT NULL DEFAULT '',
	mode           TEXT NOT NULL DEFAULT '',
	general_state  TEXT NOT NULL,
	general_by     TEXT,
	general_date   TIMESTAMPTZ,
	acis_state     TEXT NOT NULL,
	acis_by        TEXT,
	acis_date      TIMESTAMPTZ,
	acissi_state   TEXT NOT NULL,
	acissi_by      TEXT,
	acissi_date    TIMESTAMPTZ,
	hrcsi_state    TEXT NOT NULL,
	hrcsi_by       TEXT,
	hrcsi_date     TIMESTAMPTZ,
	verify_state   TEXT NOT NULL,
	verify_by      TEXT,
	verify_date    TIMESTAMPTZ,
	created_at     TIMESTAMPTZ NOT NULL,
	updated_at     TIMESTAMPTZ NOT NULL
);
ALTER TABLE signoff_ledger ADD COLUMN IF NOT EXISTS mode TEXT NOT NULL DEFAULT '';
CREATE INDEX IF NOT EXISTS signoff_ledger_obsid_idx ON signoff_ledger (obsid, rev DESC);
`

// NewPostgres returns a configured PostgreSQL client.
func NewPostgres(cfg config.DatabaseConfig) (*sqlx.DB, error) {
	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host,
		cfg.Port,
		cfg.User,
		cfg.Password,
		cfg.Name,
		cfg.SSLMode,
	)

	db, err := sqlx.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}

	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}

	db.SetConnMaxLifetime(1 * time.Hour)
	db.SetConnMaxIdleTime(30 * time.Minute)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, err
	}

	return db, nil
}

// Migrate applies Schema.
func Migrate(db *sqlx.DB) error {
	if _, err := db.Exec(Schema); err != nil {
		return fmt.Errorf("migrate signoff ledger: %w", err)
	}
	return nil
}
