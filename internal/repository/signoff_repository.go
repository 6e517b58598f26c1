package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/chandra-mta/Ocat-Flask-App-sub000/internal/models"
	"github.com/chandra-mta/Ocat-Flask-App-sub000/pkg/storage"
)

const uniqueViolation = "23505"

const ledgerColumns = `obsidrev, obsid, rev, seq_nbr, submitter, mode,
general_state, general_by, general_date, acis_state, acis_by, acis_date,
acissi_state, acissi_by, acissi_date, hrcsi_state, hrcsi_by, hrcsi_date,
verify_state, verify_by, verify_date, created_at, updated_at`

// SignoffRepository stores the sign-off ledger in PostgreSQL.
type SignoffRepository struct {
	db  *sqlx.DB
	now func() time.Time
}

// NewSignoffRepository constructs the repository.
func NewSignoffRepository(db *sqlx.DB) *SignoffRepository {
	return &SignoffRepository{db: db, now: time.Now}
}

type ledgerRow struct {
	ObsidRev    string         `db:"obsidrev"`
	Obsid       int            `db:"obsid"`
	Rev         int            `db:"rev"`
	SeqNbr      string         `db:"seq_nbr"`
	Submitter   string         `db:"submitter"`
	Mode        string         `db:"mode"`
	GeneralSt   string         `db:"general_state"`
	GeneralBy   sql.NullString `db:"general_by"`
	GeneralDate sql.NullTime   `db:"general_date"`
	ACISSt      string         `db:"acis_state"`
	ACISBy      sql.NullString `db:"acis_by"`
	ACISDate    sql.NullTime   `db:"acis_date"`
	ACISSISt    string         `db:"acissi_state"`
	ACISSIBy    sql.NullString `db:"acissi_by"`
	ACISSIDate  sql.NullTime   `db:"acissi_date"`
	HRCSISt     string         `db:"hrcsi_state"`
	HRCSIBy     sql.NullString `db:"hrcsi_by"`
	HRCSIDate   sql.NullTime   `db:"hrcsi_date"`
	VerifySt    string         `db:"verify_state"`
	VerifyBy    sql.NullString `db:"verify_by"`
	VerifyDate  sql.NullTime   `db:"verify_date"`
	CreatedAt   time.Time      `db:"created_at"`
	UpdatedAt   time.Time      `db:"updated_at"`
}

type ledgerUpdate struct {
	ledgerRow
	Observed time.Time `db:"observed"`
}

func toLedgerRow(e *models.SignoffEntry) ledgerRow {
	row := ledgerRow{
		ObsidRev:  e.ID.String(),
		Obsid:     e.ID.Obsid,
		Rev:       e.ID.Rev,
		SeqNbr:    e.SeqNbr,
		Submitter: e.Submitter,
		Mode:      string(e.Mode),
		CreatedAt: e.CreatedAt.UTC(),
		UpdatedAt: e.UpdatedAt.UTC(),
	}
	row.GeneralSt, row.GeneralBy, row.GeneralDate = cellColumns(e.General)
	row.ACISSt, row.ACISBy, row.ACISDate = cellColumns(e.ACIS)
	row.ACISSISt, row.ACISSIBy, row.ACISSIDate = cellColumns(e.ACISSI)
	row.HRCSISt, row.HRCSIBy, row.HRCSIDate = cellColumns(e.HRCSI)
	row.VerifySt, row.VerifyBy, row.VerifyDate = cellColumns(e.Verification)
	return row
}

func (row ledgerRow) entry() (*models.SignoffEntry, error) {
	id, err := models.ParseRevisionID(row.ObsidRev)
	if err != nil {
		return nil, err
	}
	return &models.SignoffEntry{
		ID:           id,
		SeqNbr:       row.SeqNbr,
		Submitter:    row.Submitter,
		Mode:         models.SubmissionMode(row.Mode),
		General:      cellFrom(row.GeneralSt, row.GeneralBy, row.GeneralDate),
		ACIS:         cellFrom(row.ACISSt, row.ACISBy, row.ACISDate),
		ACISSI:       cellFrom(row.ACISSISt, row.ACISSIBy, row.ACISSIDate),
		HRCSI:        cellFrom(row.HRCSISt, row.HRCSIBy, row.HRCSIDate),
		Verification: cellFrom(row.VerifySt, row.VerifyBy, row.VerifyDate),
		CreatedAt:    row.CreatedAt.UTC(),
		UpdatedAt:    row.UpdatedAt.UTC(),
	}, nil
}

func cellColumns(c models.ColumnStatus) (string, sql.NullString, sql.NullTime) {
	state := c.State
	if state == "" {
		state = models.StateNotApplicable
	}
	by := sql.NullString{String: c.Signer, Valid: state == models.StateSigned && c.Signer != ""}
	var date sql.NullTime
	if state == models.StateSigned && c.Date != nil {
		date = sql.NullTime{Time: c.Date.UTC(), Valid: true}
	}
	return string(state), by, date
}

func cellFrom(state string, by sql.NullString, date sql.NullTime) models.ColumnStatus {
	switch models.ColumnState(state) {
	case models.StateSigned:
		cell := models.ColumnStatus{State: models.StateSigned, Signer: by.String}
		if date.Valid {
			d := date.Time.UTC()
			cell.Date = &d
		}
		return cell
	case models.StatePending:
		return models.Pending()
	default:
		return models.NotApplicable()
	}
}

// Insert creates the ledger row. An existing row yields ErrDuplicate.
func (r *SignoffRepository) Insert(ctx context.Context, entry *models.SignoffEntry) error {
	query := `INSERT INTO signoff_ledger (` + ledgerColumns + `)
VALUES (:obsidrev, :obsid, :rev, :seq_nbr, :submitter, :mode,
:general_state, :general_by, :general_date, :acis_state, :acis_by, :acis_date,
:acissi_state, :acissi_by, :acissi_date, :hrcsi_state, :hrcsi_by, :hrcsi_date,
:verify_state, :verify_by, :verify_date, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, toLedgerRow(entry)); err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && string(pqErr.Code) == uniqueViolation {
			return ErrDuplicate
		}
		return fmt.Errorf("insert ledger entry: %w", err)
	}
	return nil
}

// Get fetches one ledger row. A missing row yields ErrNotFound.
func (r *SignoffRepository) Get(ctx context.Context, id models.RevisionID) (*models.SignoffEntry, error) {
	query := `SELECT ` + ledgerColumns + ` FROM signoff_ledger WHERE obsidrev = $1`
	var row ledgerRow
	if err := r.db.GetContext(ctx, &row, query, id.String()); err != nil {
		return nil, err
	}
	return row.entry()
}

// Update writes entry only when the stored version is not newer than
// observed. The new version is strictly after the previous one and is
// written back to entry.UpdatedAt.
func (r *SignoffRepository) Update(ctx context.Context, entry *models.SignoffEntry, observed time.Time) error {
	next := storage.NextVersion(r.now(), entry.UpdatedAt)
	row := toLedgerRow(entry)
	row.UpdatedAt = next
	const query = `UPDATE signoff_ledger SET
general_state = :general_state, general_by = :general_by, general_date = :general_date,
acis_state = :acis_state, acis_by = :acis_by, acis_date = :acis_date,
acissi_state = :acissi_state, acissi_by = :acissi_by, acissi_date = :acissi_date,
hrcsi_state = :hrcsi_state, hrcsi_by = :hrcsi_by, hrcsi_date = :hrcsi_date,
verify_state = :verify_state, verify_by = :verify_by, verify_date = :verify_date,
updated_at = :updated_at
WHERE obsidrev = :obsidrev AND updated_at <= :observed`
	res, err := r.db.NamedExecContext(ctx, query, ledgerUpdate{ledgerRow: row, Observed: observed.UTC()})
	if err != nil {
		return fmt.Errorf("update ledger entry: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update ledger entry rows affected: %w", err)
	}
	if affected == 0 {
		return ErrStale
	}
	entry.UpdatedAt = next
	return nil
}

// List returns ledger rows newest first.
func (r *SignoffRepository) List(ctx context.Context, filter models.SignoffFilter) ([]models.SignoffEntry, error) {
	var (
		conditions []string
		args       []interface{}
	)
	if filter.Obsid > 0 {
		args = append(args, filter.Obsid)
		conditions = append(conditions, fmt.Sprintf("obsid = $%d", len(args)))
	}
	if filter.PendingOnly {
		conditions = append(conditions, `'pending' IN (general_state, acis_state, acissi_state, hrcsi_state, verify_state)`)
	}
	if filter.Signer != "" {
		args = append(args, filter.Signer)
		conditions = append(conditions, fmt.Sprintf("$%d IN (general_by, acis_by, acissi_by, hrcsi_by, verify_by)", len(args)))
	}
	var sb strings.Builder
	sb.WriteString(`SELECT ` + ledgerColumns + ` FROM signoff_ledger`)
	if len(conditions) > 0 {
		sb.WriteString(" WHERE " + strings.Join(conditions, " AND "))
	}
	sb.WriteString(" ORDER BY created_at DESC, obsid DESC, rev DESC")
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		sb.WriteString(fmt.Sprintf(" LIMIT $%d", len(args)))
	}

	var rows []ledgerRow
	if err := r.db.SelectContext(ctx, &rows, sb.String(), args...); err != nil {
		return nil, fmt.Errorf("list ledger entries: %w", err)
	}
	entries := make([]models.SignoffEntry, 0, len(rows))
	for _, row := range rows {
		entry, err := row.entry()
		if err != nil {
			return nil, fmt.Errorf("decode ledger entry %s: %w", row.ObsidRev, err)
		}
		entries = append(entries, *entry)
	}
	return entries, nil
}
