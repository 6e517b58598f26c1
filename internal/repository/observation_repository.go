package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/chandra-mta/Ocat-Flask-App-sub000/internal/models"
)

// ObservationRepository reads the authoritative observation tables. It never
// writes to them.
type ObservationRepository struct {
	db *sqlx.DB
}

// NewObservationRepository constructs the repository.
func NewObservationRepository(db *sqlx.DB) *ObservationRepository {
	return &ObservationRepository{db: db}
}

type observationRow struct {
	Obsid            int            `db:"obsid"`
	SeqNbr           sql.NullString `db:"seq_nbr"`
	Status           sql.NullString `db:"status"`
	ScheduledAt      sql.NullTime   `db:"scheduled_at"`
	OnActiveSchedule bool           `db:"on_active_schedule"`
	GroupID          sql.NullString `db:"group_id"`
}

// paramRow is one stored value. Rank is 1-based for ranked parameters and
// NULL for scalars.
type paramRow struct {
	Name      string          `db:"name"`
	Rank      sql.NullInt64   `db:"rank"`
	NumValue  sql.NullFloat64 `db:"num_value"`
	TextValue sql.NullString  `db:"text_value"`
}

// Fetch loads the full field set of obsid. Unknown obsids return sql.ErrNoRows.
func (r *ObservationRepository) Fetch(ctx context.Context, obsid int) (*models.RawObservation, error) {
	const obsQuery = `SELECT obsid, seq_nbr, status, scheduled_at, on_active_schedule, group_id
	FROM observations WHERE obsid = $1`
	var row observationRow
	if err := r.db.GetContext(ctx, &row, obsQuery, obsid); err != nil {
		return nil, err
	}

	const paramQuery = `SELECT name, rank, num_value, text_value
	FROM observation_params WHERE obsid = $1 ORDER BY name, rank`
	var params []paramRow
	if err := r.db.SelectContext(ctx, &params, paramQuery, obsid); err != nil {
		return nil, fmt.Errorf("load observation params: %w", err)
	}

	raw := &models.RawObservation{
		Obsid:            row.Obsid,
		SeqNbr:           row.SeqNbr.String,
		Status:           models.ObservationStatus(row.Status.String),
		OnActiveSchedule: row.OnActiveSchedule,
		Fields:           make(map[string]any, len(params)),
		RankedFields:     make(map[string]models.RankArray),
	}
	if row.ScheduledAt.Valid {
		at := row.ScheduledAt.Time.UTC()
		raw.ScheduledAt = &at
	}
	for _, p := range params {
		value := p.value()
		if !p.Rank.Valid {
			raw.Fields[p.Name] = value
			continue
		}
		slot := int(p.Rank.Int64) - 1
		if slot < 0 || slot >= models.MaxRank {
			continue
		}
		arr := raw.RankedFields[p.Name]
		arr[slot] = value
		raw.RankedFields[p.Name] = arr
	}

	if row.GroupID.Valid && row.GroupID.String != "" {
		const relatedQuery = `SELECT obsid FROM observations WHERE group_id = $1 AND obsid <> $2 ORDER BY obsid`
		if err := r.db.SelectContext(ctx, &raw.RelatedObsids, relatedQuery, row.GroupID.String, obsid); err != nil {
			return nil, fmt.Errorf("load related observations: %w", err)
		}
	}
	return raw, nil
}

func (p paramRow) value() any {
	switch {
	case p.NumValue.Valid:
		return p.NumValue.Float64
	case p.TextValue.Valid:
		return p.TextValue.String
	default:
		return nil
	}
}

// Ping verifies the source is reachable within d.
func (r *ObservationRepository) Ping(ctx context.Context, d time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, d)
	defer cancel()
	return r.db.PingContext(ctx)
}
