package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newObservationRepoMock(t *testing.T) (*ObservationRepository, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	sqlxDB := sqlx.NewDb(db, "postgres")
	return NewObservationRepository(sqlxDB), mock, func() {
		sqlxDB.Close()
		db.Close()
	}
}

func TestObservationRepositoryFetch(t *testing.T) {
	repo, mock, cleanup := newObservationRepoMock(t)
	defer cleanup()

	scheduled := time.Date(2026, 4, 2, 0, 0, 0, 0, time.UTC)
	mock.ExpectQuery(regexp.QuoteMeta("FROM observations WHERE obsid = $1")).
		WithArgs(12345).
		WillReturnRows(sqlmock.NewRows([]string{"obsid", "seq_nbr", "status", "scheduled_at", "on_active_schedule", "group_id"}).
			AddRow(12345, "500123", "scheduled", scheduled, true, "grp-7"))
	mock.ExpectQuery(regexp.QuoteMeta("FROM observation_params WHERE obsid = $1")).
		WithArgs(12345).
		WillReturnRows(sqlmock.NewRows([]string{"name", "rank", "num_value", "text_value"}).
			AddRow("ra", nil, 10.0, nil).
			AddRow("targname", nil, nil, "M31 Nucleus").
			AddRow("tstart", 1, nil, "2026-04-01T00:00:00").
			AddRow("tstart", 2, nil, "2026-04-05T00:00:00").
			AddRow("tstart", 11, nil, "ignored"))
	mock.ExpectQuery(regexp.QuoteMeta("WHERE group_id = $1 AND obsid <> $2")).
		WithArgs("grp-7", 12345).
		WillReturnRows(sqlmock.NewRows([]string{"obsid"}).AddRow(12346).AddRow(12347))

	raw, err := repo.Fetch(context.Background(), 12345)
	require.NoError(t, err)
	assert.Equal(t, "500123", raw.SeqNbr)
	assert.True(t, raw.Status.Editable())
	require.NotNil(t, raw.ScheduledAt)
	assert.True(t, scheduled.Equal(*raw.ScheduledAt))
	assert.Equal(t, 10.0, raw.Fields["ra"])
	assert.Equal(t, "M31 Nucleus", raw.Fields["targname"])
	assert.Equal(t, "2026-04-01T00:00:00", raw.RankedFields["tstart"][0])
	assert.Equal(t, "2026-04-05T00:00:00", raw.RankedFields["tstart"][1])
	assert.Nil(t, raw.RankedFields["tstart"][2])
	assert.Equal(t, []int{12346, 12347}, raw.RelatedObsids)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestObservationRepositoryFetchUnknown(t *testing.T) {
	repo, mock, cleanup := newObservationRepoMock(t)
	defer cleanup()

	mock.ExpectQuery(regexp.QuoteMeta("FROM observations WHERE obsid = $1")).
		WithArgs(99999).
		WillReturnError(sql.ErrNoRows)

	_, err := repo.Fetch(context.Background(), 99999)
	require.ErrorIs(t, err, sql.ErrNoRows)
	require.NoError(t, mock.ExpectationsWereMet())
}
