package jobs

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"planning/internal/dbtest"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newRepo(t *testing.T, now time.Time) *Repo {
	t.Helper()
	return &Repo{DB: dbtest.Open(t, &Job{}), Now: func() time.Time { return now }}
}

func TestRepo_EnqueueAndClaim(t *testing.T) {
	now := time.Date(2024, 3, 5, 9, 0, 0, 0, time.UTC)
	r := newRepo(t, now)
	ctx := context.Background()

	require.NoError(t, r.EnqueuePasswordReset(ctx, "u-1", "alice@example.com", "tok"))

	job, err := r.Claim(ctx, "w-1")
	require.NoError(t, err)
	require.NotNil(t, job)
	assert.Equal(t, TypePasswordResetDispatch, job.Type)
	assert.Equal(t, StatusRunning, job.Status)
	require.NotNil(t, job.LockedBy)
	assert.Equal(t, "w-1", *job.LockedBy)

	var p resetPayload
	require.NoError(t, json.Unmarshal(job.Payload, &p))
	assert.Equal(t, "alice@example.com", p.Email)
	assert.Equal(t, "tok", p.Token)

	// nothing else is due
	again, err := r.Claim(ctx, "w-2")
	require.NoError(t, err)
	assert.Nil(t, again)

	require.NoError(t, r.MarkDone(ctx, job.ID))
	var stored Job
	require.NoError(t, r.DB.First(&stored, job.ID).Error)
	assert.Equal(t, StatusDone, stored.Status)
	assert.Equal(t, "{}", string(stored.Payload))
}

func TestRepo_ClaimSkipsFutureJobs(t *testing.T) {
	now := time.Date(2024, 3, 5, 9, 0, 0, 0, time.UTC)
	r := newRepo(t, now)
	ctx := context.Background()

	require.NoError(t, r.EnqueuePasswordReset(ctx, "u-1", "a@example.com", "tok"))
	job, err := r.Claim(ctx, "w-1")
	require.NoError(t, err)
	require.NotNil(t, job)

	require.NoError(t, r.RetryLater(ctx, job.ID, 1, now.Add(time.Minute), "smtp down"))

	none, err := r.Claim(ctx, "w-1")
	require.NoError(t, err)
	assert.Nil(t, none)

	r.Now = func() time.Time { return now.Add(2 * time.Minute) }
	retried, err := r.Claim(ctx, "w-1")
	require.NoError(t, err)
	require.NotNil(t, retried)
	assert.Equal(t, 1, retried.Attempts)
	require.NotNil(t, retried.LastError)
	assert.Equal(t, "smtp down", *retried.LastError)
}

func TestRepo_RequeuesStuckJobs(t *testing.T) {
	now := time.Date(2024, 3, 5, 9, 0, 0, 0, time.UTC)
	r := newRepo(t, now)
	ctx := context.Background()

	require.NoError(t, r.EnqueuePasswordReset(ctx, "u-1", "a@example.com", "tok"))
	first, err := r.Claim(ctx, "w-1")
	require.NoError(t, err)
	require.NotNil(t, first)

	r.Now = func() time.Time { return now.Add(stuckAfter + time.Second) }
	second, err := r.Claim(ctx, "w-2")
	require.NoError(t, err)
	require.NotNil(t, second)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, "w-2", *second.LockedBy)
}

func TestRepo_PurgeFinished(t *testing.T) {
	now := time.Date(2024, 3, 5, 9, 0, 0, 0, time.UTC)
	r := newRepo(t, now)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		require.NoError(t, r.EnqueuePasswordReset(ctx, "u-1", "a@example.com", "tok"))
	}
	a, _ := r.Claim(ctx, "w")
	b, _ := r.Claim(ctx, "w")
	require.NoError(t, r.MarkDone(ctx, a.ID))
	require.NoError(t, r.MarkFailed(ctx, b.ID, "boom"))

	n, err := r.PurgeFinished(ctx, now)
	require.NoError(t, err)
	assert.Zero(t, n)

	n, err = r.PurgeFinished(ctx, now.Add(time.Second))
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	var left int64
	require.NoError(t, r.DB.Model(&Job{}).Count(&left).Error)
	assert.Equal(t, int64(1), left)
}

func TestRepo_ClaimPostgresUsesSkipLocked(t *testing.T) {
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer sqlDB.Close()

	gdb, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	now := time.Date(2024, 3, 5, 9, 0, 0, 0, time.UTC)
	r := &Repo{DB: gdb, Now: func() time.Time { return now }}

	mock.ExpectBegin()
	mock.ExpectExec(`(?s)update jobs\s+set status = \$1, locked_by = null`).
		WithArgs(StatusPending, sqlmock.AnyArg(), StatusRunning, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(`(?s)with cte as .*for update skip locked.*returning \*`).
		WithArgs(StatusPending, sqlmock.AnyArg(), StatusRunning, "w-1", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "user_id", "type", "payload", "run_at", "status", "attempts", "max_attempts",
			"locked_by", "locked_at", "last_error", "created_at", "updated_at",
		}).AddRow(
			7, "u-1", TypePasswordResetDispatch, []byte(`{"email":"a@example.com","token":"t"}`), now, StatusRunning, 0, 8,
			"w-1", now, nil, now, now,
		))
	mock.ExpectCommit()

	job, err := r.Claim(context.Background(), "w-1")
	require.NoError(t, err)
	require.NotNil(t, job)
	assert.Equal(t, uint64(7), job.ID)
	assert.Equal(t, StatusRunning, job.Status)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRepo_ClaimPostgresEmpty(t *testing.T) {
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer sqlDB.Close()

	gdb, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	r := &Repo{DB: gdb}

	mock.ExpectBegin()
	mock.ExpectExec(`update jobs`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(`with cte as`).WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectCommit()

	job, err := r.Claim(context.Background(), "w-1")
	require.NoError(t, err)
	assert.Nil(t, job)
	require.NoError(t, mock.ExpectationsWereMet())
}
