package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"gorm.io/gorm"
)

// stuckAfter is how long a RUNNING job may hold its lock before it is
// handed back to the queue.
const stuckAfter = 5 * time.Minute

type Repo struct {
	DB  *gorm.DB
	Now func() time.Time
}

func (r *Repo) now() time.Time {
	if r.Now == nil {
		return time.Now().UTC()
	}
	return r.Now().UTC()
}

// EnqueuePasswordReset queues delivery of a reset token, due immediately.
func (r *Repo) EnqueuePasswordReset(ctx context.Context, userID, email, token string) error {
	payload, err := json.Marshal(resetPayload{Email: email, Token: token})
	if err != nil {
		return err
	}
	now := r.now()
	j := Job{
		UserID:      userID,
		Type:        TypePasswordResetDispatch,
		Payload:     payload,
		RunAt:       now,
		Status:      StatusPending,
		MaxAttempts: 8,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	return r.DB.WithContext(ctx).Create(&j).Error
}

// Claim takes one due job. On postgres the claim is a single
// FOR UPDATE SKIP LOCKED statement so concurrent workers never share a job;
// other backends serialize writers and use a guarded select-then-update.
func (r *Repo) Claim(ctx context.Context, workerID string) (*Job, error) {
	now := r.now()
	var job Job
	err := r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Exec(`
update jobs
set status = ?, locked_by = null, locked_at = null, updated_at = ?
where status = ? and locked_at is not null and locked_at < ?`,
			StatusPending, now, StatusRunning, now.Add(-stuckAfter)).Error; err != nil {
			return err
		}

		if tx.Dialector.Name() == "postgres" {
			return tx.Raw(`
with cte as (
  select id
  from jobs
  where status = ? and run_at <= ?
  order by run_at asc
  limit 1
  for update skip locked
)
update jobs
set status = ?, locked_by = ?, locked_at = ?, updated_at = ?
where id in (select id from cte)
returning *`, StatusPending, now, StatusRunning, workerID, now, now).Scan(&job).Error
		}

		var cand Job
		err := tx.Where("status = ? AND run_at <= ?", StatusPending, now).
			Order("run_at asc").Order("id asc").
			Take(&cand).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		res := tx.Model(&Job{}).
			Where("id = ? AND status = ?", cand.ID, StatusPending).
			Updates(map[string]any{
				"status":     StatusRunning,
				"locked_by":  workerID,
				"locked_at":  now,
				"updated_at": now,
			})
		if res.Error != nil || res.RowsAffected == 0 {
			return res.Error
		}
		cand.Status, cand.LockedBy, cand.LockedAt, cand.UpdatedAt = StatusRunning, &workerID, &now, now
		job = cand
		return nil
	})
	if err != nil {
		return nil, err
	}
	if job.ID == 0 {
		return nil, nil
	}
	return &job, nil
}

func (r *Repo) MarkDone(ctx context.Context, id uint64) error {
	return r.DB.WithContext(ctx).Exec(`update jobs set status = ?, payload = ?, updated_at = ? where id = ?`,
		StatusDone, []byte("{}"), r.now(), id).Error
}

func (r *Repo) MarkFailed(ctx context.Context, id uint64, errMsg string) error {
	return r.DB.WithContext(ctx).Exec(`update jobs set status = ?, last_error = ?, updated_at = ? where id = ?`,
		StatusFailed, errMsg, r.now(), id).Error
}

func (r *Repo) RetryLater(ctx context.Context, id uint64, attempts int, runAt time.Time, errMsg string) error {
	return r.DB.WithContext(ctx).Exec(`
update jobs
set status = ?,
    attempts = ?,
    run_at = ?,
    locked_by = null,
    locked_at = null,
    last_error = ?,
    updated_at = ?
where id = ?`, StatusPending, attempts, runAt.UTC(), errMsg, r.now(), id).Error
}

// PurgeFinished deletes DONE, FAILED and CANCELLED jobs last touched before cutoff.
func (r *Repo) PurgeFinished(ctx context.Context, cutoff time.Time) (int64, error) {
	res := r.DB.WithContext(ctx).
		Where("status IN ? AND updated_at < ?", []string{StatusDone, StatusFailed, StatusCancelled}, cutoff.UTC()).
		Delete(&Job{})
	return res.RowsAffected, res.Error
}
