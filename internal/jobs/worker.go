package jobs

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"math"
	"time"

	"planning/internal/logging"

	"github.com/rs/zerolog"
)

// Queue is the part of Repo the worker drives.
type Queue interface {
	Claim(ctx context.Context, workerID string) (*Job, error)
	MarkDone(ctx context.Context, id uint64) error
	MarkFailed(ctx context.Context, id uint64, errMsg string) error
	RetryLater(ctx context.Context, id uint64, attempts int, runAt time.Time, errMsg string) error
}

// Mailer delivers password reset tokens.
type Mailer interface {
	SendPasswordReset(ctx context.Context, email, token string) error
}

// LogMailer stands in for a mail transport. It records that a reset is ready
// with a reference to the stored token hash; the token itself is never logged.
type LogMailer struct{}

func (LogMailer) SendPasswordReset(_ context.Context, email, token string) error {
	logging.Worker().Info().Str("email", email).Str("token_ref", TokenRef(token)).Msg("password reset ready")
	return nil
}

// TokenRef is the first 12 hex digits of sha256(token), a prefix of the
// password_resets.token_hash column.
func TokenRef(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])[:12]
}

type Worker struct {
	ID           string
	Queue        Queue
	Mailer       Mailer
	PollInterval time.Duration
	Now          func() time.Time

	log zerolog.Logger
}

func NewWorker(id string, q Queue, m Mailer, poll time.Duration) *Worker {
	if poll <= 0 {
		poll = 800 * time.Millisecond
	}
	return &Worker{ID: id, Queue: q, Mailer: m, PollInterval: poll, Now: time.Now,
		log: logging.Worker().With().Str("worker_id", id).Logger()}
}

func (w *Worker) Run(ctx context.Context) {
	ticker := time.NewTicker(w.PollInterval)
	defer ticker.Stop()

	w.log.Info().Dur("poll", w.PollInterval).Msg("worker started")
	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("worker stopped")
			return
		case <-ticker.C:
			if _, err := w.RunOnce(ctx); err != nil {
				w.log.Error().Err(err).Msg("worker claim error")
			}
		}
	}
}

// RunOnce claims and handles at most one job and reports whether it did.
func (w *Worker) RunOnce(ctx context.Context) (bool, error) {
	job, err := w.Queue.Claim(ctx, w.ID)
	if err != nil {
		return false, err
	}
	if job == nil {
		return false, nil
	}
	w.handle(ctx, job)
	return true, nil
}

func (w *Worker) handle(ctx context.Context, job *Job) {
	switch job.Type {
	case TypePasswordResetDispatch:
		w.handleReset(ctx, job)
	default:
		w.log.Warn().Uint64("job_id", job.ID).Str("type", job.Type).Msg("unknown job type")
		_ = w.Queue.MarkFailed(ctx, job.ID, "unknown job type")
	}
}

func (w *Worker) handleReset(ctx context.Context, job *Job) {
	var p resetPayload
	if err := json.Unmarshal(job.Payload, &p); err != nil || p.Email == "" || p.Token == "" {
		_ = w.Queue.MarkFailed(ctx, job.ID, "bad payload")
		return
	}

	if err := w.Mailer.SendPasswordReset(ctx, p.Email, p.Token); err != nil {
		w.log.Warn().Err(err).Uint64("job_id", job.ID).Msg("reset delivery failed")
		w.retry(ctx, job, err.Error())
		return
	}
	_ = w.Queue.MarkDone(ctx, job.ID)
}

// retry backs off exponentially (2^n seconds, capped at 10 minutes) until
// MaxAttempts is reached.
func (w *Worker) retry(ctx context.Context, job *Job, errMsg string) {
	attempts := job.Attempts + 1
	if attempts >= job.MaxAttempts {
		_ = w.Queue.MarkFailed(ctx, job.ID, errMsg)
		return
	}

	sec := math.Min(math.Pow(2, float64(attempts)), 600)
	next := w.Now().Add(time.Duration(sec) * time.Second)

	_ = w.Queue.RetryLater(ctx, job.ID, attempts, next, errMsg)
}
