package consumerWorker

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/wb-go/wbf/zlog"

	"fieldtrack/cmd/buildCFG"
	"fieldtrack/internal/dto"
	"fieldtrack/internal/mailer"
	"fieldtrack/internal/rabbit"
	"fieldtrack/internal/repo"
)

// Reader drains the delayed review-reminder queue. Each message was published
// when a submission entered review; by the time it arrives the review may
// already be done, so the current status is re-read before mailing anyone.
type Reader struct {
	RMQ    *rabbit.Client
	repo   repo.Repository
	mail   *buildCFG.MailConfig
	review *buildCFG.ReviewConfig
	done   chan struct{}
	cancel context.CancelFunc
}

func NewReader(rmq *rabbit.Client, repo repo.Repository, mail *buildCFG.MailConfig, review *buildCFG.ReviewConfig) *Reader {
	return &Reader{
		RMQ:    rmq,
		repo:   repo,
		mail:   mail,
		review: review,
		done:   make(chan struct{}),
	}
}

func (r *Reader) Start(ctx context.Context) {
	cctx, cancel := context.WithCancel(ctx)
	r.cancel = cancel

	zlog.Logger.Info().Msg("review reminder worker started")

	go func() {
		defer close(r.done)

		handler := func(body []byte) error {
			var msg dto.ReviewReminderMessage
			if err := json.Unmarshal(body, &msg); err != nil {
				zlog.Logger.Error().
					Err(err).
					Msgf("failed to unmarshal reminder message: %s", string(body))
				return err
			}

			zlog.Logger.Info().
				Int64("submission_id", msg.SubmissionID).
				Msg("reminder message received")

			sub, err := r.repo.GetSubmissionByID(cctx, msg.SubmissionID)
			if err != nil {
				if errors.Is(err, repo.ErrSubmissionNotFound) {
					zlog.Logger.Warn().
						Int64("submission_id", msg.SubmissionID).
						Msg("submission vanished before reminder, skipping")
					return nil
				}
				zlog.Logger.Error().
					Err(err).
					Int64("submission_id", msg.SubmissionID).
					Msg("failed to load submission in worker")
				return err
			}

			if !sub.Status.CanReview() {
				zlog.Logger.Info().
					Int64("submission_id", sub.ID).
					Str("status", sub.Status.String()).
					Msg("submission already reviewed, skipping reminder")
				return nil
			}

			if err := mailer.SendSubmissionEmail(
				&zlog.Logger,
				r.mail,
				"reminder",
				sub.ID,
				sub.ActivityStream,
				sub.SubmittedBy,
				"",
				r.review.InboxEmail,
			); err != nil {
				zlog.Logger.Warn().
					Err(err).
					Msg("failed to send reminder e-mail")
			}

			return nil
		}

		if err := r.RMQ.Consume(handler); err != nil {
			zlog.Logger.Error().Err(err).Msg("failed to start consuming")
			return
		}

		<-cctx.Done()
		zlog.Logger.Info().Msg("review reminder worker stopped by context")
	}()
}

func (r *Reader) Stop() {
	if r.cancel != nil {
		r.cancel()
		<-r.done
	}
}
