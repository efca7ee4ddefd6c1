package mailer

import (
	"fmt"
	"net/smtp"

	"github.com/rs/zerolog"

	"fieldtrack/cmd/buildCFG"
)

// SendSubmissionEmail notifies recipient about a lifecycle event on a
// submission. kind is one of "submitted", "approved", "rejected", "reminder".
// Sending is best-effort; callers log and continue on failure.
func SendSubmissionEmail(log *zerolog.Logger, cfg *buildCFG.MailConfig, kind string, submissionID int64, activityStream, promoterID, note, recipient string) error {
	if cfg == nil || cfg.From == "" || cfg.SMTPHost == "" || recipient == "" {
		log.Debug().Msg("mail not configured, skipping notification")
		return nil
	}

	var subject, body string
	switch kind {
	case "submitted":
		subject = fmt.Sprintf("New submission #%d awaiting review", submissionID)
		body = fmt.Sprintf("Promoter %s submitted a new %q activity report.\nPlease review it.", promoterID, activityStream)
	case "approved":
		subject = fmt.Sprintf("Submission #%d approved", submissionID)
		body = fmt.Sprintf("Your %q activity report has been approved.", activityStream)
	case "rejected":
		subject = fmt.Sprintf("Submission #%d rejected", submissionID)
		body = fmt.Sprintf("Your %q activity report was rejected.\nReviewer notes: %s\nPlease revise and resubmit.", activityStream, note)
	case "reminder":
		subject = fmt.Sprintf("Submission #%d still awaiting review", submissionID)
		body = fmt.Sprintf("The %q activity report from promoter %s has not been reviewed yet.", activityStream, promoterID)
	default:
		return fmt.Errorf("unknown notification kind %q", kind)
	}

	msg := fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\n\r\n%s",
		cfg.From, recipient, subject, body,
	)

	addr := cfg.SMTPHost + ":" + cfg.SMTPPort
	auth := smtp.PlainAuth("", cfg.From, cfg.Password, cfg.SMTPHost)

	if err := smtp.SendMail(addr, auth, cfg.From, []string{recipient}, []byte(msg)); err != nil {
		log.Warn().Msgf("failed to send %s email for submission %d: %v", kind, submissionID, err)
		return fmt.Errorf("send email: %w", err)
	}

	log.Info().Int64("submission_id", submissionID).Str("kind", kind).Msg("notification email sent")
	return nil
}
