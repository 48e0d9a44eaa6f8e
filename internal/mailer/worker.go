package mailer

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/riverqueue/river"
)

// MagicLinkArgs is the queued payload for one login email.
type MagicLinkArgs struct {
	Email string `json:"email"`
	Link  string `json:"link"`
}

func (MagicLinkArgs) Kind() string { return "send_magic_link" }

// Sender delivers one email. The real transport lives outside this
// repository; LogSender stands in for development.
type Sender interface {
	Send(ctx context.Context, to, subject, body string) error
}

// LogSender writes the email to the log instead of delivering it.
type LogSender struct {
	Logger *slog.Logger
}

func (s *LogSender) Send(_ context.Context, to, subject, body string) error {
	s.Logger.Info("magic link email", "to", to, "subject", subject, "body", body)
	return nil
}

// MagicLinkWorker processes queued login emails.
type MagicLinkWorker struct {
	river.WorkerDefaults[MagicLinkArgs]
	sender Sender
}

func NewMagicLinkWorker(sender Sender) *MagicLinkWorker {
	return &MagicLinkWorker{sender: sender}
}

func (w *MagicLinkWorker) Work(ctx context.Context, job *river.Job[MagicLinkArgs]) error {
	args := job.Args
	body := fmt.Sprintf("Sign in to Campfire:\n\n%s\n\nThis link expires in 15 minutes.", args.Link)
	if err := w.sender.Send(ctx, args.Email, "Your Campfire sign-in link", body); err != nil {
		return fmt.Errorf("send magic link to %s: %w", args.Email, err)
	}
	return nil
}
