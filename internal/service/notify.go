package service

import (
	"context"
	"log/slog"

	"github.com/tagboxapp/tagbox-server/internal/mail"
)

// Notifier renders and sends account emails. Delivery runs after the
// state change has committed; a failed send is logged and not returned,
// so responses look the same whether or not mail went out.
type Notifier struct {
	mailer   mail.Mailer
	composer *mail.Composer
	logger   *slog.Logger
}

// NewNotifier creates a new notifier.
func NewNotifier(mailer mail.Mailer, composer *mail.Composer, logger *slog.Logger) *Notifier {
	return &Notifier{
		mailer:   mailer,
		composer: composer,
		logger:   logger,
	}
}

func (n *Notifier) send(ctx context.Context, kind string, build func(c *mail.Composer) (mail.Message, error)) {
	msg, err := build(n.composer)
	if err != nil {
		n.logger.Error("failed to render email", "kind", kind, "error", err)
		return
	}
	if err := n.mailer.Send(ctx, msg); err != nil {
		n.logger.Error("failed to send email", "kind", kind, "to", msg.To, "error", err)
		return
	}
	n.logger.Debug("email sent", "kind", kind, "to", msg.To)
}
