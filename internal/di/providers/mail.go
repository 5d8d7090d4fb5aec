package providers

import (
	"github.com/samber/do/v2"

	"github.com/tagboxapp/tagbox-server/internal/config"
	"github.com/tagboxapp/tagbox-server/internal/logger"
	"github.com/tagboxapp/tagbox-server/internal/mail"
	"github.com/tagboxapp/tagbox-server/internal/service"
)

// ProvideMailer provides the outgoing mail transport.
// Without SMTP settings mail is written to the log.
func ProvideMailer(i do.Injector) (mail.Mailer, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	if cfg.Mail.Enabled() {
		log.Info("SMTP mail enabled", "host", cfg.Mail.Host, "port", cfg.Mail.Port)
	} else {
		log.Warn("SMTP not configured - mail will be logged instead of sent")
	}

	return mail.New(cfg.Mail, log.Logger), nil
}

// ProvideNotifier provides the account mail notifier.
func ProvideNotifier(i do.Injector) (*service.Notifier, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)
	mailer := do.MustInvoke[mail.Mailer](i)

	composer := mail.NewComposer(cfg.Mail.FromName).WithURL(cfg.Server.PublicURL)
	return service.NewNotifier(mailer, composer, log.Logger), nil
}
