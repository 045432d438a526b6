package notify

import (
	"log/slog"

	mailjet "github.com/mailjet/mailjet-apiv3-go/v4"

	"github.com/taskbridge/taskbridge/internal/config"
	"github.com/taskbridge/taskbridge/pkg/cerr"
)

// Sender delivers the "your sync is broken" email through a Mailjet
// template.
type Sender struct {
	client *mailjet.Client
	env    *config.MailEnv
}

func NewSender(env *config.MailEnv) *Sender {
	return &Sender{
		client: mailjet.NewMailjetClient(env.MailjetAPIKey, env.MailjetSecretKey),
		env:    env,
	}
}

// Configured reports whether mail credentials are present. Local setups run
// without them and just log.
func (s *Sender) Configured() bool {
	return s.env.MailjetAPIKey != "" && s.env.MailjetSecretKey != ""
}

func (s *Sender) SendFailureNotice(email, failureMessage string) error {
	if !s.Configured() {
		slog.Warn("mail: credentials not configured, skipping failure notice", "email", email)
		return nil
	}

	messages := mailjet.MessagesV31{
		Info: []mailjet.InfoMessagesV31{
			{
				From: &mailjet.RecipientV31{
					Email: s.env.FromEmail,
					Name:  s.env.FromName,
				},
				To: &mailjet.RecipientsV31{
					mailjet.RecipientV31{Email: email},
				},
				TemplateID:       s.env.TemplateID,
				TemplateLanguage: true,
				Subject:          "Your task sync needs attention",
				Variables: map[string]interface{}{
					"error_message": failureMessage,
				},
			},
		},
	}
	if _, err := s.client.SendMailV31(&messages); err != nil {
		return cerr.NewError(cerr.Unavailable, "failed to send failure notice", err)
	}
	return nil
}
