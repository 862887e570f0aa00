package alert

import (
	"context"
	"fmt"

	gomail "gopkg.in/gomail.v2"

	"github.com/teambrains/teambrains-backend/pkg/config"
	"github.com/teambrains/teambrains-backend/pkg/logutils"
)

type SMTPMailer struct {
	dialer *gomail.Dialer
	from   string
}

func NewSMTPMailer() *SMTPMailer {
	smtpConfig := config.GetConfig().SMTP
	return &SMTPMailer{
		dialer: gomail.NewDialer(smtpConfig.Host, smtpConfig.Port, smtpConfig.User, smtpConfig.Password),
		from:   smtpConfig.From,
	}
}

func (m *SMTPMailer) ProjectCompleted(_ context.Context, recipients []string, projectName string) error {
	if len(recipients) == 0 {
		return nil
	}
	msg := gomail.NewMessage()
	msg.SetHeader("From", m.from)
	msg.SetHeader("Bcc", recipients...)
	msg.SetHeader("Subject", fmt.Sprintf("Project %q is complete", projectName))
	msg.SetBody("text/plain", fmt.Sprintf(
		"All tasks of the project %q are now validated at 100%%.\n"+
			"The project has been added to the CV of every member.\n", projectName))

	if err := m.dialer.DialAndSend(msg); err != nil {
		return fmt.Errorf("send completion mail: %w", err)
	}
	return nil
}

// NopMailer drops notifications, used in debug mode and tests.
type NopMailer struct{}

func (NopMailer) ProjectCompleted(_ context.Context, recipients []string, projectName string) error {
	logutils.Log.Debugf("nop mailer: project %q completed, %d recipients", projectName, len(recipients))
	return nil
}
