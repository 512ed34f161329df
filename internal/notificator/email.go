package notificator

import (
	"fmt"
	"net/smtp"
	"strconv"

	"github.com/core-coin/tabula/internal/fault"
	"github.com/core-coin/tabula/internal/models"
	"github.com/core-coin/tabula/pkg/logger"
)

const retargetSubject = "Ledger transaction re-targeting"

type EmailNotificator struct {
	logger *logger.Logger

	SMTPHost     string
	SMTPPort     int
	SMTPUser     string
	SMTPPassword string
	SMTPSender   string

	SMTPAuth smtp.Auth

	// BaseURI is the public base of this service, used to build the
	// confirmation link.
	BaseURI string
}

func NewEmailNotificator(logger *logger.Logger, SMTPHost string, SMTPPort int, SMTPUser string, SMTPPassword string, SMTPSender string, baseURI string) *EmailNotificator {
	auth := smtp.PlainAuth(
		"",
		SMTPUser,
		SMTPPassword,
		SMTPHost,
	)

	return &EmailNotificator{
		logger:       logger,
		SMTPAuth:     auth,
		SMTPHost:     SMTPHost,
		SMTPPort:     SMTPPort,
		SMTPUser:     SMTPUser,
		SMTPPassword: SMTPPassword,
		SMTPSender:   SMTPSender,
		BaseURI:      baseURI,
	}
}

func (e *EmailNotificator) SendRetarget(email, sessionID string, kind models.RetargetKind) error {
	url := fmt.Sprintf("%s/v1/retarget/%s", e.BaseURI, sessionID)
	e.logger.Debug("Preparing retarget email to ", email, " url ", url)

	addr := fmt.Sprintf("%s:%s", e.SMTPHost, strconv.Itoa(e.SMTPPort))
	msg := fmt.Sprintf(
		"From: %s\r\nTo: %s\r\nSubject: %s\r\n\r\n%s",
		e.SMTPSender,
		email,
		retargetSubject,
		renderRetargetBody(email, url, kind),
	)
	if err := smtp.SendMail(addr, e.SMTPAuth, e.SMTPSender, []string{email}, []byte(msg)); err != nil {
		return fault.Wrap(fault.Upstream, fmt.Sprintf("failed to send email to %s", email), err)
	}
	e.logger.Debug("Retarget email sent to ", email)
	return nil
}

func renderRetargetBody(email, url string, kind models.RetargetKind) string {
	switch kind {
	case models.RetargetProviderKind:
		return fmt.Sprintf(
			"Hello %s,\r\n\r\n"+
				"A request was made to re-target all ledger transactions paid out to your account onto a new address.\r\n\r\n"+
				"To review and confirm, open:\r\n\r\n%s\r\n\r\n"+
				"If you did not request this, ignore this email. The link expires shortly.\r\n",
			email, url)
	default:
		return fmt.Sprintf(
			"Hello %s,\r\n\r\n"+
				"A request was made to re-target all ledger transactions paid from your email onto a new address.\r\n\r\n"+
				"To review and confirm, open:\r\n\r\n%s\r\n\r\n"+
				"If you did not request this, ignore this email. The link expires shortly.\r\n",
			email, url)
	}
}
