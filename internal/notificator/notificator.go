package notificator

import (
	"fmt"
	"runtime/debug"

	"github.com/core-coin/tabula/internal/models"
	"github.com/core-coin/tabula/pkg/logger"
)

// Notificator fans a re-target notification out to email (required) and an
// operator alert channel (optional). Email failure fails the operation;
// alert failure is logged only.
type Notificator struct {
	logger *logger.Logger

	TelegramNotificator *TelegramNotificator
	EmailNotificator    *EmailNotificator
}

func NewNotificator(logger *logger.Logger, telNotif *TelegramNotificator, emailNotif *EmailNotificator) *Notificator {
	return &Notificator{logger: logger, TelegramNotificator: telNotif, EmailNotificator: emailNotif}
}

// safeCall runs a function with panic recovery (synchronous, no goroutine spawning)
func (n *Notificator) safeCall(fn func(), context string) {
	defer func() {
		if r := recover(); r != nil {
			n.logger.Error("Function panicked",
				"context", context,
				"panic", r,
				"stack", string(debug.Stack()))
		}
	}()
	fn()
}

func (n *Notificator) SendRetarget(email, sessionID string, kind models.RetargetKind) error {
	if err := n.EmailNotificator.SendRetarget(email, sessionID, kind); err != nil {
		return err
	}
	if n.TelegramNotificator != nil {
		message := fmt.Sprintf("Re-target mail (%s) sent, session %s", kind, sessionID)
		n.safeCall(func() { n.TelegramNotificator.SendAlert(message) }, "telegramAlert")
	}
	return nil
}
