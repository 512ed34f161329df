package retarget

import (
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/core-coin/tabula/internal/fault"
	"github.com/core-coin/tabula/internal/models"
	"github.com/core-coin/tabula/pkg/logger"
)

// Orchestrator drives the re-target state machine: begin stores a TTL-bound
// session and mails its confirmation link, acknowledge reads it back, and
// finalize consumes it. Everything past the session handoff (fee, ledger
// rewrite) belongs to the caller.
type Orchestrator struct {
	logger   *logger.Logger
	sessions models.SessionStore
	notifier models.Notifier
	ttl      time.Duration

	subscriberMailsSent atomic.Int64
	providerMailsSent   atomic.Int64
}

func NewOrchestrator(logger *logger.Logger, sessions models.SessionStore, notifier models.Notifier, ttl time.Duration) *Orchestrator {
	return &Orchestrator{
		logger:   logger,
		sessions: sessions,
		notifier: notifier,
		ttl:      ttl,
	}
}

func sessionID(emailHash string) string {
	return strings.ToLower(fmt.Sprintf("%s-%s", emailHash, uuid.New()))
}

// RetargetSubscriber begins a subscriber re-target for the given email and
// replacement address.
func (o *Orchestrator) RetargetSubscriber(email, emailHash, address string) error {
	o.logger.Debug("Begin subscriber retarget for ", email)
	id := sessionID(emailHash)
	session := &models.RetargetSession{
		Email:     email,
		EmailHash: emailHash,
		Address:   address,
	}
	if err := o.sessions.Put(id, session, o.ttl); err != nil {
		return err
	}
	if err := o.notifier.SendRetarget(email, id, models.RetargetSubscriberKind); err != nil {
		return err
	}
	o.subscriberMailsSent.Add(1)
	o.logger.Debug("Retarget mail sent for ", email)
	return nil
}

// RetargetProvider begins a provider re-target; accountID scopes the rows
// to be rewritten at finalize time.
func (o *Orchestrator) RetargetProvider(email, emailHash, address, accountID string) error {
	o.logger.Debug("Begin provider retarget for ", email)
	id := sessionID(emailHash)
	session := &models.RetargetSession{
		Email:     email,
		EmailHash: emailHash,
		Address:   address,
		AccountID: accountID,
	}
	if err := o.sessions.Put(id, session, o.ttl); err != nil {
		return err
	}
	if err := o.notifier.SendRetarget(email, id, models.RetargetProviderKind); err != nil {
		return err
	}
	o.providerMailsSent.Add(1)
	o.logger.Debug("Retarget mail sent for ", email)
	return nil
}

// RetargetAcknowledged looks the session up without consuming it, for the
// confirmation page behind the mailed link.
func (o *Orchestrator) RetargetAcknowledged(id string) (*models.RetargetSession, error) {
	session, err := o.sessions.Get(id)
	if err != nil {
		o.logger.Debug("Retarget acknowledge FAIL (not found): ", id)
		return nil, fault.New(fault.Authorization, "invalid retarget link")
	}
	o.logger.Debug("Retarget acknowledged: ", id)
	return session, nil
}

// RetargetFinalized consumes the session. The link is dead after this call
// whether or not the caller's subsequent rewrite succeeds.
func (o *Orchestrator) RetargetFinalized(id string) (*models.RetargetSession, error) {
	session, err := o.sessions.Take(id)
	if err != nil {
		o.logger.Debug("Retarget finalize FAIL (not found): ", id)
		return nil, fault.New(fault.Authorization, "invalid retarget link")
	}
	o.logger.Debug("Retarget finalized: ", id)
	return session, nil
}

func (o *Orchestrator) Metrics() models.RetargetMetrics {
	return models.RetargetMetrics{
		SubscriberMailsSent: o.subscriberMailsSent.Load(),
		ProviderMailsSent:   o.providerMailsSent.Load(),
	}
}
