package retarget

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/core-coin/tabula/internal/fault"
	"github.com/core-coin/tabula/internal/models"
	"github.com/core-coin/tabula/internal/session"
	"github.com/core-coin/tabula/pkg/logger"
)

type mailRecord struct {
	email     string
	sessionID string
	kind      models.RetargetKind
}

type stubNotifier struct {
	sent []mailRecord
	err  error
}

func (n *stubNotifier) SendRetarget(email, sessionID string, kind models.RetargetKind) error {
	if n.err != nil {
		return n.err
	}
	n.sent = append(n.sent, mailRecord{email: email, sessionID: sessionID, kind: kind})
	return nil
}

func testLogger() *logger.Logger {
	return &logger.Logger{SugaredLogger: zap.NewNop().Sugar()}
}

func newTestOrchestrator(notifier *stubNotifier) *Orchestrator {
	log := testLogger()
	return NewOrchestrator(log, session.NewStore(time.Minute, log), notifier, time.Minute)
}

func TestRetargetSubscriberSendsLink(t *testing.T) {
	notifier := &stubNotifier{}
	o := newTestOrchestrator(notifier)

	require.NoError(t, o.RetargetSubscriber("sub@example.com", "DEADBEEF", "0xabc"))

	require.Len(t, notifier.sent, 1)
	assert.Equal(t, "sub@example.com", notifier.sent[0].email)
	assert.Equal(t, models.RetargetSubscriberKind, notifier.sent[0].kind)
	assert.True(t, strings.HasPrefix(notifier.sent[0].sessionID, "deadbeef-"))
	assert.Equal(t, notifier.sent[0].sessionID, strings.ToLower(notifier.sent[0].sessionID))

	got, err := o.RetargetAcknowledged(notifier.sent[0].sessionID)
	require.NoError(t, err)
	assert.Equal(t, "sub@example.com", got.Email)
	assert.Equal(t, "0xabc", got.Address)
	assert.Empty(t, got.AccountID)

	assert.Equal(t, int64(1), o.Metrics().SubscriberMailsSent)
	assert.Equal(t, int64(0), o.Metrics().ProviderMailsSent)
}

func TestRetargetProviderCarriesAccountID(t *testing.T) {
	notifier := &stubNotifier{}
	o := newTestOrchestrator(notifier)

	require.NoError(t, o.RetargetProvider("prov@example.com", "cafe", "0xdef", "acct_1"))

	require.Len(t, notifier.sent, 1)
	assert.Equal(t, models.RetargetProviderKind, notifier.sent[0].kind)

	got, err := o.RetargetAcknowledged(notifier.sent[0].sessionID)
	require.NoError(t, err)
	assert.Equal(t, "acct_1", got.AccountID)
	assert.Equal(t, int64(1), o.Metrics().ProviderMailsSent)
}

func TestAcknowledgeDoesNotConsume(t *testing.T) {
	notifier := &stubNotifier{}
	o := newTestOrchestrator(notifier)
	require.NoError(t, o.RetargetSubscriber("sub@example.com", "aa", "0xabc"))
	id := notifier.sent[0].sessionID

	_, err := o.RetargetAcknowledged(id)
	require.NoError(t, err)
	_, err = o.RetargetAcknowledged(id)
	require.NoError(t, err)
}

func TestFinalizeIsSingleUse(t *testing.T) {
	notifier := &stubNotifier{}
	o := newTestOrchestrator(notifier)
	require.NoError(t, o.RetargetSubscriber("sub@example.com", "aa", "0xabc"))
	id := notifier.sent[0].sessionID

	got, err := o.RetargetFinalized(id)
	require.NoError(t, err)
	assert.Equal(t, "sub@example.com", got.Email)

	_, err = o.RetargetFinalized(id)
	require.Error(t, err)
	assert.True(t, fault.IsKind(err, fault.Authorization))

	// the link is dead for acknowledge too
	_, err = o.RetargetAcknowledged(id)
	require.Error(t, err)
	assert.True(t, fault.IsKind(err, fault.Authorization))
}

func TestInvalidLink(t *testing.T) {
	o := newTestOrchestrator(&stubNotifier{})

	_, err := o.RetargetAcknowledged("never-issued")
	require.Error(t, err)
	assert.True(t, fault.IsKind(err, fault.Authorization))

	_, err = o.RetargetFinalized("never-issued")
	require.Error(t, err)
	assert.True(t, fault.IsKind(err, fault.Authorization))
}

func TestMailFailureFailsBegin(t *testing.T) {
	notifier := &stubNotifier{err: fault.New(fault.Upstream, "smtp down")}
	o := newTestOrchestrator(notifier)

	err := o.RetargetSubscriber("sub@example.com", "aa", "0xabc")
	require.Error(t, err)
	assert.True(t, fault.IsKind(err, fault.Upstream))
	assert.Equal(t, int64(0), o.Metrics().SubscriberMailsSent)
}
