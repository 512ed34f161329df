package ledger

import (
	"encoding/hex"
	"fmt"
	"os"
	"strings"

	"github.com/core-coin/tabula/internal/challenge"
	"github.com/core-coin/tabula/internal/fault"
	"github.com/core-coin/tabula/internal/models"
	"github.com/core-coin/tabula/internal/retarget"
	"github.com/core-coin/tabula/internal/tallycache"
	"github.com/core-coin/tabula/pkg/crypt"
	"github.com/core-coin/tabula/pkg/logger"
	"github.com/core-coin/tabula/pkg/validation"
)

// gratisTransferID labels the zero-amount rows created by Gratis; they have
// no processor charge behind them.
const gratisTransferID = "gratis"

// Tabula is the ledger service. It owns validation and flow sequencing and
// delegates persistence, payment, notification and signature recovery to
// its collaborators.
type Tabula struct {
	logger       *logger.Logger
	store        models.LedgerStore
	orchestrator *retarget.Orchestrator
	gw           models.PaymentGateway
	loopback     *challenge.LoopbackChecker
	authToken    *challenge.AuthTokenChecker
	tallyGate    *tallycache.Gate
	verifier     models.SignatureVerifier

	salt             string
	retargetFeeCents int64
	version          string
}

func NewTabula(
	logger *logger.Logger,
	store models.LedgerStore,
	orchestrator *retarget.Orchestrator,
	gw models.PaymentGateway,
	loopback *challenge.LoopbackChecker,
	authToken *challenge.AuthTokenChecker,
	tallyGate *tallycache.Gate,
	verifier models.SignatureVerifier,
	salt string,
	retargetFeeCents int64,
	version string,
) models.TabulaI {
	return &Tabula{
		logger:           logger,
		store:            store,
		orchestrator:     orchestrator,
		gw:               gw,
		loopback:         loopback,
		authToken:        authToken,
		tallyGate:        tallyGate,
		verifier:         verifier,
		salt:             salt,
		retargetFeeCents: retargetFeeCents,
		version:          version,
	}
}

// emailHash digests an email the way every persisted hash is produced:
// lowercased first, then salted.
func (t *Tabula) emailHash(email string) []byte {
	return crypt.Hash(strings.ToLower(email), t.salt)
}

func (t *Tabula) Gratis(address, signature, message string) error {
	address, err := validation.ValidateAndNormalizeAddress(address)
	if err != nil {
		return err
	}
	if err := t.loopback.CheckSignature(address, signature, message); err != nil {
		return err
	}
	if err := t.store.GetError(); err != nil {
		return err
	}
	count, err := t.store.GetNumTransactionsFromTo(address, address, true)
	if err != nil {
		return err
	}
	if count > 0 {
		// already granted, idempotent success
		return nil
	}
	return t.store.AddTransaction(address, address, 0, gratisTransferID, nil, false)
}

func (t *Tabula) Shunt(paymentGatewayToken, subscriberAddress, providerAddress string, amountCents int64, isPrivate bool) error {
	if paymentGatewayToken == "" {
		return fault.New(fault.Validation, "paymentGatewayToken must be provided")
	}
	subscriberAddress, err := validation.ValidateAndNormalizeAddress(subscriberAddress)
	if err != nil {
		return err
	}
	providerAddress, err = validation.ValidateAndNormalizeAddress(providerAddress)
	if err != nil {
		return err
	}
	if amountCents <= 0 {
		return fault.Newf(fault.Validation, "invalid amount (%d)", amountCents)
	}
	if err := t.store.GetError(); err != nil {
		return err
	}
	accountID, err := t.store.GetAccountID(providerAddress)
	if err != nil {
		return err
	}
	if accountID == "" {
		return fault.Newf(fault.NotFound, "no such provider: %s", providerAddress)
	}
	description := fmt.Sprintf("tx,%s,%s,%s,%d", accountID, subscriberAddress, providerAddress, amountCents)
	charge, err := t.gw.Charge(paymentGatewayToken, accountID, amountCents, description)
	if err != nil {
		return err
	}
	var emailHash []byte
	if charge.PayerEmail != "" {
		emailHash = t.emailHash(charge.PayerEmail)
	}
	return t.store.AddTransaction(subscriberAddress, providerAddress, amountCents, charge.TransferID, emailHash, isPrivate)
}

func (t *Tabula) Onboard(code, address, email string) (string, error) {
	if code == "" {
		return "", fault.New(fault.Validation, "onboarding code must be provided")
	}
	address, err := validation.ValidateAndNormalizeAddress(address)
	if err != nil {
		return "", err
	}
	var emailHash []byte
	if email != "" {
		if err := validation.ValidateEmail(email); err != nil {
			return "", err
		}
		emailHash = t.emailHash(email)
	}
	if err := t.store.GetError(); err != nil {
		return "", err
	}
	accountID, err := t.gw.CreateAccountGrant(code)
	if err != nil {
		return "", err
	}
	if err := t.store.AddProvider(accountID, address, emailHash); err != nil {
		return "", err
	}
	return accountID, nil
}

func (t *Tabula) GetTransactions(q models.TallyQuery) (*models.TallyResult, error) {
	from, err := validation.ValidateAndNormalizeAddress(q.FromAddress)
	if err != nil {
		return nil, err
	}
	to, err := validation.ValidateAndNormalizeAddress(q.ToAddress)
	if err != nil {
		return nil, err
	}
	q.FromAddress = from
	q.ToAddress = to
	if q.MaxMostRecent < 0 {
		return nil, fault.Newf(fault.Validation, "invalid max-most-recent, must be 1 or more (%d)", q.MaxMostRecent)
	}

	if cached, ok := t.tallyGate.Check(q); ok {
		return cached, nil
	}
	result, err := t.store.GetTransactions(q)
	if err != nil {
		return nil, err
	}
	t.tallyGate.Save(q, result)
	return result, nil
}

func (t *Tabula) IsSignatureValid(address, signature, message string, skipLedger bool) error {
	address, err := validation.ValidateAndNormalizeAddress(address)
	if err != nil {
		return err
	}
	if signature == "" || message == "" {
		return fault.New(fault.Authorization, "invalid signature")
	}
	recovered, err := t.verifier.Recover(message, signature)
	if err != nil {
		return err
	}
	if !strings.EqualFold(address, recovered) {
		return fault.New(fault.Authorization, "invalid signature")
	}
	if skipLedger {
		return nil
	}
	if err := t.store.GetError(); err != nil {
		// degraded store must not fail an otherwise valid signature
		t.logger.Warn("Skipping ledger check, store degraded: ", err)
		return nil
	}
	count, err := t.store.GetNumTransactionsByAddress(address, true)
	if err != nil {
		return err
	}
	if count == 0 {
		return fault.Newf(fault.NotFound, "no transactions for address %s", address)
	}
	return nil
}

func (t *Tabula) LedgerView(address string, includePrivate bool) ([]*models.LedgerEntry, int64, error) {
	address, err := validation.ValidateAndNormalizeAddress(address)
	if err != nil {
		return nil, 0, err
	}
	if err := t.store.GetError(); err != nil {
		return nil, 0, err
	}
	txs, err := t.store.GetLatestTransactionsByAddress(address, includePrivate)
	if err != nil {
		return nil, 0, err
	}
	numAll, err := t.store.GetNumTransactionsByAddress(address, includePrivate)
	if err != nil {
		return nil, 0, err
	}
	return txs, numAll, nil
}

func (t *Tabula) Export(address string, skip int) ([]*models.LedgerEntry, error) {
	address, err := validation.ValidateAndNormalizeAddress(address)
	if err != nil {
		return nil, err
	}
	if skip < 0 {
		return nil, fault.Newf(fault.Validation, "invalid skip (%d)", skip)
	}
	if err := t.store.GetError(); err != nil {
		return nil, err
	}
	return t.store.GetTransactionsToAddress(address, skip)
}

func (t *Tabula) IncludePrivate(address, signature, message, tokenSignature, authHeader string) bool {
	if signature != "" && message != "" {
		if err := t.loopback.CheckSignature(address, signature, message); err == nil {
			return true
		}
	}
	if tokenSignature != "" && authHeader != "" {
		if err := t.authToken.CheckSignature(address, tokenSignature, authHeader); err == nil {
			return true
		}
	}
	return false
}

func (t *Tabula) GetChallenge() (string, error) {
	return t.loopback.GetChallenge()
}

func (t *Tabula) VoidView(subscriberAddress, providerAddress, signature, message string) ([]*models.LedgerEntry, int64, error) {
	subscriberAddress, providerAddress, err := t.checkVoidRequest(subscriberAddress, providerAddress, signature, message)
	if err != nil {
		return nil, 0, err
	}
	txs, err := t.store.GetLatestTransactionsFromTo(subscriberAddress, providerAddress, true)
	if err != nil {
		return nil, 0, err
	}
	if len(txs) == 0 {
		return nil, 0, fault.Newf(fault.NotFound, "no transactions from %s to %s", subscriberAddress, providerAddress)
	}
	numAll, err := t.store.GetNumTransactionsFromTo(subscriberAddress, providerAddress, true)
	if err != nil {
		return nil, 0, err
	}
	return txs, numAll, nil
}

func (t *Tabula) GoVoid(subscriberAddress, providerAddress, signature, message string) error {
	subscriberAddress, providerAddress, err := t.checkVoidRequest(subscriberAddress, providerAddress, signature, message)
	if err != nil {
		return err
	}
	return t.store.VoidFromTo(subscriberAddress, providerAddress)
}

// checkVoidRequest shares the void preamble: canonical addresses, the
// provider's signature over a fresh challenge, healthy store.
func (t *Tabula) checkVoidRequest(subscriberAddress, providerAddress, signature, message string) (string, string, error) {
	subscriberAddress, err := validation.ValidateAndNormalizeAddress(subscriberAddress)
	if err != nil {
		return "", "", err
	}
	providerAddress, err = validation.ValidateAndNormalizeAddress(providerAddress)
	if err != nil {
		return "", "", err
	}
	if err := t.loopback.CheckSignature(providerAddress, signature, message); err != nil {
		return "", "", err
	}
	if err := t.store.GetError(); err != nil {
		return "", "", err
	}
	return subscriberAddress, providerAddress, nil
}

func (t *Tabula) RetargetSubscriber(email, address, signature, message string) error {
	if err := validation.ValidateEmail(email); err != nil {
		return err
	}
	address, err := validation.ValidateAndNormalizeAddress(address)
	if err != nil {
		return err
	}
	if err := t.loopback.CheckSignature(address, signature, message); err != nil {
		return err
	}
	if err := t.store.GetError(); err != nil {
		return err
	}
	emailHash := t.emailHash(email)
	found, err := t.store.IsEmailInTxs(emailHash)
	if err != nil {
		return err
	}
	if !found {
		return fault.Newf(fault.NotFound, "no transactions for email: %s", email)
	}
	return t.orchestrator.RetargetSubscriber(email, hex.EncodeToString(emailHash), address)
}

func (t *Tabula) RetargetProvider(accountID, email, address, signature, message string) error {
	if accountID == "" {
		return fault.New(fault.Validation, "accountId must be provided")
	}
	address, err := validation.ValidateAndNormalizeAddress(address)
	if err != nil {
		return err
	}
	if err := t.loopback.CheckSignature(address, signature, message); err != nil {
		return err
	}

	// the processor's email on file, if any, overrides the caller's
	processorEmail, err := t.gw.GetEmailForAccount(accountID)
	if err != nil {
		return err
	}

	if err := t.store.GetError(); err != nil {
		return err
	}
	if err := t.checkAddressConflict(address, accountID); err != nil {
		return err
	}

	if processorEmail != "" {
		email = processorEmail
	}
	if email == "" {
		return fault.New(fault.Validation, "no email provided")
	}
	emailHash := t.emailHash(email)

	var eligible bool
	if processorEmail != "" {
		// the processor vouches for the email, account scoping suffices
		eligible, err = t.store.IsAccountIDInTxs(accountID, nil)
	} else {
		eligible, err = t.store.IsAccountIDInTxs(accountID, emailHash)
	}
	if err != nil {
		return err
	}
	if !eligible {
		return fault.Newf(fault.NotFound, "no transactions for account %s and the provided email", accountID)
	}
	return t.orchestrator.RetargetProvider(email, hex.EncodeToString(emailHash), address, accountID)
}

// checkAddressConflict rejects a replacement address already registered to
// a different payment account.
func (t *Tabula) checkAddressConflict(address, accountID string) error {
	existing, err := t.store.GetAccountID(address)
	if err != nil {
		return err
	}
	if existing != "" && !strings.EqualFold(existing, accountID) {
		return fault.Newf(fault.Conflict, "address %s is already tied to a different account, cannot use it as a re-targeting target", address)
	}
	return nil
}

func (t *Tabula) RetargetAcknowledged(id string) (*models.RetargetView, error) {
	if id == "" {
		return nil, fault.New(fault.Validation, "invalid id")
	}
	id = strings.ToLower(id)
	session, err := t.orchestrator.RetargetAcknowledged(id)
	if err != nil {
		return nil, err
	}
	if err := t.store.GetError(); err != nil {
		return nil, err
	}

	var txs []*models.LedgerEntry
	var numAll int64
	if session.AccountID != "" {
		txs, err = t.store.GetLatestTransactionsByAccountID(session.AccountID)
		if err != nil {
			return nil, err
		}
		numAll, err = t.store.GetNumTransactionsByAccountID(session.AccountID)
	} else {
		emailHash, decodeErr := hex.DecodeString(session.EmailHash)
		if decodeErr != nil {
			return nil, fmt.Errorf("failed to decode session email hash: %s", decodeErr)
		}
		txs, err = t.store.GetLatestTransactionsByEmailHash(emailHash)
		if err != nil {
			return nil, err
		}
		numAll, err = t.store.GetNumTransactionsByEmailHash(emailHash)
	}
	if err != nil {
		return nil, err
	}
	if len(txs) == 0 {
		return nil, fault.New(fault.NotFound, "no transactions")
	}

	return &models.RetargetView{
		ID:           id,
		Email:        session.Email,
		Address:      session.Address,
		AccountID:    session.AccountID,
		Transactions: txs,
		NumAll:       numAll,
	}, nil
}

func (t *Tabula) GoRetarget(p models.GoRetargetParams) error {
	if p.PaymentGatewayToken == "" {
		return fault.New(fault.Validation, "paymentGatewayToken must be provided")
	}
	if err := validation.ValidateEmail(p.Email); err != nil {
		return err
	}
	if p.ID == "" {
		return fault.New(fault.Validation, "invalid id")
	}
	address, err := validation.ValidateAndNormalizeAddress(p.Address)
	if err != nil {
		return err
	}
	if err := t.loopback.CheckSignature(address, p.Signature, p.Message); err != nil {
		return err
	}
	emailHash := t.emailHash(p.Email)
	id := strings.ToLower(p.ID)

	// the link dies here: failures past this point do not resurrect it
	if _, err := t.orchestrator.RetargetFinalized(id); err != nil {
		return err
	}
	if err := t.store.GetError(); err != nil {
		return err
	}

	description := fmt.Sprintf("retarget,%s,%s,%s,%s,%d",
		p.AccountID, p.Email, hex.EncodeToString(emailHash), address, t.retargetFeeCents)
	transferID, err := t.gw.CollectRetargetFee(p.PaymentGatewayToken, t.retargetFeeCents, description)
	if err != nil {
		return err
	}

	if p.AccountID != "" {
		existing, err := t.store.GetAccountID(address)
		if err != nil {
			return err
		}
		if existing != "" && !strings.EqualFold(existing, p.AccountID) {
			return fault.Newf(fault.Conflict, "address %s is already tied to a different account, cannot use it as a re-targeting target", address)
		}
		if existing == "" {
			if err := t.store.AddProvider(p.AccountID, address, emailHash); err != nil {
				return err
			}
		}
		return t.store.RetargetByAccountID(p.AccountID, transferID, address)
	}
	return t.store.RetargetByEmailHash(emailHash, transferID, address)
}

func (t *Tabula) Status() (*models.Status, error) {
	host, err := os.Hostname()
	if err != nil {
		host = "unknown"
	}
	database := "OK"
	if err := t.store.GetError(); err != nil {
		database = err.Error()
	}
	return &models.Status{
		Host:       host,
		Version:    t.version,
		Database:   database,
		Retarget:   t.orchestrator.Metrics(),
		Loopback:   t.loopback.Metrics(),
		AuthToken:  t.authToken.Metrics(),
		Gateway:    t.gw.Metrics(),
		TallyCache: t.tallyGate.Metrics(),
	}, nil
}
