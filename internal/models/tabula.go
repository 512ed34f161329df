package models

// RetargetView is what a confirmation page needs to display before a
// re-target is finalized: the session payload and the transactions about
// to be moved.
type RetargetView struct {
	ID           string         `json:"id"`
	Email        string         `json:"email"`
	Address      string         `json:"address"`
	AccountID    string         `json:"accountId,omitempty"`
	Transactions []*LedgerEntry `json:"txs"`
	NumAll       int64          `json:"num_all_txs"`
}

// GoRetargetParams carries the finalize request for a re-target.
type GoRetargetParams struct {
	PaymentGatewayToken string
	Email               string
	Address             string
	AccountID           string
	ID                  string
	Signature           string
	Message             string
}

// Status is the health report served at /status.json.
type Status struct {
	Host       string           `json:"host"`
	Version    string           `json:"version"`
	Database   string           `json:"database"`
	Retarget   RetargetMetrics  `json:"retarget"`
	Loopback   ChallengeMetrics `json:"loopbackChallenge"`
	AuthToken  ChallengeMetrics `json:"authTokenChallenge"`
	Gateway    GatewayMetrics   `json:"paymentGateway"`
	TallyCache CacheMetrics     `json:"tallyCache"`
}

// TabulaI is the core ledger service: every inbound operation the HTTP
// surface exposes is a method here returning either success or one typed
// fault.
type TabulaI interface {
	// Gratis records a zero-amount self transaction for a signature-proved
	// address, once.
	Gratis(address, signature, message string) error

	// Shunt charges the subscriber's card via the payment gateway and
	// records the paid transaction.
	Shunt(paymentGatewayToken, subscriberAddress, providerAddress string, amountCents int64, isPrivate bool) error

	// Onboard exchanges an onboarding code for a payment account and
	// registers the provider. Returns the new account ID.
	Onboard(code, address, email string) (string, error)

	// GetTransactions tallies (and optionally lists) transactions between
	// two addresses.
	GetTransactions(q TallyQuery) (*TallyResult, error)

	// IsSignatureValid checks a signature against an address and, unless
	// skipLedger, requires the address to exist on the ledger.
	IsSignatureValid(address, signature, message string, skipLedger bool) error

	// LedgerView lists an address's transactions on either side of the
	// relation with the total count.
	LedgerView(address string, includePrivate bool) ([]*LedgerEntry, int64, error)

	// Export pages all non-void transactions addressed to an address.
	Export(address string, skip int) ([]*LedgerEntry, error)

	// IncludePrivate reports whether the caller proved the address via one
	// of the challenge gates.
	IncludePrivate(address, signature, message, tokenSignature, authHeader string) bool

	// GetChallenge issues a fresh loopback challenge token.
	GetChallenge() (string, error)

	// VoidView lists the transactions a provider-signed void request would
	// mark void.
	VoidView(subscriberAddress, providerAddress, signature, message string) ([]*LedgerEntry, int64, error)

	// GoVoid marks all non-void transactions from subscriber to provider
	// void.
	GoVoid(subscriberAddress, providerAddress, signature, message string) error

	// RetargetSubscriber begins a subscriber re-target.
	RetargetSubscriber(email, address, signature, message string) error

	// RetargetProvider begins a provider re-target.
	RetargetProvider(accountID, email, address, signature, message string) error

	// RetargetAcknowledged renders the confirmation view for a re-target
	// link without consuming it.
	RetargetAcknowledged(id string) (*RetargetView, error)

	// GoRetarget finalizes a re-target: consumes the session, collects the
	// fee and rewrites the matched transactions.
	GoRetarget(p GoRetargetParams) error

	// Status reports component health and metrics.
	Status() (*Status, error)
}
