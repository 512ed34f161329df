package models

// ChargeResult is what the card-payment processor returns for a completed
// charge.
type ChargeResult struct {
	TransferID string
	PayerEmail string
}

// PaymentGateway is the card-payment processor the ledger moves money
// through.
type PaymentGateway interface {
	// CreateAccountGrant exchanges an onboarding authorization code for the
	// new payee's account identifier.
	CreateAccountGrant(code string) (string, error)
	// Charge moves amountCents from the card behind token to the payee
	// account, returning the charge reference and the payer's email.
	Charge(token, accountID string, amountCents int64, description string) (*ChargeResult, error)
	// CollectRetargetFee charges the flat re-target fee, returning the
	// charge reference used as the rewritten rows' transfer ID.
	CollectRetargetFee(token string, amountCents int64, description string) (string, error)
	// GetEmailForAccount returns the email on file for the account, or ""
	// when the processor has none.
	GetEmailForAccount(accountID string) (string, error)
	// Metrics reports processor interaction counters for health reporting.
	Metrics() GatewayMetrics
}
