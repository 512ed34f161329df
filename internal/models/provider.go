package models

// Provider represents a registered payee: one ledger address bound to one
// payment-gateway account.
type Provider struct {
	// ID is the unique identifier for the provider row.
	ID int64 `json:"id" gorm:"column:id;primaryKey;autoIncrement"`
	// PaymentGatewayID is the account identifier at the card-payment processor.
	// It may appear on multiple rows transiently during re-target rewrites;
	// superseded rows remain for audit.
	PaymentGatewayID string `json:"paymentgatewayid" gorm:"column:paymentgatewayid;size:100;not null;index"`
	// Address is the provider's ledger address as 20 raw bytes. An address
	// appears in at most one provider row at any time.
	Address []byte `json:"address" gorm:"column:address;not null;index"`
	// EmailHash is the salted hash of the provider's email, never the raw email.
	EmailHash []byte `json:"emailhash" gorm:"column:emailhash"`
}

func (Provider) TableName() string {
	return "providers"
}
