package models

import (
	"encoding/json"
	"time"
)

// Transaction represents one remuneration event on the ledger. Rows are
// append-only: once created the only permitted mutation is setting Void to
// true. Nothing is ever deleted.
type Transaction struct {
	// ID orders transactions; strictly increasing.
	ID int64 `json:"id" gorm:"column:id;primaryKey;autoIncrement"`
	// FromAddress is the paying subscriber's address as 20 raw bytes.
	FromAddress []byte `json:"fromaddress" gorm:"column:fromaddress;not null;index:ledger_index"`
	// ToAddress is the paid provider's address as 20 raw bytes.
	ToAddress []byte `json:"toaddress" gorm:"column:toaddress;not null;index:subscription_index"`
	// TransactionTS is the server-assigned timestamp of the event.
	TransactionTS time.Time `json:"transactionts" gorm:"column:transactionts;not null"`
	// AmountUSDCents is the non-negative amount; zero for gratis grants.
	AmountUSDCents int64 `json:"amountusdcents" gorm:"column:amountusdcents;not null"`
	// TransferID identifies the external payment-processor charge, or a
	// synthetic label for gratis and retarget entries.
	TransferID string `json:"transferid" gorm:"column:transferid;size:100;not null"`
	// EmailHash is the salted hash of the payer's email, if known.
	EmailHash []byte `json:"emailhash" gorm:"column:emailhash"`
	// Private transactions are only shown to callers who prove one of the
	// participating addresses.
	Private bool `json:"private" gorm:"column:private;default:false;not null"`
	// Void permanently excludes the row from tallies and listings while
	// keeping it on record.
	Void bool `json:"void" gorm:"column:void;default:false;not null"`
}

func (Transaction) TableName() string {
	return "transactions"
}

// LedgerEntry is a transaction as rendered back to callers: addresses in
// canonical '0x' prefixed hex form.
type LedgerEntry struct {
	AmountUSDCents int64     `json:"amountusdcents"`
	TransactionTS  time.Time `json:"transactionts"`
	From           string    `json:"from"`
	To             string    `json:"to"`
}

// TallyQuery selects the transactions to tally between one subscriber and
// one provider. Since and AsOf bounds are inclusive.
type TallyQuery struct {
	FromAddress    string
	ToAddress      string
	MaxMostRecent  int
	Since          *time.Time
	AsOf           *time.Time
	TallyOnly      bool
	IncludePrivate bool
}

// TallyEntry is one transaction in a tally listing; addresses are implied
// by the query and omitted.
type TallyEntry struct {
	Value int64     `json:"transaction-value"`
	Date  time.Time `json:"transaction-date"`
}

// TallyResult is the outcome of a tally computation. AsOf marks when the
// computation was performed; callers echo it back to enable cached
// back-end reads upstream.
//
// Transactions is nil for tally-only queries and non-nil otherwise; an
// empty listing is still a listing.
type TallyResult struct {
	Tally        int64        `json:"tally"`
	Transactions []TallyEntry `json:"transactions"`
	AsOf         string       `json:"as-of"`
}

// MarshalJSON drops the transactions key for tally-only results but keeps
// it, as [], when a listing matched nothing.
func (r TallyResult) MarshalJSON() ([]byte, error) {
	type wire struct {
		Tally        int64         `json:"tally"`
		Transactions *[]TallyEntry `json:"transactions,omitempty"`
		AsOf         string        `json:"as-of"`
	}
	w := wire{Tally: r.Tally, AsOf: r.AsOf}
	if r.Transactions != nil {
		w.Transactions = &r.Transactions
	}
	return json.Marshal(w)
}
