package models

// LedgerStore is the sole owner of persisted provider and transaction
// state; every ledger read and write goes through it.
//
// Address parameters are canonical '0x' prefixed hex strings; email hashes
// are raw digest bytes.
type LedgerStore interface {
	AddProvider(paymentGatewayID, address string, emailHash []byte) error
	GetAccountID(address string) (string, error)

	AddTransaction(fromAddress, toAddress string, amountCents int64, transferID string, emailHash []byte, isPrivate bool) error

	GetNumTransactionsFromTo(from, to string, includePrivate bool) (int64, error)
	GetNumTransactionsByAddress(address string, includePrivate bool) (int64, error)
	GetNumTransactionsByEmailHash(emailHash []byte) (int64, error)
	GetNumTransactionsByAccountID(accountID string) (int64, error)

	GetLatestTransactionsFromTo(from, to string, includePrivate bool) ([]*LedgerEntry, error)
	GetLatestTransactionsByAddress(address string, includePrivate bool) ([]*LedgerEntry, error)
	GetLatestTransactionsByEmailHash(emailHash []byte) ([]*LedgerEntry, error)
	GetLatestTransactionsByAccountID(accountID string) ([]*LedgerEntry, error)

	// GetTransactionsToAddress pages non-void rows addressed to an address in
	// descending timestamp order, for export.
	GetTransactionsToAddress(address string, skip int) ([]*LedgerEntry, error)

	GetTransactions(q TallyQuery) (*TallyResult, error)

	IsEmailInTxs(emailHash []byte) (bool, error)
	// IsAccountIDInTxs checks for non-void transactions belonging to the
	// provider account; a non-nil emailHash additionally filters to rows
	// carrying that hash.
	IsAccountIDInTxs(accountID string, emailHash []byte) (bool, error)

	VoidFromTo(from, to string) error
	RetargetByEmailHash(emailHash []byte, newTransferID, newAddress string) error
	RetargetByAccountID(accountID, newTransferID, newAddress string) error

	// GetError is a liveness probe: nil means healthy, non-nil means the
	// store is degraded and operations should be short-circuited.
	GetError() error
	Close() error
}
