package repository

import (
	"bytes"
	"sort"
	"sync"
	"time"

	"github.com/core-coin/tabula/internal/fault"
	"github.com/core-coin/tabula/internal/models"
	"github.com/core-coin/tabula/pkg/logger"
	"github.com/core-coin/tabula/pkg/validation"
)

// MemoryDB is a process-local LedgerStore for development and tests. State
// is lost on shutdown, so it must never back a production deployment.
type MemoryDB struct {
	logger *logger.Logger

	mu            sync.RWMutex
	providers     []models.Provider
	transactions  []models.Transaction
	nextID        int64
	selectMaxRows int
}

func NewMemoryDB(selectMaxRows int, logger *logger.Logger) models.LedgerStore {
	logger.Warn("Using in-memory ledger store: all data is lost on restart")
	return &MemoryDB{logger: logger, nextID: 1, selectMaxRows: selectMaxRows}
}

func (db *MemoryDB) Close() error {
	return nil
}

func (db *MemoryDB) AddProvider(paymentGatewayID, address string, emailHash []byte) error {
	addr, err := validation.AddressBytes(address)
	if err != nil {
		return err
	}
	db.mu.Lock()
	defer db.mu.Unlock()
	for _, p := range db.providers {
		if bytes.Equal(p.Address, addr) {
			return fault.Newf(fault.Conflict, "this public address is already registered with the ledger: %s", address)
		}
	}
	db.providers = append(db.providers, models.Provider{
		ID:               int64(len(db.providers) + 1),
		PaymentGatewayID: paymentGatewayID,
		Address:          addr,
		EmailHash:        emailHash,
	})
	return nil
}

func (db *MemoryDB) GetAccountID(address string) (string, error) {
	addr, err := validation.AddressBytes(address)
	if err != nil {
		return "", err
	}
	db.mu.RLock()
	defer db.mu.RUnlock()
	for _, p := range db.providers {
		if bytes.Equal(p.Address, addr) {
			return p.PaymentGatewayID, nil
		}
	}
	return "", nil
}

func (db *MemoryDB) AddTransaction(fromAddress, toAddress string, amountCents int64, transferID string, emailHash []byte, isPrivate bool) error {
	from, err := validation.AddressBytes(fromAddress)
	if err != nil {
		return err
	}
	to, err := validation.AddressBytes(toAddress)
	if err != nil {
		return err
	}
	db.mu.Lock()
	defer db.mu.Unlock()
	db.transactions = append(db.transactions, models.Transaction{
		ID:             db.nextID,
		FromAddress:    from,
		ToAddress:      to,
		TransactionTS:  time.Now().UTC(),
		AmountUSDCents: amountCents,
		TransferID:     transferID,
		EmailHash:      emailHash,
		Private:        isPrivate,
	})
	db.nextID++
	return nil
}

// accountAddresses resolves a payment account to its registered ledger
// addresses. Caller holds the lock.
func (db *MemoryDB) accountAddresses(accountID string) [][]byte {
	var addrs [][]byte
	for _, p := range db.providers {
		if p.PaymentGatewayID == accountID {
			addrs = append(addrs, p.Address)
		}
	}
	return addrs
}

// emailHashMatches mirrors the relational predicate: a nil query hash
// matches nothing, gratis rows without a hash included.
func emailHashMatches(rowHash, queryHash []byte) bool {
	return len(queryHash) > 0 && bytes.Equal(rowHash, queryHash)
}

func addressIn(addr []byte, addrs [][]byte) bool {
	for _, a := range addrs {
		if bytes.Equal(addr, a) {
			return true
		}
	}
	return false
}

// selectRows returns the non-void transactions accepted by keep, newest
// first. Caller holds the lock.
func (db *MemoryDB) selectRows(keep func(models.Transaction) bool) []models.Transaction {
	var rows []models.Transaction
	for _, tx := range db.transactions {
		if tx.Void || !keep(tx) {
			continue
		}
		rows = append(rows, tx)
	}
	sort.SliceStable(rows, func(i, j int) bool {
		return rows[i].TransactionTS.After(rows[j].TransactionTS)
	})
	return rows
}

func capRows(rows []models.Transaction, limit int) []models.Transaction {
	if limit > 0 && len(rows) > limit {
		rows = rows[:limit]
	}
	return rows
}

func (db *MemoryDB) GetNumTransactionsFromTo(from, to string, includePrivate bool) (int64, error) {
	fromB, err := validation.AddressBytes(from)
	if err != nil {
		return 0, err
	}
	toB, err := validation.AddressBytes(to)
	if err != nil {
		return 0, err
	}
	db.mu.RLock()
	defer db.mu.RUnlock()
	rows := db.selectRows(func(tx models.Transaction) bool {
		return bytes.Equal(tx.FromAddress, fromB) && bytes.Equal(tx.ToAddress, toB) &&
			(includePrivate || !tx.Private)
	})
	return int64(len(rows)), nil
}

func (db *MemoryDB) GetNumTransactionsByAddress(address string, includePrivate bool) (int64, error) {
	addr, err := validation.AddressBytes(address)
	if err != nil {
		return 0, err
	}
	db.mu.RLock()
	defer db.mu.RUnlock()
	rows := db.selectRows(func(tx models.Transaction) bool {
		return (bytes.Equal(tx.FromAddress, addr) || bytes.Equal(tx.ToAddress, addr)) &&
			(includePrivate || !tx.Private)
	})
	return int64(len(rows)), nil
}

func (db *MemoryDB) GetNumTransactionsByEmailHash(emailHash []byte) (int64, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	rows := db.selectRows(func(tx models.Transaction) bool {
		return emailHashMatches(tx.EmailHash, emailHash)
	})
	return int64(len(rows)), nil
}

func (db *MemoryDB) GetNumTransactionsByAccountID(accountID string) (int64, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	addrs := db.accountAddresses(accountID)
	rows := db.selectRows(func(tx models.Transaction) bool {
		return addressIn(tx.ToAddress, addrs)
	})
	return int64(len(rows)), nil
}

func (db *MemoryDB) GetLatestTransactionsFromTo(from, to string, includePrivate bool) ([]*models.LedgerEntry, error) {
	fromB, err := validation.AddressBytes(from)
	if err != nil {
		return nil, err
	}
	toB, err := validation.AddressBytes(to)
	if err != nil {
		return nil, err
	}
	db.mu.RLock()
	defer db.mu.RUnlock()
	rows := db.selectRows(func(tx models.Transaction) bool {
		return bytes.Equal(tx.FromAddress, fromB) && bytes.Equal(tx.ToAddress, toB) &&
			(includePrivate || !tx.Private)
	})
	return toEntries(capRows(rows, db.selectMaxRows)), nil
}

func (db *MemoryDB) GetLatestTransactionsByAddress(address string, includePrivate bool) ([]*models.LedgerEntry, error) {
	addr, err := validation.AddressBytes(address)
	if err != nil {
		return nil, err
	}
	db.mu.RLock()
	defer db.mu.RUnlock()
	rows := db.selectRows(func(tx models.Transaction) bool {
		return (bytes.Equal(tx.FromAddress, addr) || bytes.Equal(tx.ToAddress, addr)) &&
			(includePrivate || !tx.Private)
	})
	return toEntries(capRows(rows, db.selectMaxRows)), nil
}

func (db *MemoryDB) GetLatestTransactionsByEmailHash(emailHash []byte) ([]*models.LedgerEntry, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	rows := db.selectRows(func(tx models.Transaction) bool {
		return emailHashMatches(tx.EmailHash, emailHash)
	})
	return toEntries(capRows(rows, db.selectMaxRows)), nil
}

func (db *MemoryDB) GetLatestTransactionsByAccountID(accountID string) ([]*models.LedgerEntry, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	addrs := db.accountAddresses(accountID)
	rows := db.selectRows(func(tx models.Transaction) bool {
		return addressIn(tx.ToAddress, addrs)
	})
	return toEntries(capRows(rows, db.selectMaxRows)), nil
}

func (db *MemoryDB) GetTransactionsToAddress(address string, skip int) ([]*models.LedgerEntry, error) {
	addr, err := validation.AddressBytes(address)
	if err != nil {
		return nil, err
	}
	db.mu.RLock()
	defer db.mu.RUnlock()
	rows := db.selectRows(func(tx models.Transaction) bool {
		return bytes.Equal(tx.ToAddress, addr)
	})
	if skip >= len(rows) {
		return toEntries(nil), nil
	}
	return toEntries(capRows(rows[skip:], db.selectMaxRows)), nil
}

func (db *MemoryDB) GetTransactions(q models.TallyQuery) (*models.TallyResult, error) {
	fromB, err := validation.AddressBytes(q.FromAddress)
	if err != nil {
		return nil, err
	}
	toB, err := validation.AddressBytes(q.ToAddress)
	if err != nil {
		return nil, err
	}

	db.mu.RLock()
	defer db.mu.RUnlock()
	rows := db.selectRows(func(tx models.Transaction) bool {
		if !bytes.Equal(tx.FromAddress, fromB) || !bytes.Equal(tx.ToAddress, toB) {
			return false
		}
		if tx.Private && !q.IncludePrivate {
			return false
		}
		if q.Since != nil && tx.TransactionTS.Before(q.Since.UTC()) {
			return false
		}
		if q.AsOf != nil && tx.TransactionTS.After(q.AsOf.UTC()) {
			return false
		}
		return true
	})
	rows = capRows(rows, q.MaxMostRecent)

	result := &models.TallyResult{AsOf: time.Now().UTC().Format(time.RFC3339Nano)}
	var entries []models.TallyEntry
	for _, row := range rows {
		result.Tally += row.AmountUSDCents
		entries = append(entries, models.TallyEntry{Value: row.AmountUSDCents, Date: row.TransactionTS})
	}
	if !q.TallyOnly {
		if entries == nil {
			entries = []models.TallyEntry{}
		}
		result.Transactions = entries
	}
	return result, nil
}

func (db *MemoryDB) IsEmailInTxs(emailHash []byte) (bool, error) {
	count, err := db.GetNumTransactionsByEmailHash(emailHash)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (db *MemoryDB) IsAccountIDInTxs(accountID string, emailHash []byte) (bool, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	addrs := db.accountAddresses(accountID)
	rows := db.selectRows(func(tx models.Transaction) bool {
		if !addressIn(tx.ToAddress, addrs) {
			return false
		}
		return emailHash == nil || emailHashMatches(tx.EmailHash, emailHash)
	})
	return len(rows) > 0, nil
}

func (db *MemoryDB) VoidFromTo(from, to string) error {
	fromB, err := validation.AddressBytes(from)
	if err != nil {
		return err
	}
	toB, err := validation.AddressBytes(to)
	if err != nil {
		return err
	}
	db.mu.Lock()
	defer db.mu.Unlock()
	voided := 0
	for i := range db.transactions {
		tx := &db.transactions[i]
		if tx.Void || !bytes.Equal(tx.FromAddress, fromB) || !bytes.Equal(tx.ToAddress, toB) {
			continue
		}
		tx.Void = true
		voided++
	}
	if voided == 0 {
		return fault.Newf(fault.NotFound, "no transactions from %s to %s", from, to)
	}
	return nil
}

// retarget copies every matched non-void row with swap applied, then voids
// the originals, under one lock so readers never observe a partial move.
func (db *MemoryDB) retarget(match func(models.Transaction) bool, newTransferID string, swap func(*models.Transaction)) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	var idx []int
	for i, tx := range db.transactions {
		if !tx.Void && match(tx) {
			idx = append(idx, i)
		}
	}
	if len(idx) == 0 {
		return fault.New(fault.NotFound, "no transactions found")
	}

	for _, i := range idx {
		clone := db.transactions[i]
		clone.ID = db.nextID
		clone.TransferID = newTransferID
		swap(&clone)
		db.nextID++
		db.transactions = append(db.transactions, clone)
		db.transactions[i].Void = true
	}
	return nil
}

func (db *MemoryDB) RetargetByEmailHash(emailHash []byte, newTransferID, newAddress string) error {
	addr, err := validation.AddressBytes(newAddress)
	if err != nil {
		return err
	}
	return db.retarget(func(tx models.Transaction) bool {
		return emailHashMatches(tx.EmailHash, emailHash)
	}, newTransferID, func(t *models.Transaction) {
		t.FromAddress = addr
	})
}

func (db *MemoryDB) RetargetByAccountID(accountID, newTransferID, newAddress string) error {
	addr, err := validation.AddressBytes(newAddress)
	if err != nil {
		return err
	}
	db.mu.RLock()
	addrs := db.accountAddresses(accountID)
	db.mu.RUnlock()
	return db.retarget(func(tx models.Transaction) bool {
		return addressIn(tx.ToAddress, addrs)
	}, newTransferID, func(t *models.Transaction) {
		t.ToAddress = addr
	})
}

func (db *MemoryDB) GetError() error {
	return nil
}
