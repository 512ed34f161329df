package repository

import (
	"encoding/hex"
	"fmt"
	"log"
	"os"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"

	"github.com/core-coin/tabula/internal/fault"
	"github.com/core-coin/tabula/internal/models"
	"github.com/core-coin/tabula/pkg/logger"
	"github.com/core-coin/tabula/pkg/validation"
)

type PostgresDB struct {
	logger *logger.Logger

	Conn          *gorm.DB
	selectMaxRows int
}

func NewPostgresDB(user, password, dbname, host string, port, selectMaxRows int, logger *logger.Logger) (models.LedgerStore, error) {
	dsn := fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%d sslmode=disable",
		host, user, password, dbname, port)

	// Configure GORM logger to suppress "record not found" messages
	gormLogger := gormLogger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		gormLogger.Config{
			SlowThreshold:             200 * time.Millisecond,
			LogLevel:                  gormLogger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  true,
		},
	)
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{Logger: gormLogger})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to PostgreSQL: %s", err)
	}

	if err := db.AutoMigrate(&models.Provider{}, &models.Transaction{}); err != nil {
		return nil, fmt.Errorf("failed to auto-migrate models: %s", err)
	}
	logger.Info("Successfully connected to PostgreSQL!")
	return &PostgresDB{Conn: db, logger: logger, selectMaxRows: selectMaxRows}, nil
}

func (db *PostgresDB) Close() error {
	sqlDB, err := db.Conn.DB()
	if err != nil {
		return fmt.Errorf("failed to get database connection: %s", err)
	}
	return sqlDB.Close()
}

func (db *PostgresDB) AddProvider(paymentGatewayID, address string, emailHash []byte) error {
	addr, err := validation.AddressBytes(address)
	if err != nil {
		return err
	}
	var count int64
	if err := db.Conn.Model(&models.Provider{}).Where("address = ?", addr).Count(&count).Error; err != nil {
		return fmt.Errorf("failed to check for existing provider: %s", err)
	}
	if count > 0 {
		return fault.Newf(fault.Conflict, "this public address is already registered with the ledger: %s", address)
	}
	provider := models.Provider{
		PaymentGatewayID: paymentGatewayID,
		Address:          addr,
		EmailHash:        emailHash,
	}
	if err := db.Conn.Create(&provider).Error; err != nil {
		return fmt.Errorf("failed to create provider: %s", err)
	}
	return nil
}

func (db *PostgresDB) GetAccountID(address string) (string, error) {
	addr, err := validation.AddressBytes(address)
	if err != nil {
		return "", err
	}
	var provider models.Provider
	if err := db.Conn.Where("address = ?", addr).First(&provider).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return "", nil
		}
		return "", fmt.Errorf("failed to get provider: %s", err)
	}
	return provider.PaymentGatewayID, nil
}

func (db *PostgresDB) AddTransaction(fromAddress, toAddress string, amountCents int64, transferID string, emailHash []byte, isPrivate bool) error {
	from, err := validation.AddressBytes(fromAddress)
	if err != nil {
		return err
	}
	to, err := validation.AddressBytes(toAddress)
	if err != nil {
		return err
	}
	tx := models.Transaction{
		FromAddress:    from,
		ToAddress:      to,
		TransactionTS:  time.Now().UTC(),
		AmountUSDCents: amountCents,
		TransferID:     transferID,
		EmailHash:      emailHash,
		Private:        isPrivate,
	}
	db.logger.Debug("Adding transaction ", "from ", fromAddress, " to ", toAddress, " amount ", amountCents)
	if err := db.Conn.Create(&tx).Error; err != nil {
		return fmt.Errorf("failed to persist transaction: %s", err)
	}
	return nil
}

// providerAddresses is the subquery selecting a payment account's ledger
// addresses.
func providerAddresses(conn *gorm.DB, accountID string) *gorm.DB {
	return conn.Model(&models.Provider{}).Select("address").Where("paymentgatewayid = ?", accountID)
}

func withPrivacy(tx *gorm.DB, includePrivate bool) *gorm.DB {
	if !includePrivate {
		tx = tx.Where("private = false")
	}
	return tx
}

func (db *PostgresDB) GetNumTransactionsFromTo(from, to string, includePrivate bool) (int64, error) {
	fromB, err := validation.AddressBytes(from)
	if err != nil {
		return 0, err
	}
	toB, err := validation.AddressBytes(to)
	if err != nil {
		return 0, err
	}
	var count int64
	tx := db.Conn.Model(&models.Transaction{}).
		Where("fromaddress = ? AND toaddress = ? AND void = false", fromB, toB)
	if err := withPrivacy(tx, includePrivate).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("failed to count transactions: %s", err)
	}
	return count, nil
}

func (db *PostgresDB) GetNumTransactionsByAddress(address string, includePrivate bool) (int64, error) {
	addr, err := validation.AddressBytes(address)
	if err != nil {
		return 0, err
	}
	var count int64
	tx := db.Conn.Model(&models.Transaction{}).
		Where("(fromaddress = ? OR toaddress = ?) AND void = false", addr, addr)
	if err := withPrivacy(tx, includePrivate).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("failed to count transactions: %s", err)
	}
	return count, nil
}

func (db *PostgresDB) GetNumTransactionsByEmailHash(emailHash []byte) (int64, error) {
	var count int64
	if err := db.Conn.Model(&models.Transaction{}).
		Where("emailhash = ? AND void = false", emailHash).
		Count(&count).Error; err != nil {
		return 0, fmt.Errorf("failed to count transactions: %s", err)
	}
	return count, nil
}

func (db *PostgresDB) GetNumTransactionsByAccountID(accountID string) (int64, error) {
	var count int64
	if err := db.Conn.Model(&models.Transaction{}).
		Where("toaddress IN (?) AND void = false", providerAddresses(db.Conn, accountID)).
		Count(&count).Error; err != nil {
		return 0, fmt.Errorf("failed to count transactions: %s", err)
	}
	return count, nil
}

func toEntries(rows []models.Transaction) []*models.LedgerEntry {
	entries := make([]*models.LedgerEntry, 0, len(rows))
	for _, row := range rows {
		entries = append(entries, &models.LedgerEntry{
			AmountUSDCents: row.AmountUSDCents,
			TransactionTS:  row.TransactionTS,
			From:           validation.AddressHex(row.FromAddress),
			To:             validation.AddressHex(row.ToAddress),
		})
	}
	return entries
}

func (db *PostgresDB) latestByQuery(tx *gorm.DB) ([]*models.LedgerEntry, error) {
	var rows []models.Transaction
	if err := tx.Order("transactionts DESC").Limit(db.selectMaxRows).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to get transactions: %s", err)
	}
	return toEntries(rows), nil
}

func (db *PostgresDB) GetLatestTransactionsFromTo(from, to string, includePrivate bool) ([]*models.LedgerEntry, error) {
	fromB, err := validation.AddressBytes(from)
	if err != nil {
		return nil, err
	}
	toB, err := validation.AddressBytes(to)
	if err != nil {
		return nil, err
	}
	tx := db.Conn.Where("fromaddress = ? AND toaddress = ? AND void = false", fromB, toB)
	return db.latestByQuery(withPrivacy(tx, includePrivate))
}

func (db *PostgresDB) GetLatestTransactionsByAddress(address string, includePrivate bool) ([]*models.LedgerEntry, error) {
	addr, err := validation.AddressBytes(address)
	if err != nil {
		return nil, err
	}
	tx := db.Conn.Where("(fromaddress = ? OR toaddress = ?) AND void = false", addr, addr)
	return db.latestByQuery(withPrivacy(tx, includePrivate))
}

func (db *PostgresDB) GetLatestTransactionsByEmailHash(emailHash []byte) ([]*models.LedgerEntry, error) {
	return db.latestByQuery(db.Conn.Where("emailhash = ? AND void = false", emailHash))
}

func (db *PostgresDB) GetLatestTransactionsByAccountID(accountID string) ([]*models.LedgerEntry, error) {
	return db.latestByQuery(db.Conn.Where("toaddress IN (?) AND void = false", providerAddresses(db.Conn, accountID)))
}

func (db *PostgresDB) GetTransactionsToAddress(address string, skip int) ([]*models.LedgerEntry, error) {
	addr, err := validation.AddressBytes(address)
	if err != nil {
		return nil, err
	}
	var rows []models.Transaction
	if err := db.Conn.Where("toaddress = ? AND void = false", addr).
		Order("transactionts DESC").
		Offset(skip).
		Limit(db.selectMaxRows).
		Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to get transactions: %s", err)
	}
	return toEntries(rows), nil
}

func (db *PostgresDB) GetTransactions(q models.TallyQuery) (*models.TallyResult, error) {
	fromB, err := validation.AddressBytes(q.FromAddress)
	if err != nil {
		return nil, err
	}
	toB, err := validation.AddressBytes(q.ToAddress)
	if err != nil {
		return nil, err
	}

	base := db.Conn.Model(&models.Transaction{}).
		Where("fromaddress = ? AND toaddress = ? AND void = false", fromB, toB)
	base = withPrivacy(base, q.IncludePrivate)
	if q.Since != nil {
		base = base.Where("transactionts >= ?", q.Since.UTC())
	}
	if q.AsOf != nil {
		base = base.Where("transactionts <= ?", q.AsOf.UTC())
	}

	scope := base.Order("transactionts DESC")
	if q.MaxMostRecent > 0 {
		scope = scope.Limit(q.MaxMostRecent)
	}

	var rows []models.Transaction
	if err := scope.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to get transactions: %s", err)
	}

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

func (db *PostgresDB) IsEmailInTxs(emailHash []byte) (bool, error) {
	count, err := db.GetNumTransactionsByEmailHash(emailHash)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (db *PostgresDB) IsAccountIDInTxs(accountID string, emailHash []byte) (bool, error) {
	tx := db.Conn.Model(&models.Transaction{}).
		Where("toaddress IN (?) AND void = false", providerAddresses(db.Conn, accountID))
	if emailHash != nil {
		tx = tx.Where("emailhash = ?", emailHash)
	}
	var count int64
	if err := tx.Count(&count).Error; err != nil {
		return false, fmt.Errorf("failed to check for provider transactions: %s", err)
	}
	return count > 0, nil
}

func (db *PostgresDB) VoidFromTo(from, to string) error {
	fromB, err := validation.AddressBytes(from)
	if err != nil {
		return err
	}
	toB, err := validation.AddressBytes(to)
	if err != nil {
		return err
	}
	result := db.Conn.Model(&models.Transaction{}).
		Where("fromaddress = ? AND toaddress = ? AND void = false", fromB, toB).
		Update("void", true)
	if result.Error != nil {
		return fmt.Errorf("failed to void transactions: %s", result.Error)
	}
	if result.RowsAffected == 0 {
		return fault.Newf(fault.NotFound, "no transactions from %s to %s", from, to)
	}
	return nil
}

// retarget copies every matched non-void row with swap applied, then voids
// the originals. Copy and void run in one relational transaction: partial
// application would double-count or erase history.
func (db *PostgresDB) retarget(match func(tx *gorm.DB) *gorm.DB, newTransferID string, swap func(*models.Transaction)) error {
	return db.Conn.Transaction(func(tx *gorm.DB) error {
		var rows []models.Transaction
		if err := match(tx).Find(&rows).Error; err != nil {
			return fmt.Errorf("failed to select transactions: %s", err)
		}
		if len(rows) == 0 {
			return fault.New(fault.NotFound, "no transactions found")
		}

		ids := make([]int64, 0, len(rows))
		copies := make([]models.Transaction, 0, len(rows))
		for _, row := range rows {
			ids = append(ids, row.ID)
			clone := row
			clone.ID = 0
			clone.TransferID = newTransferID
			swap(&clone)
			copies = append(copies, clone)
		}

		if err := tx.Create(&copies).Error; err != nil {
			return fmt.Errorf("failed to copy transactions: %s", err)
		}
		if err := tx.Model(&models.Transaction{}).Where("id IN ?", ids).Update("void", true).Error; err != nil {
			return fmt.Errorf("failed to void original transactions: %s", err)
		}
		return nil
	})
}

func (db *PostgresDB) RetargetByEmailHash(emailHash []byte, newTransferID, newAddress string) error {
	addr, err := validation.AddressBytes(newAddress)
	if err != nil {
		return err
	}
	db.logger.Debug("Re-targeting by email hash ", "emailHash ", hex.EncodeToString(emailHash), " newAddress ", newAddress)
	match := func(tx *gorm.DB) *gorm.DB {
		return tx.Where("emailhash = ? AND void = false", emailHash)
	}
	return db.retarget(match, newTransferID, func(t *models.Transaction) {
		t.FromAddress = addr
	})
}

func (db *PostgresDB) RetargetByAccountID(accountID, newTransferID, newAddress string) error {
	addr, err := validation.AddressBytes(newAddress)
	if err != nil {
		return err
	}
	db.logger.Debug("Re-targeting by account ID ", "accountID ", accountID, " newAddress ", newAddress)
	match := func(tx *gorm.DB) *gorm.DB {
		return tx.Where("toaddress IN (?) AND void = false", providerAddresses(tx.Session(&gorm.Session{NewDB: true}), accountID))
	}
	return db.retarget(match, newTransferID, func(t *models.Transaction) {
		t.ToAddress = addr
	})
}

func (db *PostgresDB) GetError() error {
	sqlDB, err := db.Conn.DB()
	if err != nil {
		return fault.Wrap(fault.StoreUnavailable, "failed to get database connection", err)
	}
	if err := sqlDB.Ping(); err != nil {
		db.logger.Warn("Database not healthy ", "error ", err)
		return fault.Wrap(fault.StoreUnavailable, "database unreachable", err)
	}
	return nil
}
