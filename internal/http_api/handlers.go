package http_api

import (
	"encoding/base64"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/core-coin/tabula/internal/fault"
	"github.com/core-coin/tabula/internal/models"
	"github.com/core-coin/tabula/pkg/validation"
)

// GratisRequest represents the JSON body for a gratis grant
type GratisRequest struct {
	Address   string `json:"address" binding:"required"`
	Signature string `json:"signature" binding:"required"`
	Message   string `json:"message" binding:"required"`
}

// ShuntRequest represents the JSON body for a paid ledger entry
type ShuntRequest struct {
	PaymentGatewayToken string `json:"paymentGatewayToken" binding:"required"`
	SubscriberAddress   string `json:"subscriberAddress" binding:"required"`
	ProviderAddress     string `json:"providerAddress" binding:"required"`
	AmountCents         int64  `json:"amountCents" binding:"required"`
	IsPrivate           bool   `json:"isPrivate"`
}

// ProviderRequest represents the JSON body for provider onboarding
type ProviderRequest struct {
	Code    string `json:"code" binding:"required"`
	Address string `json:"address" binding:"required"`
	Email   string `json:"email"`
}

// ProviderResponse carries the registered payment account ID back
type ProviderResponse struct {
	AccountID string `json:"accountId"`
}

// IsSignatureValidRequest represents the JSON body for a signature check;
// signature and message are base64 encoded
type IsSignatureValidRequest struct {
	Address   string `json:"address" binding:"required"`
	Signature string `json:"signature" binding:"required"`
	Message   string `json:"message" binding:"required"`
}

// VoidRequest represents the JSON body for both the void preview and the
// final void
type VoidRequest struct {
	SubscriberAddress string `json:"subscriberAddress" binding:"required"`
	ProviderAddress   string `json:"providerAddress" binding:"required"`
	Signature         string `json:"signature" binding:"required"`
	Message           string `json:"message" binding:"required"`
}

// RetargetSubscriberRequest represents the JSON body to begin a subscriber
// re-target
type RetargetSubscriberRequest struct {
	Email     string `json:"email" binding:"required"`
	Address   string `json:"address" binding:"required"`
	Signature string `json:"signature" binding:"required"`
	Message   string `json:"message" binding:"required"`
}

// RetargetProviderRequest represents the JSON body to begin a provider
// re-target
type RetargetProviderRequest struct {
	AccountID string `json:"accountId" binding:"required"`
	Email     string `json:"email"`
	Address   string `json:"address" binding:"required"`
	Signature string `json:"signature" binding:"required"`
	Message   string `json:"message" binding:"required"`
}

// GoRetargetRequest represents the JSON body to finalize a re-target
type GoRetargetRequest struct {
	PaymentGatewayToken string `json:"paymentGatewayToken" binding:"required"`
	Email               string `json:"email" binding:"required"`
	Address             string `json:"address" binding:"required"`
	AccountID           string `json:"accountId"`
	ID                  string `json:"id" binding:"required"`
	Signature           string `json:"signature" binding:"required"`
	Message             string `json:"message" binding:"required"`
}

// LedgerResponse lists an address's transactions with counts
type LedgerResponse struct {
	Transactions []*models.LedgerEntry `json:"transactions"`
	NumTxs       int                   `json:"num_txs"`
	NumAllTxs    int64                 `json:"num_all_txs"`
}

// ExportResponse pages transactions addressed to an address
type ExportResponse struct {
	Transactions []*models.LedgerEntry `json:"transactions"`
}

// getChallenge is a handler for the /v1/challenge endpoint.
func (s *HTTPServer) getChallenge(c *gin.Context) {
	challenge, err := s.tabula.GetChallenge()
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.String(http.StatusOK, challenge)
}

// gratis is a handler for the /v1/gratis endpoint.
func (s *HTTPServer) gratis(c *gin.Context) {
	var req GratisRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body: " + err.Error()})
		return
	}
	if err := s.tabula.Gratis(req.Address, req.Signature, req.Message); err != nil {
		s.respondError(c, err)
		return
	}
	c.Status(http.StatusOK)
}

// shunt is a handler for the /v1/shunt endpoint.
func (s *HTTPServer) shunt(c *gin.Context) {
	var req ShuntRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body: " + err.Error()})
		return
	}
	if err := s.tabula.Shunt(req.PaymentGatewayToken, req.SubscriberAddress, req.ProviderAddress, req.AmountCents, req.IsPrivate); err != nil {
		s.respondError(c, err)
		return
	}
	c.Status(http.StatusOK)
}

// addProvider is a handler for the /v1/provider endpoint.
func (s *HTTPServer) addProvider(c *gin.Context) {
	var req ProviderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body: " + err.Error()})
		return
	}
	accountID, err := s.tabula.Onboard(req.Code, req.Address, req.Email)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, ProviderResponse{AccountID: accountID})
}

// getTransactions is a handler for the
// /v1/get-transactions/{fromAddress}/{toAddress} endpoint.
func (s *HTTPServer) getTransactions(c *gin.Context) {
	q := models.TallyQuery{
		FromAddress: c.Param("fromAddress"),
		ToAddress:   c.Param("toAddress"),
	}

	if raw := c.Query("max-most-recent"); raw != "" {
		value, err := strconv.Atoi(raw)
		if err != nil || value < 1 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid max-most-recent, must be integer with value of 1 or more: " + raw})
			return
		}
		q.MaxMostRecent = value
	}
	var err error
	if q.Since, err = parseOptionalTimestamp(c, "since"); err != nil {
		s.respondError(c, err)
		return
	}
	if q.AsOf, err = parseOptionalTimestamp(c, "as-of"); err != nil {
		s.respondError(c, err)
		return
	}
	tallyOnly, err := parseOptionalBool(c, "tally-only")
	if err != nil {
		s.respondError(c, err)
		return
	}
	tallyDollars, err := parseOptionalBool(c, "tally-dollars")
	if err != nil {
		s.respondError(c, err)
		return
	}
	q.TallyOnly = tallyOnly
	q.IncludePrivate = s.tabula.IncludePrivate(q.FromAddress, "", "", c.Query("signature"), c.GetHeader("Authorization"))

	result, err := s.tabula.GetTransactions(q)
	if err != nil {
		s.respondError(c, err)
		return
	}

	if tallyDollars {
		response := gin.H{
			"tally": decimal.NewFromInt(result.Tally).Div(decimal.NewFromInt(100)).StringFixed(2),
			"as-of": result.AsOf,
		}
		if result.Transactions != nil {
			response["transactions"] = result.Transactions
		}
		c.JSON(http.StatusOK, response)
		return
	}
	c.JSON(http.StatusOK, result)
}

// isSignatureValid is a handler for the /v1/is-signature-valid endpoint.
func (s *HTTPServer) isSignatureValid(c *gin.Context) {
	var req IsSignatureValidRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body: " + err.Error()})
		return
	}
	signature, err := base64.StdEncoding.DecodeString(req.Signature)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid signature, must be base64 encoded string"})
		return
	}
	message, err := base64.StdEncoding.DecodeString(req.Message)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid message, must be base64 encoded string"})
		return
	}
	skipLedger := isTruthy(c.Query("skip-ledger"))
	if err := s.tabula.IsSignatureValid(req.Address, string(signature), string(message), skipLedger); err != nil {
		s.respondError(c, err)
		return
	}
	c.Status(http.StatusOK)
}

// ledger is a handler for the /v1/ledger/{address} endpoint.
func (s *HTTPServer) ledger(c *gin.Context) {
	address := c.Param("address")
	includePrivate := s.tabula.IncludePrivate(
		address,
		c.Query("signature"),
		c.Query("message"),
		c.Query("t-signature"),
		c.Query("t-challenge"),
	)
	txs, numAll, err := s.tabula.LedgerView(address, includePrivate)
	if err != nil {
		s.respondError(c, err)
		return
	}
	if txs == nil {
		txs = []*models.LedgerEntry{}
	}
	c.JSON(http.StatusOK, LedgerResponse{Transactions: txs, NumTxs: len(txs), NumAllTxs: numAll})
}

// export is a handler for the /v1/export/{toAddress} endpoint. The caller
// must sign their bearer token with the exported address's key.
func (s *HTTPServer) export(c *gin.Context) {
	address := c.Param("toAddress")
	if !s.tabula.IncludePrivate(address, "", "", c.Query("signature"), c.GetHeader("Authorization")) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "signature doesn't match authorization header and address"})
		return
	}
	skip := 0
	if raw := c.Query("skip"); raw != "" {
		value, err := strconv.Atoi(raw)
		if err != nil || value < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid skip: " + raw})
			return
		}
		skip = value
	}
	txs, err := s.tabula.Export(address, skip)
	if err != nil {
		s.respondError(c, err)
		return
	}
	if txs == nil {
		txs = []*models.LedgerEntry{}
	}
	c.JSON(http.StatusOK, ExportResponse{Transactions: txs})
}

// voidView is a handler for the /v1/void endpoint: it previews what goVoid
// would mark void.
func (s *HTTPServer) voidView(c *gin.Context) {
	var req VoidRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body: " + err.Error()})
		return
	}
	txs, numAll, err := s.tabula.VoidView(req.SubscriberAddress, req.ProviderAddress, req.Signature, req.Message)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, LedgerResponse{Transactions: txs, NumTxs: len(txs), NumAllTxs: numAll})
}

// goVoid is a handler for the /v1/go-void endpoint.
func (s *HTTPServer) goVoid(c *gin.Context) {
	var req VoidRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body: " + err.Error()})
		return
	}
	if err := s.tabula.GoVoid(req.SubscriberAddress, req.ProviderAddress, req.Signature, req.Message); err != nil {
		s.respondError(c, err)
		return
	}
	c.Status(http.StatusOK)
}

// retargetSubscriber is a handler for the /v1/retarget-subscriber endpoint.
func (s *HTTPServer) retargetSubscriber(c *gin.Context) {
	var req RetargetSubscriberRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body: " + err.Error()})
		return
	}
	if err := s.tabula.RetargetSubscriber(req.Email, req.Address, req.Signature, req.Message); err != nil {
		s.respondError(c, err)
		return
	}
	c.Status(http.StatusOK)
}

// retargetProvider is a handler for the /v1/retarget-provider endpoint.
func (s *HTTPServer) retargetProvider(c *gin.Context) {
	var req RetargetProviderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body: " + err.Error()})
		return
	}
	if err := s.tabula.RetargetProvider(req.AccountID, req.Email, req.Address, req.Signature, req.Message); err != nil {
		s.respondError(c, err)
		return
	}
	c.Status(http.StatusOK)
}

// retargetAcknowledged is a handler for the /v1/retarget/{id} endpoint.
func (s *HTTPServer) retargetAcknowledged(c *gin.Context) {
	view, err := s.tabula.RetargetAcknowledged(c.Param("id"))
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

// goRetarget is a handler for the /v1/go-retarget endpoint.
func (s *HTTPServer) goRetarget(c *gin.Context) {
	var req GoRetargetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body: " + err.Error()})
		return
	}
	err := s.tabula.GoRetarget(models.GoRetargetParams{
		PaymentGatewayToken: req.PaymentGatewayToken,
		Email:               req.Email,
		Address:             req.Address,
		AccountID:           req.AccountID,
		ID:                  req.ID,
		Signature:           req.Signature,
		Message:             req.Message,
	})
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.Status(http.StatusOK)
}

// status is a handler for the /status.json health endpoint.
func (s *HTTPServer) status(c *gin.Context) {
	report, err := s.tabula.Status()
	if err != nil {
		s.respondError(c, err)
		return
	}
	code := http.StatusOK
	if report.Database != "OK" {
		code = http.StatusServiceUnavailable
	}
	c.JSON(code, report)
}

func parseOptionalTimestamp(c *gin.Context, name string) (*time.Time, error) {
	raw := c.Query(name)
	if raw == "" {
		return nil, nil
	}
	ts, err := validation.ParseTimestamp(name, raw)
	if err != nil {
		return nil, err
	}
	return &ts, nil
}

func parseOptionalBool(c *gin.Context, name string) (bool, error) {
	raw := c.Query(name)
	if raw == "" {
		return false, nil
	}
	value, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fault.Newf(fault.Validation, "invalid %s, must be 'true' or 'false' (%s)", name, raw)
	}
	return value, nil
}

func isTruthy(raw string) bool {
	value, err := strconv.ParseBool(raw)
	return err == nil && value
}
