package gateway

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/core-coin/tabula/internal/fault"
	"github.com/core-coin/tabula/internal/models"
	"github.com/core-coin/tabula/pkg/logger"
)

// Client is the card-payment processor client. The processor's API is
// form-encoded request / JSON response; connected-account operations carry
// the account in a header.
type Client struct {
	logger *logger.Logger

	apiBase        string
	oauthTokenURL  string
	secretKey      string
	currency       string
	minAmountCents int64

	httpClient *http.Client

	mu              sync.Mutex
	chargeAttempts  int64
	chargeSuccesses int64
	lastError       string
	lastErrorTime   string
}

func NewClient(logger *logger.Logger, apiBase, oauthTokenURL, secretKey, currency string, minAmountCents int64) *Client {
	return &Client{
		logger:         logger,
		apiBase:        apiBase,
		oauthTokenURL:  oauthTokenURL,
		secretKey:      secretKey,
		currency:       currency,
		minAmountCents: minAmountCents,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

type oauthTokenResponse struct {
	UserID           string `json:"stripe_user_id"`
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
}

type chargeResponse struct {
	ID     string `json:"id"`
	Source struct {
		Name string `json:"name"`
	} `json:"source"`
}

type accountResponse struct {
	Email string `json:"email"`
}

func (c *Client) CreateAccountGrant(code string) (string, error) {
	params := url.Values{}
	params.Set("client_secret", c.secretKey)
	params.Set("code", code)
	params.Set("grant_type", "authorization_code")

	c.logger.Debug("Exchanging onboarding code at ", c.oauthTokenURL)
	var result oauthTokenResponse
	if err := c.postForm(c.oauthTokenURL, params, nil, &result); err != nil {
		c.recordError(err)
		return "", err
	}
	if result.Error != "" {
		err := fault.Newf(fault.Upstream, "payment processor rejected onboarding code: %s", result.ErrorDescription)
		c.recordError(err)
		return "", err
	}
	return result.UserID, nil
}

func (c *Client) Charge(token, accountID string, amountCents int64, description string) (*models.ChargeResult, error) {
	c.countAttempt()
	if amountCents < c.minAmountCents {
		return nil, fault.Newf(fault.Validation, "amount below processor minimum of %d cents", c.minAmountCents)
	}

	params := url.Values{}
	params.Set("amount", strconv.FormatInt(amountCents, 10))
	params.Set("currency", c.currency)
	params.Set("source", token)
	params.Set("description", description)

	headers := map[string]string{"Stripe-Account": accountID}
	c.logger.Debug("Charging ", amountCents, " cents for account ", accountID)
	var result chargeResponse
	if err := c.postForm(c.apiBase+"/v1/charges", params, headers, &result); err != nil {
		c.recordError(err)
		return nil, err
	}
	c.countSuccess()
	return &models.ChargeResult{TransferID: result.ID, PayerEmail: result.Source.Name}, nil
}

func (c *Client) CollectRetargetFee(token string, amountCents int64, description string) (string, error) {
	c.countAttempt()
	if amountCents < c.minAmountCents {
		return "", fault.Newf(fault.Validation, "fee below processor minimum of %d cents", c.minAmountCents)
	}

	params := url.Values{}
	params.Set("amount", strconv.FormatInt(amountCents, 10))
	params.Set("currency", c.currency)
	params.Set("source", token)
	params.Set("description", description)

	c.logger.Debug("Collecting retarget fee of ", amountCents, " cents")
	var result chargeResponse
	if err := c.postForm(c.apiBase+"/v1/charges", params, nil, &result); err != nil {
		c.recordError(err)
		return "", err
	}
	c.countSuccess()
	return result.ID, nil
}

func (c *Client) GetEmailForAccount(accountID string) (string, error) {
	req, err := http.NewRequest(http.MethodGet, fmt.Sprintf("%s/v1/accounts/%s", c.apiBase, url.PathEscape(accountID)), nil)
	if err != nil {
		return "", fmt.Errorf("failed to build account request: %s", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.secretKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		err = fault.Wrap(fault.Upstream, "failed to reach payment processor", err)
		c.recordError(err)
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		err = fault.Newf(fault.Upstream, "payment processor returned %d: %s", resp.StatusCode, string(body))
		c.recordError(err)
		return "", err
	}

	var result accountResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		err = fault.Wrap(fault.Upstream, "failed to decode account response", err)
		c.recordError(err)
		return "", err
	}
	return result.Email, nil
}

func (c *Client) postForm(endpoint string, params url.Values, headers map[string]string, out interface{}) error {
	req, err := http.NewRequest(http.MethodPost, endpoint, strings.NewReader(params.Encode()))
	if err != nil {
		return fmt.Errorf("failed to build processor request: %s", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.secretKey)
	for key, value := range headers {
		req.Header.Set(key, value)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fault.Wrap(fault.Upstream, "failed to reach payment processor", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fault.Newf(fault.Upstream, "payment processor returned %d: %s", resp.StatusCode, string(body))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fault.Wrap(fault.Upstream, "failed to decode processor response", err)
	}
	return nil
}

func (c *Client) countAttempt() {
	c.mu.Lock()
	c.chargeAttempts++
	c.mu.Unlock()
}

func (c *Client) countSuccess() {
	c.mu.Lock()
	c.chargeSuccesses++
	c.mu.Unlock()
}

func (c *Client) recordError(err error) {
	c.mu.Lock()
	c.lastError = err.Error()
	c.lastErrorTime = time.Now().UTC().Format(time.RFC3339)
	c.mu.Unlock()
}

func (c *Client) Metrics() models.GatewayMetrics {
	c.mu.Lock()
	defer c.mu.Unlock()
	return models.GatewayMetrics{
		ChargeAttempts:  c.chargeAttempts,
		ChargeSuccesses: c.chargeSuccesses,
		LastError:       c.lastError,
		LastErrorTime:   c.lastErrorTime,
	}
}
