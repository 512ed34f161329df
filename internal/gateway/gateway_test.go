package gateway

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/core-coin/tabula/internal/fault"
	"github.com/core-coin/tabula/pkg/logger"
)

func testLogger() *logger.Logger {
	return &logger.Logger{SugaredLogger: zap.NewNop().Sugar()}
}

func newTestClient(apiBase, oauthTokenURL string) *Client {
	return NewClient(testLogger(), apiBase, oauthTokenURL, "sk_test", "usd", 50)
}

func TestCreateAccountGrant(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "sk_test", r.PostFormValue("client_secret"))
		assert.Equal(t, "code_1", r.PostFormValue("code"))
		assert.Equal(t, "authorization_code", r.PostFormValue("grant_type"))
		json.NewEncoder(w).Encode(map[string]string{"stripe_user_id": "acct_1"})
	}))
	defer srv.Close()

	c := newTestClient("", srv.URL)
	accountID, err := c.CreateAccountGrant("code_1")
	require.NoError(t, err)
	assert.Equal(t, "acct_1", accountID)
}

func TestCreateAccountGrantRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{
			"error":             "invalid_grant",
			"error_description": "code expired",
		})
	}))
	defer srv.Close()

	c := newTestClient("", srv.URL)
	_, err := c.CreateAccountGrant("code_1")
	require.Error(t, err)
	assert.True(t, fault.IsKind(err, fault.Upstream))
	assert.Contains(t, err.Error(), "code expired")
}

func TestCharge(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/charges", r.URL.Path)
		assert.Equal(t, "acct_1", r.Header.Get("Stripe-Account"))
		assert.Equal(t, "Bearer sk_test", r.Header.Get("Authorization"))
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "299", r.PostFormValue("amount"))
		assert.Equal(t, "usd", r.PostFormValue("currency"))
		assert.Equal(t, "tok_1", r.PostFormValue("source"))
		json.NewEncoder(w).Encode(map[string]interface{}{
			"id":     "ch_1",
			"source": map[string]string{"name": "payer@example.com"},
		})
	}))
	defer srv.Close()

	c := newTestClient(srv.URL, "")
	result, err := c.Charge("tok_1", "acct_1", 299, "tx")
	require.NoError(t, err)
	assert.Equal(t, "ch_1", result.TransferID)
	assert.Equal(t, "payer@example.com", result.PayerEmail)

	metrics := c.Metrics()
	assert.Equal(t, int64(1), metrics.ChargeAttempts)
	assert.Equal(t, int64(1), metrics.ChargeSuccesses)
	assert.Empty(t, metrics.LastError)
}

func TestChargeBelowMinimum(t *testing.T) {
	c := newTestClient("http://unused", "")
	_, err := c.Charge("tok_1", "acct_1", 10, "tx")
	require.Error(t, err)
	assert.True(t, fault.IsKind(err, fault.Validation))
}

func TestChargeProcessorError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"message":"card declined"}}`, http.StatusPaymentRequired)
	}))
	defer srv.Close()

	c := newTestClient(srv.URL, "")
	_, err := c.Charge("tok_1", "acct_1", 299, "tx")
	require.Error(t, err)
	assert.True(t, fault.IsKind(err, fault.Upstream))

	metrics := c.Metrics()
	assert.Equal(t, int64(1), metrics.ChargeAttempts)
	assert.Equal(t, int64(0), metrics.ChargeSuccesses)
	assert.Contains(t, metrics.LastError, "402")
	assert.NotEmpty(t, metrics.LastErrorTime)
}

func TestCollectRetargetFee(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// fee charges land on the platform account, no account header
		assert.Empty(t, r.Header.Get("Stripe-Account"))
		json.NewEncoder(w).Encode(map[string]interface{}{"id": "ch_fee"})
	}))
	defer srv.Close()

	c := newTestClient(srv.URL, "")
	transferID, err := c.CollectRetargetFee("tok_1", 300, "retarget")
	require.NoError(t, err)
	assert.Equal(t, "ch_fee", transferID)
}

func TestGetEmailForAccount(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/accounts/acct_1", r.URL.Path)
		assert.Equal(t, "Bearer sk_test", r.Header.Get("Authorization"))
		json.NewEncoder(w).Encode(map[string]string{"email": "prov@example.com"})
	}))
	defer srv.Close()

	c := newTestClient(srv.URL, "")
	email, err := c.GetEmailForAccount("acct_1")
	require.NoError(t, err)
	assert.Equal(t, "prov@example.com", email)
}

func TestGetEmailForAccountUnknown(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "no such account", http.StatusNotFound)
	}))
	defer srv.Close()

	c := newTestClient(srv.URL, "")
	_, err := c.GetEmailForAccount("acct_1")
	require.Error(t, err)
	assert.True(t, fault.IsKind(err, fault.Upstream))
}
