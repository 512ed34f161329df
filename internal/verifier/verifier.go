package verifier

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/core-coin/tabula/internal/fault"
	"github.com/core-coin/tabula/pkg/logger"
	"github.com/core-coin/tabula/pkg/validation"
)

// recoverRequest is the wire form of a recovery call.
type recoverRequest struct {
	Message   string `json:"message"`
	Signature string `json:"signature"`
}

// recoverResponse is the signer address the recovery service resolved.
type recoverResponse struct {
	Address string `json:"address"`
}

// RemoteVerifier resolves (message, signature) pairs to signer addresses
// through an external recovery service. Keeping key math out of process
// means a single service owns the signature scheme.
type RemoteVerifier struct {
	logger  *logger.Logger
	baseURL string
	client  *http.Client
}

func NewRemoteVerifier(logger *logger.Logger, baseURL string) *RemoteVerifier {
	return &RemoteVerifier{
		logger:  logger,
		baseURL: baseURL,
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// Recover returns the canonical address that signed message, or an
// Authorization fault when the pair does not resolve to any signer.
func (v *RemoteVerifier) Recover(message, signature string) (string, error) {
	payload, err := json.Marshal(recoverRequest{Message: message, Signature: signature})
	if err != nil {
		return "", fmt.Errorf("failed to encode recover request: %s", err)
	}

	url := fmt.Sprintf("%s/v1/recover", v.baseURL)
	resp, err := v.client.Post(url, "application/json", bytes.NewReader(payload))
	if err != nil {
		return "", fault.Wrap(fault.Upstream, "failed to reach signature recovery service", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusBadRequest, http.StatusUnauthorized:
		body, _ := io.ReadAll(resp.Body)
		return "", fault.Newf(fault.Authorization, "signature does not recover: %s", string(body))
	default:
		body, _ := io.ReadAll(resp.Body)
		return "", fault.Newf(fault.Upstream, "signature recovery service returned %d: %s", resp.StatusCode, string(body))
	}

	var recovered recoverResponse
	if err := json.NewDecoder(resp.Body).Decode(&recovered); err != nil {
		return "", fault.Wrap(fault.Upstream, "failed to decode recover response", err)
	}
	return validation.ValidateAndNormalizeAddress(recovered.Address)
}
