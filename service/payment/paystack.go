package payment

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"time"
)

// IntentStatus is the gateway's view of a payment intent.
type IntentStatus string

const (
	StatusSucceeded IntentStatus = "succeeded"
	StatusFailed    IntentStatus = "failed"
	StatusPending   IntentStatus = "pending"
)

// Intent is the handle returned to a caller who still has to pay.
type Intent struct {
	Reference        string  `json:"reference"`
	AuthorizationURL string  `json:"authorization_url"`
	AccessCode       string  `json:"access_code,omitempty"`
	Amount           float64 `json:"amount"`
}

// Gateway is the external payment boundary. The engine only ever creates
// intents and asks for their status; settlement lives with the provider.
type Gateway interface {
	CreateIntent(amount float64, email, reference, description string) (*Intent, error)
	IntentStatus(reference string) (IntentStatus, error)
}

type PaystackClient struct {
	baseURL   string
	secretKey string
	client    *http.Client
}

func NewPaystackClient() *PaystackClient {
	return &PaystackClient{
		baseURL:   "https://api.paystack.co",
		secretKey: os.Getenv("PAYSTACK_SECRET_KEY"),
		client:    &http.Client{Timeout: 15 * time.Second},
	}
}

// NewPaystackClientWithBase points the client at an alternate API host.
func NewPaystackClientWithBase(baseURL, secretKey string) *PaystackClient {
	return &PaystackClient{
		baseURL:   baseURL,
		secretKey: secretKey,
		client:    &http.Client{Timeout: 15 * time.Second},
	}
}

func (p *PaystackClient) CreateIntent(amount float64, email, reference, description string) (*Intent, error) {
	payload := map[string]interface{}{
		"email":     email,
		"amount":    int64(amount * 100),
		"reference": reference,
		"metadata": map[string]interface{}{
			"description": description,
		},
	}

	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequest("POST", p.baseURL+"/transaction/initialize", bytes.NewBuffer(payloadBytes))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+p.secretKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var initResp struct {
		Status  bool   `json:"status"`
		Message string `json:"message"`
		Data    struct {
			AuthorizationURL string `json:"authorization_url"`
			AccessCode       string `json:"access_code"`
			Reference        string `json:"reference"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&initResp); err != nil {
		return nil, err
	}
	if !initResp.Status {
		return nil, fmt.Errorf("paystack initialize failed: %s", initResp.Message)
	}

	return &Intent{
		Reference:        initResp.Data.Reference,
		AuthorizationURL: initResp.Data.AuthorizationURL,
		AccessCode:       initResp.Data.AccessCode,
		Amount:           amount,
	}, nil
}

func (p *PaystackClient) IntentStatus(reference string) (IntentStatus, error) {
	req, err := http.NewRequest("GET", p.baseURL+"/transaction/verify/"+reference, nil)
	if err != nil {
		return StatusPending, err
	}
	req.Header.Set("Authorization", "Bearer "+p.secretKey)

	resp, err := p.client.Do(req)
	if err != nil {
		return StatusPending, err
	}
	defer resp.Body.Close()

	var verifyResp struct {
		Status  bool   `json:"status"`
		Message string `json:"message"`
		Data    struct {
			Status string `json:"status"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&verifyResp); err != nil {
		return StatusPending, err
	}
	if !verifyResp.Status {
		return StatusPending, fmt.Errorf("paystack verify failed: %s", verifyResp.Message)
	}

	switch verifyResp.Data.Status {
	case "success":
		return StatusSucceeded, nil
	case "failed", "abandoned", "reversed":
		return StatusFailed, nil
	default:
		return StatusPending, nil
	}
}

// WebhookPayload is the slice of the provider's event we act on.
type WebhookPayload struct {
	Event string `json:"event"`
	Data  struct {
		Reference string  `json:"reference"`
		Status    string  `json:"status"`
		Amount    float64 `json:"amount"`
	} `json:"data"`
}

// VerifyWebhookSignature checks the provider's HMAC-SHA512 body signature.
func VerifyWebhookSignature(body []byte, signature, secretKey string) bool {
	mac := hmac.New(sha512.New, []byte(secretKey))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(signature), []byte(expected))
}
