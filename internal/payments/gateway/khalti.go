package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"venuely/internal/shared/config"
)

// KhaltiAdapter implements the Khalti ePayment API: initiation returns a pidx
// and a hosted payment URL, and the result is confirmed with a lookup call.
type KhaltiAdapter struct {
	cfg       config.KhaltiConfig
	returnURL string
	client    *http.Client
}

func NewKhalti(cfg config.KhaltiConfig, successURL string, client *http.Client) *KhaltiAdapter {
	return &KhaltiAdapter{
		cfg:       cfg,
		returnURL: withQuery(successURL, url.Values{"gateway": {"khalti"}}),
		client:    client,
	}
}

func (a *KhaltiAdapter) Gateway() Gateway { return Khalti }

func (a *KhaltiAdapter) Mock() bool { return a.cfg.SecretKey == "" }

const mockPidxPrefix = "MOCK-"

// ToPaisa converts rupees to the minor unit Khalti expects.
func ToPaisa(amount float64) int64 {
	return int64(math.Round(amount * 100))
}

type khaltiCustomer struct {
	Name  string `json:"name,omitempty"`
	Email string `json:"email,omitempty"`
	Phone string `json:"phone,omitempty"`
}

type khaltiInitiateRequest struct {
	ReturnURL         string          `json:"return_url"`
	WebsiteURL        string          `json:"website_url"`
	Amount            int64           `json:"amount"`
	PurchaseOrderID   string          `json:"purchase_order_id"`
	PurchaseOrderName string          `json:"purchase_order_name"`
	CustomerInfo      *khaltiCustomer `json:"customer_info,omitempty"`
}

type khaltiInitiateResponse struct {
	Pidx       string `json:"pidx"`
	PaymentURL string `json:"payment_url"`
	ExpiresAt  string `json:"expires_at"`
	ExpiresIn  int    `json:"expires_in"`
}

type khaltiLookupResponse struct {
	Pidx          string  `json:"pidx"`
	TotalAmount   int64   `json:"total_amount"`
	Status        string  `json:"status"`
	TransactionID *string `json:"transaction_id"`
	Fee           int64   `json:"fee"`
	Refunded      bool    `json:"refunded"`
}

func (a *KhaltiAdapter) Initiate(ctx context.Context, req InitiationRequest) (*Initiation, error) {
	if a.Mock() {
		pidx := mockPidxPrefix + req.ReferenceID
		return &Initiation{
			PaymentURL: withQuery(a.returnURL, url.Values{
				"pidx":              {pidx},
				"status":            {"Completed"},
				"purchase_order_id": {req.ReferenceID},
				"total_amount":      {strconv.FormatInt(ToPaisa(req.Amount), 10)},
			}),
			ProviderReference: pidx,
			Mock:              true,
		}, nil
	}

	payload := khaltiInitiateRequest{
		ReturnURL:         a.returnURL,
		WebsiteURL:        a.cfg.WebsiteURL,
		Amount:            ToPaisa(req.Amount),
		PurchaseOrderID:   req.ReferenceID,
		PurchaseOrderName: req.BookingRef,
	}
	if req.CustomerName != "" || req.CustomerEmail != "" || req.CustomerPhone != "" {
		payload.CustomerInfo = &khaltiCustomer{Name: req.CustomerName, Email: req.CustomerEmail, Phone: req.CustomerPhone}
	}

	var out khaltiInitiateResponse
	if _, err := a.post(ctx, "/epayment/initiate/", payload, &out); err != nil {
		return nil, err
	}
	if out.Pidx == "" || out.PaymentURL == "" {
		return nil, fmt.Errorf("khalti initiate response missing pidx or payment_url")
	}
	return &Initiation{PaymentURL: out.PaymentURL, ProviderReference: out.Pidx}, nil
}

// KhaltiCallback holds the query parameters of a Khalti return redirect.
type KhaltiCallback struct {
	Pidx            string
	Status          string
	TransactionID   string
	PurchaseOrderID string
	// Amount is total_amount converted back to rupees, 0 when absent.
	Amount float64
}

func (c *KhaltiCallback) Gateway() Gateway          { return Khalti }
func (c *KhaltiCallback) ReferenceID() string       { return c.PurchaseOrderID }
func (c *KhaltiCallback) ProviderReference() string { return c.Pidx }

func (a *KhaltiAdapter) ParseCallback(params url.Values) (Callback, error) {
	pidx := strings.TrimSpace(params.Get("pidx"))
	if pidx == "" {
		return nil, fmt.Errorf("%w: missing pidx parameter", ErrMalformedCallback)
	}
	cb := &KhaltiCallback{
		Pidx:            pidx,
		Status:          params.Get("status"),
		TransactionID:   params.Get("transaction_id"),
		PurchaseOrderID: params.Get("purchase_order_id"),
	}
	amount := params.Get("total_amount")
	if amount == "" {
		amount = params.Get("amount")
	}
	if paisa, err := strconv.ParseInt(amount, 10, 64); err == nil && paisa > 0 {
		cb.Amount = float64(paisa) / 100
	}
	return cb, nil
}

// Verify never trusts the redirect status and always performs a lookup.
func (a *KhaltiAdapter) Verify(ctx context.Context, cb Callback) (Outcome, error) {
	kcb, ok := cb.(*KhaltiCallback)
	if !ok {
		return nil, fmt.Errorf("%w: expected a Khalti callback", ErrMalformedCallback)
	}
	return a.Lookup(ctx, LookupRequest{TransactionID: kcb.Pidx, ReferenceID: kcb.PurchaseOrderID, Amount: kcb.Amount})
}

// Lookup resolves a payment by pidx. The pidx is kept as the transaction id
// so repeated callbacks still correlate; Khalti's own transaction_id stays in
// the raw response.
func (a *KhaltiAdapter) Lookup(ctx context.Context, req LookupRequest) (Outcome, error) {
	if req.TransactionID == "" {
		return nil, fmt.Errorf("khalti lookup requires a pidx")
	}

	if a.Mock() {
		if !strings.HasPrefix(req.TransactionID, mockPidxPrefix) {
			return Failed{Reason: "unknown mock pidx", Raw: mustJSON(map[string]any{"pidx": req.TransactionID, "mock": true})}, nil
		}
		raw := map[string]any{
			"pidx":   req.TransactionID,
			"status": "Completed",
			"mock":   true,
		}
		if req.Amount > 0 {
			raw["total_amount"] = ToPaisa(req.Amount)
		}
		return Succeeded{TransactionID: req.TransactionID, Raw: mustJSON(raw)}, nil
	}

	var out khaltiLookupResponse
	raw, err := a.post(ctx, "/epayment/lookup/", map[string]string{"pidx": req.TransactionID}, &out)
	if err != nil {
		return nil, err
	}

	switch out.Status {
	case "Completed":
		return Succeeded{TransactionID: req.TransactionID, Raw: raw}, nil
	case "Pending", "Initiated":
		return Pending{Raw: raw}, nil
	default:
		return Failed{Reason: "khalti status " + out.Status, Raw: raw}, nil
	}
}

// post sends an authenticated JSON request and decodes a 2xx body into out.
func (a *KhaltiAdapter) post(ctx context.Context, path string, payload, out any) (json.RawMessage, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to encode khalti request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, strings.TrimRight(a.cfg.BaseURL, "/")+path, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build khalti request: %w", err)
	}
	req.Header.Set("Authorization", "Key "+a.cfg.SecretKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("khalti request %s failed: %w", path, err)
	}
	defer resp.Body.Close()

	raw, err := readBody(resp)
	if err != nil {
		return nil, fmt.Errorf("failed to read khalti response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("khalti %s returned %d: %s", path, resp.StatusCode, truncate(string(raw), 200))
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return nil, fmt.Errorf("failed to decode khalti response: %w", err)
	}
	return raw, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
