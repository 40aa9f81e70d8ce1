// Package gateway translates payments to and from the eSewa and Khalti
// checkout protocols. Both adapters fall back to a deterministic mock when
// credentials are not configured.
package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"venuely/internal/shared/config"
)

type Gateway string

const (
	ESewa  Gateway = "ESEWA"
	Khalti Gateway = "KHALTI"
)

func (g Gateway) IsValid() bool {
	return g == ESewa || g == Khalti
}

// Parse accepts gateway names in any case, e.g. "esewa" or "KHALTI".
func Parse(s string) (Gateway, error) {
	g := Gateway(strings.ToUpper(strings.TrimSpace(s)))
	if !g.IsValid() {
		return "", fmt.Errorf("unsupported payment gateway %q", s)
	}
	return g, nil
}

var (
	ErrMalformedCallback = errors.New("malformed gateway callback")
	ErrUnknownGateway    = errors.New("unknown payment gateway")
)

// Adapter is one provider's checkout protocol.
type Adapter interface {
	Gateway() Gateway
	// Mock reports whether the adapter runs without provider credentials.
	Mock() bool
	Initiate(ctx context.Context, req InitiationRequest) (*Initiation, error)
	// ParseCallback validates the query parameters of a success redirect.
	ParseCallback(params url.Values) (Callback, error)
	// Verify interprets a parsed callback, calling the provider if needed.
	Verify(ctx context.Context, cb Callback) (Outcome, error)
	// Lookup asks the provider for the current state of a payment.
	Lookup(ctx context.Context, req LookupRequest) (Outcome, error)
}

type InitiationRequest struct {
	ReferenceID   string
	Amount        float64
	BookingRef    string
	CustomerName  string
	CustomerEmail string
	CustomerPhone string
}

// Initiation is what the client needs to hand the user over to the provider.
type Initiation struct {
	PaymentURL string            `json:"payment_url,omitempty"`
	FormData   map[string]string `json:"form_data,omitempty"`
	// ProviderReference is the provider-assigned token, e.g. Khalti's pidx.
	ProviderReference string `json:"-"`
	Mock              bool   `json:"mock"`
}

type LookupRequest struct {
	ReferenceID   string
	TransactionID string
	Amount        float64
}

// Callback is a typed success redirect from one of the providers.
type Callback interface {
	Gateway() Gateway
	// ReferenceID is our own reference echoed back, if the provider sends it.
	ReferenceID() string
	// ProviderReference is the provider token used for correlation, if any.
	ProviderReference() string
}

// Outcome is one of Succeeded, Failed or Pending.
type Outcome interface {
	isOutcome()
	RawResponse() json.RawMessage
}

type Succeeded struct {
	TransactionID string
	Raw           json.RawMessage
}

type Failed struct {
	Reason string
	Raw    json.RawMessage
}

type Pending struct {
	Raw json.RawMessage
}

func (Succeeded) isOutcome() {}
func (Failed) isOutcome()    {}
func (Pending) isOutcome()   {}

func (o Succeeded) RawResponse() json.RawMessage { return o.Raw }
func (o Failed) RawResponse() json.RawMessage    { return o.Raw }
func (o Pending) RawResponse() json.RawMessage   { return o.Raw }

// Registry resolves adapters by gateway.
type Registry struct {
	adapters map[Gateway]Adapter
}

func NewRegistry(adapters ...Adapter) *Registry {
	r := &Registry{adapters: make(map[Gateway]Adapter, len(adapters))}
	for _, a := range adapters {
		r.adapters[a.Gateway()] = a
	}
	return r
}

// NewDefaultRegistry builds both adapters from configuration.
func NewDefaultRegistry(cfg config.PaymentsConfig) *Registry {
	client := &http.Client{Timeout: 30 * time.Second}
	return NewRegistry(
		NewESewa(cfg.ESewa, cfg.SuccessURL, cfg.FailureURL, client),
		NewKhalti(cfg.Khalti, cfg.SuccessURL, client),
	)
}

func (r *Registry) Get(g Gateway) (Adapter, error) {
	a, ok := r.adapters[g]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownGateway, g)
	}
	return a, nil
}

func withQuery(base string, params url.Values) string {
	sep := "?"
	if strings.Contains(base, "?") {
		sep = "&"
	}
	return base + sep + params.Encode()
}

func mustJSON(v any) json.RawMessage {
	b, err := json.Marshal(v)
	if err != nil {
		return json.RawMessage(`{}`)
	}
	return b
}

// readBody caps provider responses at 1 MB.
func readBody(resp *http.Response) ([]byte, error) {
	return io.ReadAll(io.LimitReader(resp.Body, 1<<20))
}
