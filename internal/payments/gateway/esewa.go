package gateway

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"venuely/internal/shared/config"
)

const esewaSignedFields = "total_amount,transaction_uuid,product_code"

// ESewaAdapter implements the eSewa ePay v2 form flow. Requests are signed
// with HMAC-SHA256 and the success redirect carries a base64 JSON blob.
type ESewaAdapter struct {
	cfg        config.ESewaConfig
	successURL string
	failureURL string
	client     *http.Client
}

func NewESewa(cfg config.ESewaConfig, successURL, failureURL string, client *http.Client) *ESewaAdapter {
	return &ESewaAdapter{cfg: cfg, successURL: successURL, failureURL: failureURL, client: client}
}

func (a *ESewaAdapter) Gateway() Gateway { return ESewa }

func (a *ESewaAdapter) Mock() bool { return a.cfg.SecretKey == "" }

// Sign returns base64(HMAC-SHA256(secret, message)).
func Sign(secret, message string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(message))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

// esewaMessage builds the canonical string eSewa expects for a request.
func esewaMessage(totalAmount, referenceID, productCode string) string {
	return fmt.Sprintf("total_amount=%s,transaction_uuid=%s,product_code=%s", totalAmount, referenceID, productCode)
}

func formatAmount(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func (a *ESewaAdapter) Initiate(ctx context.Context, req InitiationRequest) (*Initiation, error) {
	total := formatAmount(req.Amount)
	callbackURL := withQuery(a.successURL, url.Values{"gateway": {"esewa"}})

	if a.Mock() {
		data := mustJSON(map[string]any{
			"transaction_code":   "MOCK-" + req.ReferenceID,
			"status":             "COMPLETE",
			"total_amount":       total,
			"transaction_uuid":   req.ReferenceID,
			"product_code":       a.cfg.MerchantCode,
			"signed_field_names": "",
			"mock":               true,
		})
		return &Initiation{
			PaymentURL: withQuery(a.successURL, url.Values{
				"gateway": {"esewa"},
				"data":    {base64.StdEncoding.EncodeToString(data)},
			}),
			Mock: true,
		}, nil
	}

	return &Initiation{
		PaymentURL: a.cfg.FormURL,
		FormData: map[string]string{
			"amount":                  total,
			"tax_amount":              "0",
			"total_amount":            total,
			"transaction_uuid":        req.ReferenceID,
			"product_code":            a.cfg.MerchantCode,
			"product_service_charge":  "0",
			"product_delivery_charge": "0",
			"success_url":             callbackURL,
			"failure_url":             a.failureURL,
			"signed_field_names":      esewaSignedFields,
			"signature":               Sign(a.cfg.SecretKey, esewaMessage(total, req.ReferenceID, a.cfg.MerchantCode)),
		},
	}, nil
}

// ESewaCallback is the decoded "data" parameter of an eSewa redirect.
type ESewaCallback struct {
	TransactionCode  string
	Status           string
	TotalAmount      string
	TransactionUUID  string
	ProductCode      string
	SignedFieldNames string
	Signature        string
	Mock             bool

	fields map[string]string
	raw    json.RawMessage
}

func (c *ESewaCallback) Gateway() Gateway          { return ESewa }
func (c *ESewaCallback) ReferenceID() string       { return c.TransactionUUID }
func (c *ESewaCallback) ProviderReference() string { return "" }

func (a *ESewaAdapter) ParseCallback(params url.Values) (Callback, error) {
	data := params.Get("data")
	if data == "" {
		return nil, fmt.Errorf("%w: missing data parameter", ErrMalformedCallback)
	}
	raw, err := base64.StdEncoding.DecodeString(data)
	if err != nil {
		if raw, err = base64.URLEncoding.DecodeString(data); err != nil {
			return nil, fmt.Errorf("%w: data is not base64", ErrMalformedCallback)
		}
	}

	fields, err := flattenJSON(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedCallback, err)
	}
	cb := &ESewaCallback{
		TransactionCode:  fields["transaction_code"],
		Status:           fields["status"],
		TotalAmount:      fields["total_amount"],
		TransactionUUID:  fields["transaction_uuid"],
		ProductCode:      fields["product_code"],
		SignedFieldNames: fields["signed_field_names"],
		Signature:        fields["signature"],
		Mock:             fields["mock"] == "true",
		fields:           fields,
		raw:              raw,
	}
	if cb.TransactionUUID == "" || cb.Status == "" {
		return nil, fmt.Errorf("%w: transaction_uuid and status are required", ErrMalformedCallback)
	}
	return cb, nil
}

func (a *ESewaAdapter) Verify(ctx context.Context, cb Callback) (Outcome, error) {
	ecb, ok := cb.(*ESewaCallback)
	if !ok {
		return nil, fmt.Errorf("%w: expected an eSewa callback", ErrMalformedCallback)
	}

	if !a.Mock() {
		if ecb.Mock {
			return Failed{Reason: "mock callback rejected", Raw: ecb.raw}, nil
		}
		if !a.validSignature(ecb) {
			return Failed{Reason: "signature mismatch", Raw: ecb.raw}, nil
		}
	}
	return esewaOutcome(ecb.Status, ecb.TransactionCode, ecb.raw), nil
}

func (a *ESewaAdapter) validSignature(cb *ESewaCallback) bool {
	if cb.Signature == "" || cb.SignedFieldNames == "" {
		return false
	}
	names := strings.Split(cb.SignedFieldNames, ",")
	parts := make([]string, 0, len(names))
	for _, name := range names {
		parts = append(parts, name+"="+cb.fields[name])
	}
	expected := Sign(a.cfg.SecretKey, strings.Join(parts, ","))
	return hmac.Equal([]byte(expected), []byte(cb.Signature))
}

// Lookup queries the eSewa transaction status API.
func (a *ESewaAdapter) Lookup(ctx context.Context, req LookupRequest) (Outcome, error) {
	if a.Mock() {
		return Succeeded{
			TransactionID: "MOCK-" + req.ReferenceID,
			Raw: mustJSON(map[string]any{
				"status":           "COMPLETE",
				"transaction_uuid": req.ReferenceID,
				"total_amount":     formatAmount(req.Amount),
				"mock":             true,
			}),
		}, nil
	}

	statusURL := withQuery(a.cfg.StatusURL, url.Values{
		"product_code":     {a.cfg.MerchantCode},
		"total_amount":     {formatAmount(req.Amount)},
		"transaction_uuid": {req.ReferenceID},
	})
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, statusURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build esewa status request: %w", err)
	}
	resp, err := a.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("esewa status request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := readBody(resp)
	if err != nil {
		return nil, fmt.Errorf("failed to read esewa status response: %w", err)
	}
	if resp.StatusCode >= http.StatusInternalServerError {
		return nil, fmt.Errorf("esewa status returned %d", resp.StatusCode)
	}

	fields, err := flattenJSON(body)
	if err != nil {
		return nil, fmt.Errorf("failed to decode esewa status response: %w", err)
	}
	return esewaOutcome(fields["status"], fields["ref_id"], body), nil
}

func esewaOutcome(status, transactionCode string, raw json.RawMessage) Outcome {
	switch strings.ToUpper(status) {
	case "COMPLETE":
		return Succeeded{TransactionID: transactionCode, Raw: raw}
	case "PENDING", "AMBIGUOUS":
		return Pending{Raw: raw}
	default:
		return Failed{Reason: "esewa status " + status, Raw: raw}
	}
}

// flattenJSON decodes a flat JSON object into strings, keeping numbers in
// their original text form so signatures can be recomputed.
func flattenJSON(data []byte) (map[string]string, error) {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(data, &obj); err != nil {
		return nil, fmt.Errorf("invalid JSON object: %w", err)
	}
	out := make(map[string]string, len(obj))
	for k, v := range obj {
		var s string
		if err := json.Unmarshal(v, &s); err == nil {
			out[k] = s
			continue
		}
		out[k] = string(v)
	}
	return out, nil
}
