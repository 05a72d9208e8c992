package lightning

import (
	"context"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

const defaultInvoiceTimeout = 15 * time.Second

// InvoiceClient talks to an LND node's REST API to create hold-free
// Lightning invoices, grounded on original_source/l402-proxy/main.go's
// createInvoice — generalized from a hardcoded lndREST/macaroonHex pair to
// the typed config.Config connectivity fields.
type InvoiceClient struct {
	http         *resty.Client
	baseURL      string
	macaroonHex  string
}

// NewInvoiceClient reads the LND admin/invoice macaroon from credentialPath
// once at construction, matching the teacher's read-macaroon-file-at-
// startup pattern rather than re-reading it per request.
func NewInvoiceClient(baseURL, credentialPath string) (*InvoiceClient, error) {
	raw, err := os.ReadFile(credentialPath)
	if err != nil {
		return nil, fmt.Errorf("lightning: read LND macaroon: %w", err)
	}
	return &InvoiceClient{
		http:        resty.New().SetTimeout(defaultInvoiceTimeout),
		baseURL:     strings.TrimRight(baseURL, "/"),
		macaroonHex: hex.EncodeToString(raw),
	}, nil
}

// invoiceCreateRequest is LND's REST /v1/invoices request body.
type invoiceCreateRequest struct {
	Value  int64  `json:"value"`
	Memo   string `json:"memo"`
	Expiry int64  `json:"expiry"`
}

// invoiceCreateResponse is LND's REST /v1/invoices response body; r_hash is
// base64-encoded per LND's REST JSON mapping of proto bytes fields.
type invoiceCreateResponse struct {
	PaymentRequest string `json:"payment_request"`
	RHash          string `json:"r_hash"`
}

// Create issues an invoice for amountSats with the given memo and expiry (in
// seconds), returning the BOLT-11 payment request and the raw 32-byte
// payment hash.
func (c *InvoiceClient) Create(ctx context.Context, amountSats int64, memo string, expirySeconds int64) (paymentRequest string, paymentHash []byte, err error) {
	var out invoiceCreateResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetHeader("Grpc-Metadata-macaroon", c.macaroonHex).
		SetBody(invoiceCreateRequest{Value: amountSats, Memo: memo, Expiry: expirySeconds}).
		SetResult(&out).
		Post(c.baseURL + "/v1/invoices")
	if err != nil {
		return "", nil, fmt.Errorf("lightning: create invoice: %w", err)
	}
	if resp.IsError() {
		return "", nil, fmt.Errorf("lightning: lnd returned %d: %s", resp.StatusCode(), resp.String())
	}

	hash, err := base64.StdEncoding.DecodeString(out.RHash)
	if err != nil {
		return "", nil, fmt.Errorf("lightning: decode r_hash: %w", err)
	}
	return out.PaymentRequest, hash, nil
}
