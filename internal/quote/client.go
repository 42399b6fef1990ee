// Package quote talks to the external swap-quote provider. It is the one
// externally imposed protocol boundary in the pipeline: the provider can be
// swapped without touching the engine.
package quote

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"solana-swapbot/internal/domain"
)

// Quote client errors.
var (
	// ErrProviderRejected is returned on any non-2xx provider response.
	ErrProviderRejected = errors.New("quote provider rejected request")

	// ErrInvalidResponse is returned when the provider response is missing
	// the transaction payload or carries malformed fields.
	ErrInvalidResponse = errors.New("invalid quote response")
)

// DefaultTimeout bounds one quote request.
const DefaultTimeout = 15 * time.Second

// Client fetches swap quotes over HTTP.
type Client struct {
	baseURL string
	client  *http.Client
}

// Option configures Client.
type Option func(*Client)

// WithHTTPClient sets a custom http.Client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		c.client = client
	}
}

// WithTimeout sets the HTTP client timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.client.Timeout = d
	}
}

// NewClient creates a quote client for the given provider base URL.
func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: baseURL,
		client:  &http.Client{Timeout: DefaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// quoteResponse is the provider's wire shape:
//
//	{"transaction": {"serializedTx": "<base64>", "txType": "legacy"}}
type quoteResponse struct {
	Transaction *quoteTransaction `json:"transaction"`
}

type quoteTransaction struct {
	SerializedTx string `json:"serializedTx"`
	TxType       string `json:"txType"`
}

// Fetch requests a swap quote for the given request, paying from payer.
// The amount is sent as decimal SOL; slippage in basis points.
func (c *Client) Fetch(ctx context.Context, req domain.SwapRequest, payer string) (domain.SwapQuote, error) {
	params := url.Values{}
	params.Set("from", req.InputMint)
	params.Set("to", req.OutputMint)
	params.Set("amount", strconv.FormatFloat(req.AmountSOL(), 'f', -1, 64))
	params.Set("slip", strconv.Itoa(req.SlippageBps))
	params.Set("payer", payer)
	params.Set("fee", strconv.FormatFloat(req.PriorityFee, 'f', -1, 64))
	params.Set("txType", domain.TxTypeLegacy)

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/swap?"+params.Encode(), nil)
	if err != nil {
		return domain.SwapQuote{}, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return domain.SwapQuote{}, fmt.Errorf("quote request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return domain.SwapQuote{}, fmt.Errorf("read quote response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return domain.SwapQuote{}, fmt.Errorf("%w: status %d", ErrProviderRejected, resp.StatusCode)
	}

	var qr quoteResponse
	if err := json.Unmarshal(body, &qr); err != nil {
		return domain.SwapQuote{}, fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}
	if qr.Transaction == nil {
		return domain.SwapQuote{}, fmt.Errorf("%w: missing transaction field", ErrInvalidResponse)
	}
	if qr.Transaction.SerializedTx == "" {
		return domain.SwapQuote{}, fmt.Errorf("%w: missing serializedTx", ErrInvalidResponse)
	}
	if qr.Transaction.TxType == "" {
		return domain.SwapQuote{}, fmt.Errorf("%w: missing txType", ErrInvalidResponse)
	}

	raw, err := base64.StdEncoding.DecodeString(qr.Transaction.SerializedTx)
	if err != nil {
		return domain.SwapQuote{}, fmt.Errorf("%w: serializedTx is not base64: %v", ErrInvalidResponse, err)
	}

	return domain.SwapQuote{
		SerializedTx: raw,
		TxType:       qr.Transaction.TxType,
	}, nil
}
