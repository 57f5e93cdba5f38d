package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"legalpay/internal/errors"
)

const (
	// receiptItemNameLimit is the gateway's safe length for a receipt item
	// name, counted in code points.
	receiptItemNameLimit = 128

	taxationSimplified   = "usn_income"
	taxNone              = "none"
	paymentMethodPrepaid = "full_prepayment"
	paymentObjectService = "service"
)

// Client talks to the T-Bank acquiring API. It is explicitly constructed:
// base URL, terminal credentials and timeout are instance state, never
// package globals.
type Client struct {
	baseURL     string
	terminalKey string
	secretKey   string
	httpClient  *http.Client
}

// NewClient creates a gateway client bounded by the given request timeout.
func NewClient(baseURL, terminalKey, secretKey string, timeout time.Duration) *Client {
	return &Client{
		baseURL:     baseURL,
		terminalKey: terminalKey,
		secretKey:   secretKey,
		httpClient:  &http.Client{Timeout: timeout},
	}
}

// Receipt is the mandatory fiscal payload attached to Init requests.
// It is excluded from token computation.
type Receipt struct {
	Email    string        `json:"Email"`
	Taxation string        `json:"Taxation"`
	Items    []ReceiptItem `json:"Items"`
}

// ReceiptItem is a single fiscal line item.
type ReceiptItem struct {
	Name          string  `json:"Name"`
	Price         int64   `json:"Price"`
	Quantity      float64 `json:"Quantity"`
	Amount        int64   `json:"Amount"`
	Tax           string  `json:"Tax"`
	PaymentMethod string  `json:"PaymentMethod"`
	PaymentObject string  `json:"PaymentObject"`
}

// InitParams carries caller input for a payment initiation.
type InitParams struct {
	Amount      decimal.Decimal
	OrderID     string
	Description string
	CustomerKey string
	Email       string
}

type initRequest struct {
	TerminalKey string   `json:"TerminalKey"`
	Amount      int64    `json:"Amount"`
	OrderID     string   `json:"OrderId"`
	Description string   `json:"Description"`
	CustomerKey string   `json:"CustomerKey,omitempty"`
	Receipt     *Receipt `json:"Receipt"`
	Token       string   `json:"Token"`
}

type initResponse struct {
	Success    bool        `json:"Success"`
	ErrorCode  string      `json:"ErrorCode"`
	Status     string      `json:"Status"`
	PaymentID  json.Number `json:"PaymentId"`
	OrderID    string      `json:"OrderId"`
	PaymentURL string      `json:"PaymentURL"`
	Message    string      `json:"Message"`
	Details    string      `json:"Details"`
}

// InitResult is the successful outcome of an Init call.
type InitResult struct {
	PaymentID  string
	PaymentURL string
	Status     string
}

// StateResult is the provider's GetState envelope, returned uninterpreted:
// the caller decides what a given remote status means locally.
type StateResult struct {
	Success   bool        `json:"Success"`
	ErrorCode string      `json:"ErrorCode"`
	Status    string      `json:"Status"`
	PaymentID json.Number `json:"PaymentId"`
	OrderID   string      `json:"OrderId"`
	Amount    int64       `json:"Amount"`
	Message   string      `json:"Message"`
	Details   string      `json:"Details"`
}

// CancelResult is the structured outcome of a Cancel call.
type CancelResult struct {
	Success bool   `json:"Success"`
	Status  string `json:"Status"`
	Message string `json:"Message"`
	Details string `json:"Details"`
}

// MinorUnits converts a major-unit decimal amount to the gateway's integer
// minor units, truncating any sub-minor remainder.
func MinorUnits(amount decimal.Decimal) (int64, error) {
	if amount.LessThanOrEqual(decimal.Zero) {
		return 0, errors.ErrInvalidAmount
	}
	return amount.Mul(decimal.NewFromInt(100)).IntPart(), nil
}

// InitPayment creates a payment session and returns the hosted payment page.
// A Success=false envelope or a non-2xx status is a GatewayRejected failure;
// transport failures are GatewayUnreachable.
func (c *Client) InitPayment(ctx context.Context, params InitParams) (*InitResult, error) {
	amountMinor, err := MinorUnits(params.Amount)
	if err != nil {
		return nil, err
	}

	description := params.Description
	if description == "" {
		description = fmt.Sprintf("Payment for Order %s", params.OrderID)
	}

	email := params.Email
	if email == "" {
		email = fmt.Sprintf("customer_%s@example.com", params.OrderID)
	}

	req := initRequest{
		TerminalKey: c.terminalKey,
		Amount:      amountMinor,
		OrderID:     params.OrderID,
		Description: description,
		CustomerKey: params.CustomerKey,
		Receipt: &Receipt{
			Email:    email,
			Taxation: taxationSimplified,
			Items: []ReceiptItem{
				{
					Name:          truncateRunes(description, receiptItemNameLimit),
					Price:         amountMinor,
					Quantity:      1.00,
					Amount:        amountMinor,
					Tax:           taxNone,
					PaymentMethod: paymentMethodPrepaid,
					PaymentObject: paymentObjectService,
				},
			},
		},
	}

	tokenParams := map[string]any{
		"TerminalKey": req.TerminalKey,
		"Amount":      req.Amount,
		"OrderId":     req.OrderID,
		"Description": req.Description,
	}
	if req.CustomerKey != "" {
		tokenParams["CustomerKey"] = req.CustomerKey
	}
	req.Token = Sign(tokenParams, c.secretKey)

	var resp initResponse
	if err := c.post(ctx, "/Init", req, &resp, errors.GatewayRejected); err != nil {
		return nil, err
	}
	if !resp.Success {
		return nil, errors.NewGatewayRejected(resp.Message, resp.Details)
	}

	return &InitResult{
		PaymentID:  resp.PaymentID.String(),
		PaymentURL: resp.PaymentURL,
		Status:     resp.Status,
	}, nil
}

// CheckStatus fetches the remote status envelope for a payment. Any failure
// to obtain the envelope, HTTP-level errors included, is GatewayUnreachable;
// a Success=false envelope is still a valid answer for the caller to
// interpret.
func (c *Client) CheckStatus(ctx context.Context, remotePaymentID string) (*StateResult, error) {
	tokenParams := map[string]any{
		"TerminalKey": c.terminalKey,
		"PaymentId":   remotePaymentID,
	}

	req := map[string]any{
		"TerminalKey": c.terminalKey,
		"PaymentId":   remotePaymentID,
		"Token":       Sign(tokenParams, c.secretKey),
	}

	var resp StateResult
	if err := c.post(ctx, "/GetState", req, &resp, errors.GatewayUnreachable); err != nil {
		return nil, err
	}
	return &resp, nil
}

// CancelPayment voids or refunds a payment. Amount, when positive, requests a
// partial refund in minor units derived from the major-unit value.
func (c *Client) CancelPayment(ctx context.Context, remotePaymentID string, amount decimal.Decimal) (*CancelResult, error) {
	tokenParams := map[string]any{
		"TerminalKey": c.terminalKey,
		"PaymentId":   remotePaymentID,
	}
	if !amount.IsZero() {
		amountMinor, err := MinorUnits(amount)
		if err != nil {
			return nil, err
		}
		tokenParams["Amount"] = amountMinor
	}

	req := make(map[string]any, len(tokenParams)+1)
	for k, v := range tokenParams {
		req[k] = v
	}
	req["Token"] = Sign(tokenParams, c.secretKey)

	var resp CancelResult
	if err := c.post(ctx, "/Cancel", req, &resp, errors.GatewayRejected); err != nil {
		return nil, err
	}
	return &resp, nil
}

// post sends a signed JSON request and decodes the response envelope.
// non2xxKind sets how an HTTP-level failure is classified: Init and Cancel
// carry a definitive refusal in the status line, while GetState only ever
// answers through its envelope, so an HTTP error there is connectivity.
func (c *Client) post(ctx context.Context, path string, body any, out any, non2xxKind errors.GatewayErrorKind) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal %s request: %w", path, err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build %s request: %w", path, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return errors.NewGatewayUnreachable(err)
	}
	defer httpResp.Body.Close()

	raw, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return errors.NewGatewayUnreachable(err)
	}

	if httpResp.StatusCode < 200 || httpResp.StatusCode > 299 {
		if non2xxKind == errors.GatewayUnreachable {
			return errors.NewGatewayUnreachable(fmt.Errorf("gateway returned HTTP %d", httpResp.StatusCode))
		}
		return errors.NewGatewayRejected(
			fmt.Sprintf("gateway returned HTTP %d", httpResp.StatusCode),
			string(raw),
		)
	}

	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}

// truncateRunes cuts s to at most limit code points, never mid-character.
func truncateRunes(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit])
}
