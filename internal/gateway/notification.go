package gateway

import "encoding/json"

// Notification is the payload the gateway POSTs to the merchant callback URL
// after a payment changes state.
type Notification struct {
	TerminalKey string      `json:"TerminalKey"`
	OrderID     string      `json:"OrderId"`
	Success     bool        `json:"Success"`
	Status      string      `json:"Status"`
	PaymentID   json.Number `json:"PaymentId"`
	ErrorCode   string      `json:"ErrorCode"`
	Amount      int64       `json:"Amount"`
	Token       string      `json:"Token"`
}

// VerifyNotification recomputes the token over the raw notification fields
// and compares it with the one the gateway sent. The raw map form is used so
// optional fields (card data and the like) participate exactly as received.
func (c *Client) VerifyNotification(raw map[string]any) bool {
	received, ok := raw["Token"].(string)
	if !ok || received == "" {
		return false
	}
	return Sign(raw, c.secretKey) == received
}

// ParseNotification decodes the raw notification map into its typed form.
func ParseNotification(raw map[string]any) (*Notification, error) {
	payload, err := json.Marshal(raw)
	if err != nil {
		return nil, err
	}
	var n Notification
	if err := json.Unmarshal(payload, &n); err != nil {
		return nil, err
	}
	return &n, nil
}
