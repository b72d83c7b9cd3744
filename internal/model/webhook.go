package model

import "encoding/json"

// WebhookNotification is the provider callback body. Only the payment id is
// taken from it; everything else is re-fetched from the provider because the
// callback body is not a trusted source of truth.
type WebhookNotification struct {
	Type   string `json:"type"`
	Action string `json:"action"`
	Data   struct {
		ID json.Number `json:"id"`
	} `json:"data"`
}

// NotificationKind is the closed set of callback shapes the pipeline knows.
type NotificationKind int

const (
	NotificationIgnored NotificationKind = iota
	NotificationPaymentUpdate
)

// Kind classifies the notification. Unknown type/action combinations fall
// into the explicit ignored variant instead of silently passing through.
func (n WebhookNotification) Kind() NotificationKind {
	if n.Type == "payment" || n.Action == "payment.updated" {
		return NotificationPaymentUpdate
	}
	return NotificationIgnored
}

func (n WebhookNotification) PaymentID() string {
	return n.Data.ID.String()
}
