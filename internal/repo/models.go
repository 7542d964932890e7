package repo

import "time"

// Lead represents the leads table row: one record per canonical phone key.
type Lead struct {
	ID            string
	Phone         string
	Name          *string
	Email         *string
	Address       *string
	PurchaseState string
	Payment       *PaymentIntent
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Purchase states for a lead.
const (
	PurchaseStateLead     = "lead"
	PurchaseStateCustomer = "cliente"
)

// PaymentIntent summarises the lead's latest stated payment intent.
type PaymentIntent struct {
	Method      string
	Total       float64
	State       string
	Code        string
	Paid        bool
	Address     *string
	RequestedAt time.Time
}

// Payment/fulfillment states carried on leads and orders.
const (
	PaymentStatePendingDelivery = "pendiente_entrega"
	PaymentStatePendingInStore  = "pendiente_pago_local"
	PaymentStatePaid            = "pagado"
)

// NewLead carries the data used to create a lead.
type NewLead struct {
	Phone   string
	Name    *string
	Email   *string
	Address *string
}

// LeadUpdate carries optional field updates; nil fields are left untouched.
type LeadUpdate struct {
	Name    *string
	Email   *string
	Address *string
}

// MessageRecord is one entry in a lead's append-only conversation log.
type MessageRecord struct {
	ID         int64
	LeadID     string
	Sender     string
	Body       string
	MessageSID *string
	CreatedAt  time.Time
}

// Conversation is the denormalized per-lead projection updated on append.
type Conversation struct {
	LeadID        string
	Phone         string
	LastMessageAt time.Time
}

// Product represents a catalog entry.
type Product struct {
	ID              string
	Name            string
	Category        string
	Price           float64
	Characteristics *string
	Description     *string
	Active          bool
	CreatedAt       time.Time
}

// OrderItem is one line of an order.
type OrderItem struct {
	Name      string  `json:"nombre"`
	UnitPrice float64 `json:"precio"`
	Quantity  int     `json:"cantidad"`
	Subtotal  float64 `json:"subtotal"`
}

// Order represents a persisted sales completion.
type Order struct {
	ID              string
	LeadID          string
	Code            string
	Items           []OrderItem
	Total           float64
	Method          string
	DeliveryAddress *string
	Status          string
	Paid            bool
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// assemblePayment reconstructs the payment-intent summary from nullable
// columns; a missing method means no intent has been recorded yet.
func assemblePayment(method *string, total *float64, state, code *string, paid *bool, address *string, requestedAt *time.Time) *PaymentIntent {
	if method == nil || *method == "" {
		return nil
	}
	intent := &PaymentIntent{Method: *method, Address: address}
	if total != nil {
		intent.Total = *total
	}
	if state != nil {
		intent.State = *state
	}
	if code != nil {
		intent.Code = *code
	}
	if paid != nil {
		intent.Paid = *paid
	}
	if requestedAt != nil {
		intent.RequestedAt = *requestedAt
	}
	return intent
}

// APIKey represents a record in the api_keys table.
type APIKey struct {
	ID            string
	Provider      string
	Value         string
	Priority      int
	CooldownUntil *time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}
