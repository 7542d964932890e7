package salesflow

import "strings"

// Stage is a sales-funnel classification derived from conversation history.
type Stage string

const (
	StageInquiry        Stage = "inquiry"
	StageIntentDeclared Stage = "intent_declared"
	StageAwaitingMethod Stage = "awaiting_fulfillment_method"
	StageAwaitingAddr   Stage = "awaiting_address"
	StageOrderComplete  Stage = "order_complete"
)

// Sender identifies who authored a message in a conversation.
type Sender string

const (
	SenderCustomer  Sender = "cliente"
	SenderAssistant Sender = "bot"
)

// Message is the minimal view of a conversation entry the classifier and
// prompt builder need.
type Message struct {
	Sender Sender
	Text   string
}

// Signals are the cumulative boolean flags scanned from a whole conversation
// history. Flags never un-set: the classifier has no notion of retraction.
type Signals struct {
	Intent       bool
	Confirmation bool
	Delivery     bool
	InStore      bool
	Address      bool
}

// ScanSignals walks the full history and accumulates keyword flags using the
// same trigger tables as the per-message extractor.
func ScanSignals(history []Message) Signals {
	var s Signals
	for _, msg := range history {
		lower := strings.ToLower(msg.Text)
		if containsAny(lower, intentKeywords) {
			s.Intent = true
		}
		if containsAny(lower, confirmationKeywords) {
			s.Confirmation = true
		}
		if containsAny(lower, deliveryKeywords) {
			s.Delivery = true
		}
		if containsAny(lower, inStoreKeywords) {
			s.InStore = true
		}
		if containsAny(lower, addressKeywords) {
			s.Address = true
		}
	}
	return s
}

// Classify recomputes the current funnel stage from scratch on every turn.
// The rule order below is the fixed precedence among competing signals: a
// confirmed in-store intent is never downgraded by an earlier ambiguous
// address mention.
func Classify(history []Message) Stage {
	return classifySignals(ScanSignals(history))
}

func classifySignals(s Signals) Stage {
	switch {
	case s.InStore && s.Confirmation:
		return StageOrderComplete
	case s.Delivery && s.Address:
		return StageOrderComplete
	case s.Delivery || s.InStore:
		return StageAwaitingAddr
	case s.Intent && s.Confirmation:
		return StageAwaitingMethod
	case s.Intent:
		return StageIntentDeclared
	default:
		return StageInquiry
	}
}

// rank orders stages by specificity for monotonicity checks in tests.
func (s Stage) rank() int {
	switch s {
	case StageIntentDeclared:
		return 1
	case StageAwaitingMethod:
		return 2
	case StageAwaitingAddr:
		return 3
	case StageOrderComplete:
		return 4
	default:
		return 0
	}
}
