package salesflow

import "testing"

func customer(texts ...string) []Message {
	history := make([]Message, 0, len(texts))
	for _, t := range texts {
		history = append(history, Message{Sender: SenderCustomer, Text: t})
	}
	return history
}

func TestClassifyProgression(t *testing.T) {
	history := customer("quiero comprar")
	if got := Classify(history); got != StageIntentDeclared {
		t.Fatalf("after intent: got %q, want %q", got, StageIntentDeclared)
	}

	history = append(history, Message{Sender: SenderCustomer, Text: "contraentrega"})
	if got := Classify(history); got != StageAwaitingAddr {
		t.Fatalf("after method: got %q, want %q", got, StageAwaitingAddr)
	}

	history = append(history, Message{Sender: SenderCustomer, Text: "calle 123"})
	if got := Classify(history); got != StageOrderComplete {
		t.Fatalf("after address: got %q, want %q", got, StageOrderComplete)
	}
}

func TestClassifyEmptyHistory(t *testing.T) {
	if got := Classify(nil); got != StageInquiry {
		t.Fatalf("got %q, want %q", got, StageInquiry)
	}
}

func TestClassifyConfirmedIntentAwaitsMethod(t *testing.T) {
	history := customer("necesito un horno", "dale, adelante")
	if got := Classify(history); got != StageAwaitingMethod {
		t.Fatalf("got %q, want %q", got, StageAwaitingMethod)
	}
}

func TestClassifyInStoreConfirmedCompletes(t *testing.T) {
	// An in-store purchase needs no address to complete.
	history := customer("quiero la freidora", "voy al local, dale")
	if got := Classify(history); got != StageOrderComplete {
		t.Fatalf("got %q, want %q", got, StageOrderComplete)
	}
}

func TestClassifyInStoreConfirmationOutranksAddressMention(t *testing.T) {
	// A full confirmed in-store intent is not downgraded by an earlier
	// ambiguous address mention.
	history := customer("estoy por la avenida Amazonas", "quiero comprar", "paso por el local, dale")
	if got := Classify(history); got != StageOrderComplete {
		t.Fatalf("got %q, want %q", got, StageOrderComplete)
	}
}

func TestClassifyMonotonicUnderExtension(t *testing.T) {
	// Appending messages that only add flags never decreases stage
	// specificity.
	base := customer("quiero comprar")
	extensions := []string{"contraentrega", "dale", "Av. Amazonas 123"}

	prev := Classify(base)
	history := base
	for _, ext := range extensions {
		history = append(history, Message{Sender: SenderCustomer, Text: ext})
		current := Classify(history)
		if current.rank() < prev.rank() {
			t.Fatalf("stage regressed from %q to %q after %q", prev, current, ext)
		}
		prev = current
	}
}

func TestScanSignalsIgnoresNothing(t *testing.T) {
	// Assistant turns count too: the scan covers the entire history.
	history := []Message{
		{Sender: SenderAssistant, Text: "¿Contraentrega o Presencial?"},
		{Sender: SenderCustomer, Text: "quiero saber precios"},
	}
	s := ScanSignals(history)
	if !s.Delivery || !s.InStore {
		t.Fatalf("expected method flags from assistant turn, got %+v", s)
	}
	if !s.Intent {
		t.Fatalf("expected intent flag, got %+v", s)
	}
}
