package repo

import (
	"testing"
	"time"
)

func TestAssemblePayment(t *testing.T) {
	if got := assemblePayment(nil, nil, nil, nil, nil, nil, nil); got != nil {
		t.Fatalf("nil method must yield nil intent, got %+v", got)
	}

	empty := ""
	if got := assemblePayment(&empty, nil, nil, nil, nil, nil, nil); got != nil {
		t.Fatalf("empty method must yield nil intent, got %+v", got)
	}

	method := "contraentrega"
	total := 3500.0
	state := PaymentStatePendingDelivery
	code := "FRES-2025-000001"
	paid := false
	addr := "Av. Amazonas 123"
	at := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)

	got := assemblePayment(&method, &total, &state, &code, &paid, &addr, &at)
	if got == nil {
		t.Fatal("expected intent")
	}
	if got.Method != method || got.Total != total || got.State != state || got.Code != code {
		t.Errorf("intent = %+v", got)
	}
	if got.Address == nil || *got.Address != addr {
		t.Errorf("address = %v", got.Address)
	}
	if !got.RequestedAt.Equal(at) {
		t.Errorf("requested at = %v", got.RequestedAt)
	}
}

func TestOrderItemsJSONRoundTrip(t *testing.T) {
	items := []OrderItem{
		{Name: "Hornos", UnitPrice: 3500, Quantity: 2, Subtotal: 7000},
	}
	data, err := itemsToJSON(items)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	back := itemsFromJSON(data)
	if len(back) != 1 || back[0] != items[0] {
		t.Fatalf("round trip = %+v", back)
	}

	if got := itemsFromJSON(nil); got != nil {
		t.Fatalf("empty payload = %+v", got)
	}
	if got := itemsFromJSON([]byte("not json")); got != nil {
		t.Fatalf("bad payload = %+v", got)
	}
}
