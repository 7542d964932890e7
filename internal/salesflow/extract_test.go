package salesflow

import "testing"

func TestDetectProduct(t *testing.T) {
	cases := []struct {
		text string
		want string
	}{
		{"Quiero un Frigorífico para mi negocio", "Frigoríficos"},
		{"me interesa el frigorifico grande", "Frigoríficos"},
		{"tienen hornos?", "Hornos"},
		{"busco una balanza digital", "Balanza"},
		{"hola, buenas tardes", ""},
	}
	for _, tc := range cases {
		if got := DetectProduct(tc.text); got != tc.want {
			t.Errorf("DetectProduct(%q) = %q, want %q", tc.text, got, tc.want)
		}
	}
}

func TestDetectProductFirstTriggerWins(t *testing.T) {
	// "frio" precedes "vitrina" in the table, so a message containing both
	// resolves to Frigoríficos.
	if got := DetectProduct("necesito frio para la vitrina"); got != "Frigoríficos" {
		t.Fatalf("got %q, want Frigoríficos", got)
	}
}

func TestDetectQuantity(t *testing.T) {
	cases := []struct {
		text string
		want int
	}{
		{"quiero 3 hornos", 3},
		{"dame 12", 12},
		{"sin números aquí", 1},
		{"", 1},
		{"0 unidades", 1},
	}
	for _, tc := range cases {
		if got := DetectQuantity(tc.text); got != tc.want {
			t.Errorf("DetectQuantity(%q) = %d, want %d", tc.text, got, tc.want)
		}
	}
}

func TestDetectPaymentMethodPrecedence(t *testing.T) {
	// Delivery triggers are checked before in-store triggers: a message
	// containing both classifies as cash-on-delivery.
	if got := DetectPaymentMethod("me lo entregas o paso por el local?"); got != PaymentCashOnDelivery {
		t.Fatalf("got %q, want %q", got, PaymentCashOnDelivery)
	}
}

func TestDetectPaymentMethod(t *testing.T) {
	cases := []struct {
		text string
		want PaymentMethod
	}{
		{"contraentrega por favor", PaymentCashOnDelivery},
		{"lo quiero a domicilio", PaymentCashOnDelivery},
		{"voy al local mañana", PaymentInStore},
		{"pago en efectivo", PaymentInStore},
		{"cuánto cuesta?", PaymentNone},
	}
	for _, tc := range cases {
		if got := DetectPaymentMethod(tc.text); got != tc.want {
			t.Errorf("DetectPaymentMethod(%q) = %q, want %q", tc.text, got, tc.want)
		}
	}
}

func TestDetectAddressReturnsWholeMessage(t *testing.T) {
	msg := "  Av. Amazonas 123 y Colón  "
	if got := DetectAddress(msg); got != "Av. Amazonas 123 y Colón" {
		t.Fatalf("got %q", got)
	}
	if got := DetectAddress("no hay nada útil"); got != "" {
		t.Fatalf("expected empty, got %q", got)
	}
}

func TestDetectContact(t *testing.T) {
	c := DetectContact("Hola, me llamo Juan Pérez y mi correo es juan@example.com")
	if c.Name != "Juan" || c.Surname != "Pérez" {
		t.Fatalf("name = %q %q", c.Name, c.Surname)
	}
	if c.Email != "juan@example.com" {
		t.Fatalf("email = %q", c.Email)
	}

	c = DetectContact("soy María")
	if c.Name != "María" || c.Surname != "" {
		t.Fatalf("name = %q %q", c.Name, c.Surname)
	}

	c = DetectContact("sin datos de contacto")
	if c.Name != "" || c.Email != "" {
		t.Fatalf("expected empty contact, got %+v", c)
	}
}
