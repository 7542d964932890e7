// Package salesflow contains the keyword/regex heuristics that turn free-text
// WhatsApp messages into sales signals, and the stage classifier built on top
// of them. The tables are deliberately simple, ordered and data-driven so the
// rule set stays auditable and extensible without touching orchestration code.
package salesflow

import (
	"regexp"
	"strings"
)

// PaymentMethod is a customer's stated fulfillment intent.
type PaymentMethod string

const (
	PaymentNone           PaymentMethod = ""
	PaymentCashOnDelivery PaymentMethod = "contraentrega"
	PaymentInStore        PaymentMethod = "presencial"
)

// productTrigger maps a trigger keyword to the canonical catalog product name.
// Order matters: the first trigger contained in the message wins.
type productTrigger struct {
	Keyword string
	Product string
}

var productTriggers = []productTrigger{
	{"frigorífico", "Frigoríficos"},
	{"frigorifico", "Frigoríficos"},
	{"frio", "Frigoríficos"},
	{"vitrina", "Vitrinas Horizontales"},
	{"horno", "Hornos"},
	{"freidora", "Freidoras"},
	{"cocina", "Cocinas"},
	{"asadero", "Asaderos"},
	{"salchipapera", "Salchipaperas"},
	{"mesa", "Mesas de Acero"},
	{"estantería", "Estanterías"},
	{"gondola", "Góndolas"},
	{"panera", "Paneras"},
	{"hotdog", "Carros de Hotdogs"},
	{"balanza", "Balanza"},
	{"bombonera", "Bomboneras"},
}

// Keyword tables shared by the extractor and the stage classifier. Delivery
// triggers are checked before in-store triggers: when both could plausibly
// appear, delivery wins.
var (
	deliveryKeywords = []string{
		"contraentrega", "contra entrega", "entrega", "domicilio",
		"casa", "enviar", "delivery", "me lo entregas",
	}
	inStoreKeywords = []string{
		"presencial", "local", "voy", "paso", "efectivo",
		"en el local", "ir al local", "voy allá",
	}
	addressKeywords = []string{
		"avenida", "av.", "calle", "dirección", "número",
		"quito", "barrio", "zona", "sector",
	}
	intentKeywords = []string{
		"quiero", "compro", "dame", "necesito", "interesa",
	}
	confirmationKeywords = []string{
		"si por favor", "claro", "dale", "adelante",
	}
)

var (
	quantityRegex = regexp.MustCompile(`\d+`)
	emailRegex    = regexp.MustCompile(`[\w.+-]+@[\w.-]+\.\w+`)

	// Ordered: two-word name forms before single-word forms.
	namePatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?:me llamo|soy|con)\s+([A-ZÁÉÍÓÚ][a-záéíóúñ]+)\s+([A-ZÁÉÍÓÚ][a-záéíóúñ]+)`),
		regexp.MustCompile(`(?:me llamo|soy)\s+([A-ZÁÉÍÓÚ][a-záéíóúñ]+)`),
		regexp.MustCompile(`(?:con)\s+([A-ZÁÉÍÓÚ][a-záéíóúñ]+)`),
	}
)

// DetectProduct returns the canonical catalog name of the first product
// trigger contained in the text, or "" when none matches.
func DetectProduct(text string) string {
	lower := strings.ToLower(text)
	for _, trig := range productTriggers {
		if strings.Contains(lower, trig.Keyword) {
			return trig.Product
		}
	}
	return ""
}

// DetectQuantity parses the first run of decimal digits as a quantity,
// defaulting to 1 when the text carries no number.
func DetectQuantity(text string) int {
	match := quantityRegex.FindString(text)
	if match == "" {
		return 1
	}
	qty := 0
	for _, r := range match {
		qty = qty*10 + int(r-'0')
		if qty > 1_000_000 {
			return 1
		}
	}
	if qty == 0 {
		return 1
	}
	return qty
}

// DetectPaymentMethod classifies the stated fulfillment intent. Delivery
// triggers take precedence over in-store triggers.
func DetectPaymentMethod(text string) PaymentMethod {
	lower := strings.ToLower(text)
	if containsAny(lower, deliveryKeywords) {
		return PaymentCashOnDelivery
	}
	if containsAny(lower, inStoreKeywords) {
		return PaymentInStore
	}
	return PaymentNone
}

// DetectAddress returns the whole trimmed message when it contains an
// address-indicator keyword. Address recognition is a trigger, not an
// extraction: the full message is the best available address text.
func DetectAddress(text string) string {
	lower := strings.ToLower(text)
	if containsAny(lower, addressKeywords) {
		return strings.TrimSpace(text)
	}
	return ""
}

// Contact carries name/surname/email fragments found in a message.
type Contact struct {
	Name    string
	Surname string
	Email   string
}

// DetectContact extracts a capitalised name (optionally with surname) and an
// email address. The first matching pattern wins per field.
func DetectContact(text string) Contact {
	var c Contact
	for _, pattern := range namePatterns {
		match := pattern.FindStringSubmatch(text)
		if match == nil {
			continue
		}
		c.Name = match[1]
		if len(match) > 2 && match[2] != "" {
			c.Surname = match[2]
		}
		break
	}
	c.Email = emailRegex.FindString(text)
	return c
}

func containsAny(lower string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}
