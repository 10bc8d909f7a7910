package fingerprint

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractAddress(t *testing.T) {
	tests := []struct {
		name   string
		sender string
		want   string
	}{
		{"bare address", "promo@shop.example", "promo@shop.example"},
		{"display name", `"Best Shop" <Promo@Shop.Example>`, "promo@shop.example"},
		{"address-like display name wins last", `"info@spoof.example" <real@shop.example>`, "real@shop.example"},
		{"no address", "Undisclosed recipients", ""},
		{"empty", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExtractAddress(tt.sender))
		})
	}
}

func TestNormalizeSubject(t *testing.T) {
	tests := []struct {
		name    string
		subject string
		want    string
	}{
		{"lowercase and collapse", "  Flash   SALE!! ", "flash sale!!"},
		{"diacritics stripped", "Réunion déjeuner à confirmer", "reunion dejeuner a confirmer"},
		{"tabs and newlines", "one\ttwo\nthree", "one two three"},
		{"empty", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeSubject(tt.subject))
		})
	}
}

func TestComputeStable(t *testing.T) {
	a := Compute(`"Best Shop" <promo@shop.example>`, "Flash Sale!!")
	b := Compute("promo@shop.example", "  flash   sale!! ")
	assert.Equal(t, a, b)
	assert.Len(t, a, 64)
}

func TestComputeDiscriminates(t *testing.T) {
	base := Compute("promo@shop.example", "flash sale")
	assert.NotEqual(t, base, Compute("other@shop.example", "flash sale"))
	assert.NotEqual(t, base, Compute("promo@shop.example", "flash sale 2"))
}

func TestComputeTotalOnEmptyInput(t *testing.T) {
	assert.Len(t, Compute("", ""), 64)
	assert.Equal(t, Compute("no address here", ""), Compute("", ""))
}
