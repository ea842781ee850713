package pipeline

import "testing"

func TestParseAmount_Range(t *testing.T) {
	min, max, currency := parseAmount("Grants of $10,000 to $50,000 are available.", "")
	if min != 10000 || max != 50000 {
		t.Fatalf("expected 10000..50000, got %f..%f", min, max)
	}
	if currency != "USD" {
		t.Fatalf("expected USD, got %s", currency)
	}
}

func TestParseAmount_UpToIsMaxOnly(t *testing.T) {
	min, max, _ := parseAmount("Funding of up to 25,000 per project.", "")
	if min != 0 || max != 25000 {
		t.Fatalf("expected max-only 25000, got %f..%f", min, max)
	}
}

func TestParseAmount_AtLeastIsMinOnly(t *testing.T) {
	min, max, _ := parseAmount("Awards of at least 5,000 will be made.", "")
	if min != 5000 || max != 0 {
		t.Fatalf("expected min-only 5000, got %f..%f", min, max)
	}
}

func TestParseAmount_LocalCurrencyHint(t *testing.T) {
	_, max, currency := parseAmount("KES 500,000 available for Kenyan startups.", "")
	if currency != "KES" {
		t.Fatalf("expected KES, got %s", currency)
	}
	if max != 500000 {
		t.Fatalf("expected 500000, got %f", max)
	}
}

func TestParseAmount_NoAmounts(t *testing.T) {
	min, max, currency := parseAmount("A fellowship for early-career researchers.", "")
	if min != 0 || max != 0 || currency != "" {
		t.Fatalf("expected zero result, got %f %f %q", min, max, currency)
	}
}
