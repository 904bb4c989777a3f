package correlate

import (
	"testing"

	"github.com/goliatone/go-crm-sync/core"
)

func TestAttr_MissingKeyFailsFast(t *testing.T) {
	item := Item{"name": "Acme"}
	another := Item{}

	if err := AssertAttributes(item, another, "name"); !core.IsCorrelationFailure(err) {
		t.Fatalf("expected correlation failure for missing attribute, got %v", err)
	}

	// A present-but-empty value is legitimate input, not malformed input.
	blank := Item{"name": ""}
	if err := AssertAttributes(item, blank, "name"); err != nil {
		t.Fatalf("expected empty value to pass assertion, got %v", err)
	}
}

func TestCompanyResolver_MissingRegistrationIsAnError(t *testing.T) {
	resolver := CompanyResolver{}
	_, err := resolver.Matches(
		Item{"name": "Acme", "registration_number": "B-123"},
		Item{"name": "Acme"},
	)
	if !core.IsCorrelationFailure(err) {
		t.Fatalf("expected correlation failure, got %v", err)
	}
}

func TestCompanyResolver_NameThenRegistration(t *testing.T) {
	resolver := CompanyResolver{}

	matched, err := resolver.Matches(
		Item{"name": "Acme GmbH", "registration_number": "HRB 123"},
		Item{"name": "acme  gmbh", "registration_number": "hrb 123"},
	)
	if err != nil {
		t.Fatalf("Matches: %v", err)
	}
	if !matched {
		t.Fatalf("expected normalized name and registration to correlate")
	}

	matched, err = resolver.Matches(
		Item{"name": "Acme GmbH", "registration_number": "HRB 123"},
		Item{"name": "Acme GmbH", "registration_number": "HRB 999"},
	)
	if err != nil {
		t.Fatalf("Matches: %v", err)
	}
	if matched {
		t.Fatalf("expected registration mismatch to block correlation")
	}
}

func TestNameResolver_NormalizesWhitespaceAndCase(t *testing.T) {
	resolver := NameResolver{}
	matched, err := resolver.Matches(
		Item{"name": "  Globex   Corp "},
		Item{"name": "globex corp"},
	)
	if err != nil {
		t.Fatalf("Matches: %v", err)
	}
	if !matched {
		t.Fatalf("expected cosmetic differences to normalize away")
	}
}

func TestNameResolver_ScopedKeys(t *testing.T) {
	resolver := NameResolver{StrategyKeys: []string{core.EntityQuote}}
	if resolver.CanResolveFor(core.EntityCompany) {
		t.Fatalf("expected scoped resolver to decline other strategies")
	}
	if !resolver.CanResolveFor("Quote") {
		t.Fatalf("expected scope match to fold case")
	}
}

func TestNormalize(t *testing.T) {
	if got := Normalize("  Two   Words\t "); got != "two words" {
		t.Fatalf("Normalize = %q", got)
	}
}
