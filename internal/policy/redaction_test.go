package policy

import (
	"strings"
	"testing"
)

func TestRedactMasksEmailAndPhone(t *testing.T) {
	in := "reach me at ana.lopez@example.com or +1 (415) 555-0133 after lunch"
	out, changed := Redact(in)
	if !changed {
		t.Fatalf("Redact() changed = false")
	}
	if strings.Contains(out, "example.com") {
		t.Fatalf("email survived redaction: %q", out)
	}
	if strings.Contains(out, "555-0133") {
		t.Fatalf("phone survived redaction: %q", out)
	}
}

func TestRedactMasksCardBeforePhone(t *testing.T) {
	out, changed := Redact("card 4111 1111 1111 1111 on file")
	if !changed {
		t.Fatalf("Redact() changed = false")
	}
	if !strings.Contains(out, "[REDACTED_CARD]") {
		t.Fatalf("card not masked as card: %q", out)
	}
}

func TestRedactMasksSSN(t *testing.T) {
	out, _ := Redact("my ssn is 123-45-6789")
	if strings.Contains(out, "123-45-6789") {
		t.Fatalf("ssn survived redaction: %q", out)
	}
}

func TestRedactLeavesPlainTextAlone(t *testing.T) {
	in := "the week felt heavier than usual"
	out, changed := Redact(in)
	if changed || out != in {
		t.Fatalf("Redact(%q) = %q changed=%v, want unchanged", in, out, changed)
	}
}
