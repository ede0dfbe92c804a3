package jsondoc

import "testing"

func TestGetDescendsNestedObjects(t *testing.T) {
	doc := Doc{
		"DEAL": map[string]any{
			"LOANS": map[string]any{
				"LOAN": map[string]any{
					"LOAN_DETAIL": map[string]any{"LoanAmount": "250000"},
				},
			},
		},
	}

	value, ok := doc.Get("DEAL", "LOANS", "LOAN", "LOAN_DETAIL", "LoanAmount")
	if !ok {
		t.Fatalf("expected path to resolve")
	}
	if value != "250000" {
		t.Fatalf("unexpected value: %v", value)
	}

	if _, ok := doc.Get("DEAL", "PARTIES"); ok {
		t.Fatalf("expected missing path to report not found")
	}
}

func TestListNormalizesSingleton(t *testing.T) {
	singleton := Doc{"LOAN": map[string]any{"SequenceNumber": "1"}}
	if got := singleton.List("LOAN"); len(got) != 1 {
		t.Fatalf("expected singleton to normalize to one element, got %d", len(got))
	}

	many := Doc{"LOAN": []any{
		map[string]any{"SequenceNumber": "1"},
		map[string]any{"SequenceNumber": "2"},
	}}
	if got := many.List("LOAN"); len(got) != 2 {
		t.Fatalf("expected two elements, got %d", len(got))
	}

	if got := (Doc{"LOAN": "scalar"}).List("LOAN"); got != nil {
		t.Fatalf("expected scalar to yield no list, got %v", got)
	}
}

func TestFloatCoercions(t *testing.T) {
	doc := Doc{"rate": "5.75", "amount": float64(250000), "bad": "n/a"}

	if f, ok := doc.Float("rate"); !ok || f != 5.75 {
		t.Fatalf("string rate: got %v %v", f, ok)
	}
	if f, ok := doc.Float("amount"); !ok || f != 250000 {
		t.Fatalf("numeric amount: got %v %v", f, ok)
	}
	if _, ok := doc.Float("bad"); ok {
		t.Fatalf("expected non-numeric string to fail coercion")
	}
}

func TestStringFormatsNumbersWithoutExponent(t *testing.T) {
	doc := Doc{"loanNumber": float64(1234567890)}
	if got := doc.String("loanNumber"); got != "1234567890" {
		t.Fatalf("unexpected formatting: %q", got)
	}
}

func TestFirstStringHonorsCandidateOrder(t *testing.T) {
	doc := Doc{"loanId": "B", "loanNumber": "A"}
	if got := doc.FirstString("loanNumber", "loanId"); got != "A" {
		t.Fatalf("expected first candidate to win, got %q", got)
	}
	if got := doc.FirstString("missing", "loanId"); got != "B" {
		t.Fatalf("expected fallback candidate, got %q", got)
	}
}

func TestBoolSpellings(t *testing.T) {
	doc := Doc{"a": "true", "b": "Y", "c": true, "d": "N"}
	for _, key := range []string{"a", "b", "c"} {
		if !doc.Bool(key) {
			t.Fatalf("expected %s to read true", key)
		}
	}
	if doc.Bool("d") {
		t.Fatalf("expected N to read false")
	}
}
