// Package uldd holds shared accessors for ULDD/MISMO-style loan extracts.
package uldd

import "github.com/loanxp/loantrack/pkg/jsondoc"

// Loans returns the DEAL.LOANS.LOAN entries, normalizing the singleton case.
func Loans(doc jsondoc.Doc) []jsondoc.Doc {
	return doc.List("DEAL", "LOANS", "LOAN")
}

// SubjectLoan returns the loan entry with @LoanRoleType == "SubjectLoan".
// Falls back to the first loan when no role attribute is present, which
// matches how single-loan extracts arrive from most sellers.
func SubjectLoan(doc jsondoc.Doc) (jsondoc.Doc, bool) {
	loans := Loans(doc)
	if len(loans) == 0 {
		return nil, false
	}
	for _, loan := range loans {
		if loan.String("@LoanRoleType") == "SubjectLoan" {
			return loan, true
		}
	}
	return loans[0], true
}

// comprehensiveFields is the fixed probe set for the "comprehensive ULDD"
// predicate, rooted at the subject loan.
var comprehensiveFields = [][]string{
	{"LOAN_DETAIL", "LoanAmount"},
	{"TERMS_OF_MORTGAGE", "NoteRatePercent"},
	{"TERMS_OF_MORTGAGE", "NoteAmount"},
	{"LTV", "LTVRatioPercent"},
	{"AMORTIZATION", "AmortizationType"},
	{"LOAN_DETAIL", "EscrowIndicator"},
}

// IsComprehensive reports whether the extract carries enough of the subject
// loan's terms to board from: at least four of the fixed field set, or
// LoanAmount plus NoteRatePercent together.
func IsComprehensive(doc jsondoc.Doc) bool {
	loan, ok := SubjectLoan(doc)
	if !ok {
		return false
	}

	present := 0
	for _, path := range comprehensiveFields {
		if loan.String(path...) != "" {
			present++
		}
	}
	if present >= 4 {
		return true
	}
	return loan.String("LOAN_DETAIL", "LoanAmount") != "" &&
		loan.String("TERMS_OF_MORTGAGE", "NoteRatePercent") != ""
}
