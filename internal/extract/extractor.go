// Package extract pulls candidate identifiers out of arbitrarily shaped
// loan documents. Upstream systems disagree on field naming, so each
// identifier class is probed through an ordered candidate list; discovery
// order is preserved for downstream match priority.
package extract

import (
	"github.com/loanxp/loantrack/internal/domain"
	"github.com/loanxp/loantrack/pkg/jsondoc"
)

// maskedValue is the placeholder upstream systems substitute for
// identifiers they are not allowed to disclose. Always discarded.
const maskedValue = "XXXXXXXX"

// Candidate field names per identifier class, probed in order at the
// document's top level. Keep this table as the single source of truth; do
// not scatter field literals through the codebase.
var (
	commitmentFields = []string{
		"commitmentId",
		"commitmentNo",
		"commitment_id",
		"InvestorCommitmentIdentifier",
		"investorCommitmentIdentifier",
	}

	loanNumberFields = []string{
		"lenderLoanNo",
		"fannieMaeLn",
		"loanNumber",
		"loanId",
		"originalLoanNumber",
		"investorLoanNumber",
		"InvestorLoanIdentifier",
		"SellerLoanIdentifier",
		"correspondentLoanNumber",
		"aggregatorLoanNumber",
	}

	servicerFields = []string{
		"servicerNumber",
		"servicer_number",
	}

	investorNameFields = []string{
		"investorName",
		"investor",
	}
)

// Extractor discovers identifiers in raw documents. Stateless; a single
// instance is shared across requests.
type Extractor struct{}

// New creates an Extractor.
func New() *Extractor {
	return &Extractor{}
}

// Extract scans the document for commitment ids, loan numbers and servicer
// numbers. It never errors; absent fields simply contribute nothing.
func (e *Extractor) Extract(doc jsondoc.Doc) domain.Identifiers {
	var ids domain.Identifiers
	seen := map[string]map[string]struct{}{
		"commitment": {},
		"loan":       {},
		"servicer":   {},
	}

	add := func(class string, target *[]string, value string) {
		if value == "" || value == maskedValue {
			return
		}
		if _, dup := seen[class][value]; dup {
			return
		}
		seen[class][value] = struct{}{}
		*target = append(*target, value)
	}
	addCommitment := func(v string) { add("commitment", &ids.CommitmentIDs, v) }
	addLoan := func(v string) { add("loan", &ids.LoanNumbers, v) }
	addServicer := func(v string) { add("servicer", &ids.ServicerNumbers, v) }

	// Top-level candidates.
	for _, field := range commitmentFields {
		addCommitment(doc.String(field))
	}
	for _, field := range loanNumberFields {
		addLoan(doc.String(field))
	}
	for _, field := range servicerFields {
		addServicer(doc.String(field))
	}
	ids.InvestorName = doc.FirstString(investorNameFields...)

	// Known nested shapes.
	addLoan(doc.String("loanIdentifier", "originalLoanNumber"))

	for _, loan := range doc.List("DEAL", "LOANS", "LOAN") {
		for _, ident := range loan.List("LOAN_IDENTIFIERS", "LOAN_IDENTIFIER") {
			addCommitment(ident.String("InvestorCommitmentIdentifier"))
			addLoan(ident.String("InvestorLoanIdentifier"))
			addLoan(ident.String("SellerLoanIdentifier"))
			addLoan(ident.String("EXTENSION", "OTHER", "LOAN_IDENTIFIER_EXTENSION", "LoanIdentifier"))
		}
	}

	return ids
}
