package domain

// Identifiers holds the candidate identifiers discovered in one document,
// de-duplicated per class with discovery order preserved. Downstream
// matching treats earlier entries as higher priority.
type Identifiers struct {
	CommitmentIDs   []string `json:"commitmentIds"`
	LoanNumbers     []string `json:"loanNumbers"`
	ServicerNumbers []string `json:"servicerNumbers"`
	InvestorName    string   `json:"investorName,omitempty"`
}

// Empty reports whether no identifier of any class was discovered.
func (i Identifiers) Empty() bool {
	return len(i.CommitmentIDs) == 0 && len(i.LoanNumbers) == 0 && len(i.ServicerNumbers) == 0
}

// LockKeys returns every identifier value, used to serialize concurrent
// upserts that could resolve to the same loan.
func (i Identifiers) LockKeys() []string {
	keys := make([]string, 0, len(i.CommitmentIDs)+len(i.LoanNumbers)+len(i.ServicerNumbers))
	keys = append(keys, i.LoanNumbers...)
	keys = append(keys, i.CommitmentIDs...)
	keys = append(keys, i.ServicerNumbers...)
	return keys
}
