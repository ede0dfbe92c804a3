package rules

import (
	"fmt"
	"log"

	"github.com/loanxp/loantrack/internal/domain"
)

// Rule pack names.
const (
	PackDataCompleteness   = "data_completeness"
	PackRateParity         = "rate_parity"
	PackLTVValidation      = "ltv_validation"
	PackEscrowRequirements = "escrow_requirements"
	PackComplianceChecks   = "compliance_checks"
)

// PackResult is the outcome of evaluating one pack against one snapshot.
type PackResult struct {
	Pack       string                 `json:"pack"`
	Violations []domain.RuleViolation `json:"violations"`
}

type packFunc func(Snapshot) []domain.RuleViolation

// Engine evaluates snapshots against named rule packs. Packs are pure and
// independently re-runnable; a failing or unknown pack never aborts the rest
// of the run.
type Engine struct {
	packs map[string]packFunc
	order []string
}

// NewEngine registers the built-in packs.
func NewEngine() *Engine {
	e := &Engine{packs: make(map[string]packFunc)}
	e.register(PackDataCompleteness, evaluateDataCompleteness)
	e.register(PackRateParity, evaluateRateParity)
	e.register(PackLTVValidation, evaluateLTVValidation)
	e.register(PackEscrowRequirements, evaluateEscrowRequirements)
	e.register(PackComplianceChecks, evaluateComplianceChecks)
	return e
}

func (e *Engine) register(name string, fn packFunc) {
	e.packs[name] = fn
	e.order = append(e.order, name)
}

// DefaultPacks returns every registered pack in registration order.
func (e *Engine) DefaultPacks() []string {
	packs := make([]string, len(e.order))
	copy(packs, e.order)
	return packs
}

// Evaluate runs the named packs against the snapshot. A nil or empty pack
// list runs the default set. An unrecognized pack name yields a single
// error-shaped violation for that pack instead of failing the whole run.
func (e *Engine) Evaluate(snapshot Snapshot, packs []string) []PackResult {
	if len(packs) == 0 {
		packs = e.DefaultPacks()
	}

	results := make([]PackResult, 0, len(packs))
	for _, name := range packs {
		fn, ok := e.packs[name]
		if !ok {
			log.Printf("[RULES] unknown rule pack %q requested for %s", name, snapshot.XPLoanNumber)
			results = append(results, PackResult{
				Pack:       name,
				Violations: []domain.RuleViolation{unknownPackViolation(name)},
			})
			continue
		}
		results = append(results, PackResult{Pack: name, Violations: e.run(name, fn, snapshot)})
	}
	return results
}

// run isolates a pack so a panic inside one check surfaces as an
// error-shaped violation rather than aborting the other packs.
func (e *Engine) run(name string, fn packFunc, snapshot Snapshot) (violations []domain.RuleViolation) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("[RULES] pack %s panicked for %s: %v", name, snapshot.XPLoanNumber, r)
			violations = []domain.RuleViolation{{
				RuleID:      name + ":pack_error",
				RuleName:    "Rule pack failed",
				Severity:    domain.SeverityHigh,
				Description: fmt.Sprintf("rule pack %s failed to evaluate", name),
				Evidence:    map[string]any{"pack": name, "error": fmt.Sprint(r)},
			}}
		}
	}()
	return fn(snapshot)
}

func unknownPackViolation(name string) domain.RuleViolation {
	return domain.RuleViolation{
		RuleID:      name + ":unknown_pack",
		RuleName:    "Unknown rule pack",
		Severity:    domain.SeverityHigh,
		Description: fmt.Sprintf("rule pack %q is not registered: %v", name, domain.ErrUnknownRulePack),
		Evidence:    map[string]any{"pack": name},
	}
}
