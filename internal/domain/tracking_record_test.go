package domain

import (
	"testing"
	"time"
)

func TestFillSlotFillsInOrderWithoutOverwriting(t *testing.T) {
	record := NewTrackingRecord("L-100", "t", time.Now())

	if !record.FillSlot(LoanNumberSlots, "A") {
		t.Fatal("first fill should write")
	}
	if !record.FillSlot(LoanNumberSlots, "B") {
		t.Fatal("second fill should write")
	}
	// Already recorded under a slot: no-op.
	if record.FillSlot(LoanNumberSlots, "A") {
		t.Fatal("duplicate value must not fill another slot")
	}
	if !record.FillSlot(LoanNumberSlots, "C") {
		t.Fatal("third fill should write")
	}
	// All slots taken.
	if record.FillSlot(LoanNumberSlots, "D") {
		t.Fatal("overflow value must be dropped")
	}

	if record.ExternalIDs["correspondentLoanNumber"] != "A" ||
		record.ExternalIDs["aggregatorLoanNumber"] != "B" ||
		record.ExternalIDs["investorLoanNumber"] != "C" {
		t.Fatalf("slots: %v", record.ExternalIDs)
	}
}

func TestFillSlotIgnoresEmptyValue(t *testing.T) {
	record := NewTrackingRecord("L-100", "t", time.Now())
	if record.FillSlot(CommitmentIDSlots, "") {
		t.Fatal("empty value must not fill a slot")
	}
}

func TestSetLinkReplacesCommitmentAppendsOthers(t *testing.T) {
	record := NewTrackingRecord("L-100", "t", time.Now())

	record.SetLink(SourceCommitment, map[string]any{"v": 1})
	record.SetLink(SourceCommitment, map[string]any{"v": 2})
	link, ok := record.MetaData[SourceCommitment].(map[string]any)
	if !ok || link["v"] != 2 {
		t.Fatalf("commitment link should be replaced, got %v", record.MetaData[SourceCommitment])
	}

	record.SetLink(SourcePurchaseAdvice, map[string]any{"v": 1})
	record.SetLink(SourcePurchaseAdvice, map[string]any{"v": 2})
	links, ok := record.MetaData[SourcePurchaseAdvice].([]any)
	if !ok || len(links) != 2 {
		t.Fatalf("purchase advice links should append, got %v", record.MetaData[SourcePurchaseAdvice])
	}

	if record.DistinctSources() != 2 {
		t.Fatalf("distinct sources: %d", record.DistinctSources())
	}
}

func TestSLADueFor(t *testing.T) {
	detected := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	if got := SLADueFor(SeverityHigh, detected); got != detected.Add(24*time.Hour) {
		t.Fatalf("high SLA: %v", got)
	}
	if got := SLADueFor(SeverityMedium, detected); got != detected.Add(72*time.Hour) {
		t.Fatalf("medium SLA: %v", got)
	}
	if got := SLADueFor(SeverityLow, detected); got != detected.Add(72*time.Hour) {
		t.Fatalf("low SLA: %v", got)
	}
}

func TestOverdueOnlyForOpenExceptions(t *testing.T) {
	now := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	exception := Exception{Status: ExceptionOpen, SLADue: now.Add(-time.Minute)}
	if !exception.Overdue(now) {
		t.Fatal("open exception past SLA should be overdue")
	}
	exception.Status = ExceptionResolved
	if exception.Overdue(now) {
		t.Fatal("resolved exception is never overdue")
	}
}
