package linkage

import (
	"context"
	"testing"
	"time"

	"github.com/loanxp/loantrack/internal/domain"
	"github.com/loanxp/loantrack/internal/extract"
	"github.com/loanxp/loantrack/internal/repository"
	"github.com/loanxp/loantrack/pkg/jsondoc"
)

func newTestLinker(t *testing.T) (*CommitmentLinker, *repository.MemoryTrackingRecordRepository, *repository.MemoryCommitmentRepository) {
	t.Helper()
	records := repository.NewMemoryTrackingRecordRepository()
	commitments := repository.NewMemoryCommitmentRepository()
	linker := NewCommitmentLinker(records, commitments, extract.New())
	linker.now = func() time.Time { return time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC) }
	return linker, records, commitments
}

func seedRecord(t *testing.T, records *repository.MemoryTrackingRecordRepository, xpLoanNumber string) domain.TrackingRecord {
	t.Helper()
	record := domain.NewTrackingRecord(xpLoanNumber, "t", time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC))
	created, err := records.Create(context.Background(), record)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	return created
}

func seedCommitment(t *testing.T, commitments *repository.MemoryCommitmentRepository, id string, payload jsondoc.Doc) {
	t.Helper()
	_, err := commitments.Put(context.Background(), domain.Commitment{
		ID:      id,
		Payload: payload,
	})
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
}

func TestLinkByDirectCommitmentID(t *testing.T) {
	linker, records, commitments := newTestLinker(t)
	ctx := context.Background()

	seedCommitment(t, commitments, "C-55", jsondoc.Doc{"investorName": "Freddie Mac"})
	record := seedRecord(t, records, "L-100")

	linked, err := linker.LinkToCommitment(ctx, record, jsondoc.Doc{"commitmentId": "C-55"})
	if err != nil {
		t.Fatalf("LinkToCommitment: %v", err)
	}

	if linked.ExternalIDs["commitmentId"] != "C-55" {
		t.Fatalf("commitmentId: %q", linked.ExternalIDs["commitmentId"])
	}
	if linked.ExternalIDs[domain.ExtInvestorName] != "Freddie Mac" {
		t.Fatalf("investor name: %q", linked.ExternalIDs[domain.ExtInvestorName])
	}
	if linked.Status.BoardingReadiness != domain.ReadinessCommitmentLinked {
		t.Fatalf("readiness: %s", linked.Status.BoardingReadiness)
	}

	link, ok := linked.MetaData[domain.SourceCommitment].(map[string]any)
	if !ok {
		t.Fatalf("commitment metaData descriptor missing: %v", linked.MetaData)
	}
	if link["matchedBy"] != "commitment_mapping" {
		t.Fatalf("matchedBy: %v", link["matchedBy"])
	}

	persisted, err := records.GetByXPLoanNumber(ctx, "L-100")
	if err != nil {
		t.Fatalf("GetByXPLoanNumber: %v", err)
	}
	if persisted.Status.BoardingReadiness != domain.ReadinessCommitmentLinked {
		t.Fatal("commitment link not persisted")
	}
}

func TestLinkByNestedCommitmentData(t *testing.T) {
	linker, records, commitments := newTestLinker(t)

	seedCommitment(t, commitments, "C-88", jsondoc.Doc{})
	record := seedRecord(t, records, "L-100")

	purchaseAdvice := jsondoc.Doc{
		"commitmentData": map[string]any{"commitmentNo": "C-88"},
	}
	linked, err := linker.LinkToCommitment(context.Background(), record, purchaseAdvice)
	if err != nil {
		t.Fatalf("LinkToCommitment: %v", err)
	}
	if linked.ExternalIDs["commitmentId"] != "C-88" {
		t.Fatalf("commitmentId: %q", linked.ExternalIDs["commitmentId"])
	}
}

func TestLinkByLoanNumberScan(t *testing.T) {
	linker, records, commitments := newTestLinker(t)

	seedCommitment(t, commitments, "C-77", jsondoc.Doc{"investorLoanNumber": "IL-9"})
	record := seedRecord(t, records, "L-100")

	linked, err := linker.LinkToCommitment(context.Background(), record, jsondoc.Doc{"loanNumber": "IL-9"})
	if err != nil {
		t.Fatalf("LinkToCommitment: %v", err)
	}
	if linked.ExternalIDs["commitmentId"] != "C-77" {
		t.Fatalf("commitmentId: %q", linked.ExternalIDs["commitmentId"])
	}
}

func TestLinkLeavesRecordUnchangedWithoutMatch(t *testing.T) {
	linker, records, _ := newTestLinker(t)
	record := seedRecord(t, records, "L-100")

	linked, err := linker.LinkToCommitment(context.Background(), record, jsondoc.Doc{"loanNumber": "L-100"})
	if err != nil {
		t.Fatalf("LinkToCommitment: %v", err)
	}
	if linked.Status.BoardingReadiness != domain.ReadinessDataReceived {
		t.Fatalf("readiness should be untouched, got %s", linked.Status.BoardingReadiness)
	}
	if _, ok := linked.ExternalIDs["commitmentId"]; ok {
		t.Fatal("commitmentId should not be set")
	}
}
