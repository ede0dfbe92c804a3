package domain

import (
	"fmt"
	"time"
)

// BoardingReadiness summarizes how much of the required source data has been
// reconciled for a loan.
type BoardingReadiness string

const (
	ReadinessDataReceived           BoardingReadiness = "DataReceived"
	ReadinessPurchaseAdviceReceived BoardingReadiness = "PurchaseAdviceReceived"
	ReadinessULDDReceived           BoardingReadiness = "ULDDReceived"
	ReadinessCommitmentLinked       BoardingReadiness = "CommitmentLinked"
	ReadinessReadyToBoard           BoardingReadiness = "ReadyToBoard"
)

// Source types for inbound documents.
const (
	SourceCommitment     = "commitment"
	SourcePurchaseAdvice = "purchase_advice"
	SourceLoanData       = "loan_data"
	SourceDocuments      = "documents"
)

// External id slot names, in fill order per identifier class. Merges fill
// the next empty slot and never overwrite a populated one.
var (
	CommitmentIDSlots = []string{"commitmentId", "investorCommitmentId"}
	LoanNumberSlots   = []string{"correspondentLoanNumber", "aggregatorLoanNumber", "investorLoanNumber"}
	ServicerSlots     = []string{"servicerNumber"}
)

// ExtInvestorName keys the investor display name inside externalIds.
const ExtInvestorName = "investorName"

// RecordStatus carries the evaluated state of a tracking record.
type RecordStatus struct {
	BoardingReadiness BoardingReadiness `json:"boardingReadiness"`
	LastEvaluated     time.Time         `json:"lastEvaluated"`
}

// TrackingRecord is the canonical, merged representation of one loan across
// all ingested source documents. xpLoanNumber is immutable once created.
type TrackingRecord struct {
	XPLoanNumber string            `json:"xpLoanNumber"`
	TenantID     string            `json:"tenantId"`
	ExternalIDs  map[string]string `json:"externalIds"`
	Status       RecordStatus      `json:"status"`
	MetaData     map[string]any    `json:"metaData"`
	CreatedAt    time.Time         `json:"createdAt"`
	UpdatedAt    time.Time         `json:"updatedAt"`
}

// NewTrackingRecord creates an empty record keyed by xpLoanNumber.
func NewTrackingRecord(xpLoanNumber, tenantID string, now time.Time) TrackingRecord {
	return TrackingRecord{
		XPLoanNumber: xpLoanNumber,
		TenantID:     tenantID,
		ExternalIDs:  make(map[string]string),
		Status: RecordStatus{
			BoardingReadiness: ReadinessDataReceived,
			LastEvaluated:     now,
		},
		MetaData:  make(map[string]any),
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// SyntheticLoanNumber generates the XP<unix-ms> fallback used when no loan
// number can be extracted from a document.
func SyntheticLoanNumber(now time.Time) string {
	return fmt.Sprintf("XP%d", now.UnixMilli())
}

// NewDocumentID generates the per-document id <xpLoanNumber>_<timestamp>.
func NewDocumentID(xpLoanNumber string, now time.Time) string {
	return fmt.Sprintf("%s_%d", xpLoanNumber, now.UnixMilli())
}

// DocumentLink builds the link descriptor stored under metaData for an
// ingested document.
func DocumentLink(collection, documentID, sourceFileID string) map[string]any {
	link := map[string]any{
		"links": map[string]any{
			"documentDb": map[string]any{
				"collection": collection,
				"documentId": documentID,
			},
		},
	}
	if sourceFileID != "" {
		link["sourceFile"] = "stage/" + sourceFileID
	}
	return link
}

// CommitmentMappingLink builds the descriptor written when a purchase-advice
// record is associated with a stored commitment.
func CommitmentMappingLink(commitmentID string) map[string]any {
	return map[string]any{
		"links": map[string]any{
			"documentDb": map[string]any{
				"collection": "commitments",
				"documentId": commitmentID,
			},
		},
		"matchedBy": "commitment_mapping",
	}
}

// IsListSource reports whether a source type maps 1:n onto a record.
// Commitments are 1:1 and replaced on update; everything else appends.
func IsListSource(sourceType string) bool {
	return sourceType != SourceCommitment
}

// SetLink writes the metaData entry for a source type, replacing a 1:1
// descriptor or appending to a 1:n descriptor list.
func (r *TrackingRecord) SetLink(sourceType string, link map[string]any) {
	if r.MetaData == nil {
		r.MetaData = make(map[string]any)
	}
	if !IsListSource(sourceType) {
		r.MetaData[sourceType] = link
		return
	}

	existing, _ := r.MetaData[sourceType].([]any)
	r.MetaData[sourceType] = append(existing, link)
}

// DistinctSources counts the distinct source types present under metaData.
func (r *TrackingRecord) DistinctSources() int {
	return len(r.MetaData)
}

// FillSlot writes value into the first empty slot of the given class unless
// the value is already recorded under any slot of that class. Returns true
// when a slot was written.
func (r *TrackingRecord) FillSlot(slots []string, value string) bool {
	if value == "" {
		return false
	}
	if r.ExternalIDs == nil {
		r.ExternalIDs = make(map[string]string)
	}
	for _, slot := range slots {
		if r.ExternalIDs[slot] == value {
			return false
		}
	}
	for _, slot := range slots {
		if r.ExternalIDs[slot] == "" {
			r.ExternalIDs[slot] = value
			return true
		}
	}
	return false
}
