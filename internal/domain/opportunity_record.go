package domain

import (
	"encoding/json"
	"fmt"
)

// OpportunityRecord is the flattened archive form of an Opportunity.
// Corresponds to the opportunities table in PostgreSQL; the kind-specific
// payload is carried as JSON.
type OpportunityRecord struct {
	ID              string
	Kind            OpportunityKind
	EstimatedProfit float64
	Confidence      float64
	DetectedAt      int64 // Unix ms
	Payload         []byte
}

// NewOpportunityRecord flattens an opportunity for archival.
func NewOpportunityRecord(op Opportunity) (*OpportunityRecord, error) {
	payload, err := json.Marshal(op)
	if err != nil {
		return nil, fmt.Errorf("marshal opportunity payload: %w", err)
	}

	meta := op.Meta()
	return &OpportunityRecord{
		ID:              meta.ID,
		Kind:            meta.Kind,
		EstimatedProfit: meta.EstimatedProfit,
		Confidence:      meta.Confidence,
		DetectedAt:      meta.DetectedAt,
		Payload:         payload,
	}, nil
}
