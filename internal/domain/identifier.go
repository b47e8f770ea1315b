package domain

import "time"

type Kind string

const (
	KindPublication       Kind = "publication"
	KindResearcherProfile Kind = "researcher-profile"
)

type Status string

const (
	StatusPending Status = "pending"
	StatusActive  Status = "active"
	StatusRevoked Status = "revoked"
)

// Identifier is a registered DOCI record. Prefix/Suffix form the composite
// code; Owner is immutable after creation; Revoked rows are kept forever.
type Identifier struct {
	Prefix      string         `json:"prefix"`
	Suffix      string         `json:"suffix"`
	Code        string         `json:"code"`
	Kind        Kind           `json:"kind"`
	Owner       string         `json:"owner"`
	Status      Status         `json:"status"`
	Meta        map[string]any `json:"meta"`
	MetadataRef string         `json:"metadataRef"`
	ChainRef    *string        `json:"chainRef,omitempty"`
	Policy      *string        `json:"policy,omitempty"`
	CreatedAt   time.Time      `json:"createdAt"`
	UpdatedAt   time.Time      `json:"updatedAt"`
}

// Resolution is what the resolve endpoint returns for an Active identifier.
type Resolution struct {
	Kind   Kind       `json:"kind"`
	Record Identifier `json:"record"`
}

// ResolutionEvent is an append-only usage log entry.
type ResolutionEvent struct {
	ID        string    `json:"id"`
	Code      string    `json:"code"`
	Requester string    `json:"requester,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// KindForPrefix applies the tie-break rule: the configured researcher prefix
// always names researcher profiles, everything else is a publication.
func KindForPrefix(prefix, researcherPrefix string) Kind {
	if prefix == researcherPrefix {
		return KindResearcherProfile
	}
	return KindPublication
}
