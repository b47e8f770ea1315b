package doci

import (
	"time"
)

// Anchor is the external ledger's record of an identifier. The ledger is the
// authority of last resort on the resolve path and the immutability proof for
// registered identifiers.
type Anchor struct {
	Prefix      string `json:"prefix"`
	Suffix      string `json:"suffix"`
	Kind        string `json:"kind"`
	Owner       string `json:"owner"`
	MetadataRef string `json:"metadataRef"`
	TxRef       string `json:"txRef"`
}

// Event is broadcast on the realtime channel whenever an identifier is
// registered, resolved, or revoked.
type Event struct {
	Type      string    `json:"type"` // register, resolve, revoke
	Code      string    `json:"code"`
	Kind      string    `json:"kind"`
	Timestamp time.Time `json:"timestamp"`
}

type DociEndpoint struct {
	Template string    `json:"template"`
	Method   string    `json:"method"`
	Query    *[]string `json:"query,omitempty"`
}

type WellKnownDoci struct {
	Version          string                  `json:"version"`
	Domain           string                  `json:"domain"`
	GatewayAccount   string                  `json:"gatewayAccount"`
	ResearcherPrefix string                  `json:"researcherPrefix"`
	Endpoints        map[string]DociEndpoint `json:"endpoints"`
}
