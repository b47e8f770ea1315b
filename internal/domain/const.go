package domain

const (
	RequesterAccountCtxKey = "doci-requesterAccount"
	RequesterTokenIDCtxKey = "doci-requesterTokenId"
)

const (
	// EventChannel is the redis pubsub channel carrying doci.Event payloads.
	EventChannel = "doci:events"

	EventTypeRegister = "register"
	EventTypeResolve  = "resolve"
	EventTypeRevoke   = "revoke"
)

// SuffixAllocationRetries bounds reallocation attempts when concurrent
// registrations collide on an allocated suffix.
const SuffixAllocationRetries = 3
