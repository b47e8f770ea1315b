package usecase

import (
	"context"

	doci "github.com/fronsciers/doci-gateway"
	"github.com/fronsciers/doci-gateway/internal/domain"
)

// IdentifierRepository defines persistence for registered identifiers.
// Put fails with domain.DuplicateCodeError when the composite code exists.
// AllocateSuffix is serialized per-prefix at the storage layer.
type IdentifierRepository interface {
	Get(ctx context.Context, prefix, suffix string) (domain.Identifier, error)
	Put(ctx context.Context, identifier domain.Identifier) (domain.Identifier, error)
	AllocateSuffix(ctx context.Context, prefix string) (string, error)
	UpdateMeta(ctx context.Context, prefix, suffix string, meta map[string]any, metadataRef string) (domain.Identifier, error)
	SetStatus(ctx context.Context, prefix, suffix string, status domain.Status) error
	SetChainRef(ctx context.Context, prefix, suffix, txRef string) error
}

// EventRepository stores the append-only resolution log.
type EventRepository interface {
	Append(ctx context.Context, event domain.ResolutionEvent) error
	Recent(ctx context.Context, code string, limit int) ([]domain.ResolutionEvent, error)
	Count(ctx context.Context, code string) (int64, error)
}

// LedgerAuthority is the external on-chain registry. Lookup is tri-state:
// (anchor, true, nil) when anchored, (_, false, nil) when confirmed absent,
// and a non-nil error when the authority could not be consulted.
type LedgerAuthority interface {
	Lookup(ctx context.Context, prefix, suffix string) (doci.Anchor, bool, error)
	Anchor(ctx context.Context, anchor doci.Anchor) (string, error)
}

// ContentStore is the content-addressed metadata store.
type ContentStore interface {
	Put(ctx context.Context, data []byte) (string, error)
	Get(ctx context.Context, ref string) ([]byte, error)
}

// EventPublisher broadcasts gateway events to realtime subscribers.
type EventPublisher interface {
	Publish(ctx context.Context, channel string, event doci.Event) error
}

// EscrowRepository persists escrow accounts. Transition loads the account
// under a storage-level lock, applies fn, and persists the result, so
// concurrent transitions on one account serialize.
type EscrowRepository interface {
	Create(ctx context.Context, account domain.EscrowAccount) (domain.EscrowAccount, error)
	Get(ctx context.Context, id string) (domain.EscrowAccount, error)
	Transition(ctx context.Context, id string, fn func(*domain.EscrowAccount) error) (domain.EscrowAccount, error)
}
