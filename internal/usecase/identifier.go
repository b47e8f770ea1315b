package usecase

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/pkg/errors"

	doci "github.com/fronsciers/doci-gateway"
	"github.com/fronsciers/doci-gateway/internal/domain"
	"github.com/fronsciers/doci-gateway/policy"
)

// RegisterInput is the validated input for minting a new identifier.
type RegisterInput struct {
	Kind   string
	Prefix string
	Suffix string // optional; allocated when empty
	Owner  string
	Meta   map[string]any
	Anchor bool // anchor on the external ledger during registration
}

type IdentifierUsecase struct {
	config  domain.Config
	repo    IdentifierRepository
	events  EventRepository
	ledger  LedgerAuthority
	content ContentStore
	signal  EventPublisher
}

func NewIdentifierUsecase(
	config domain.Config,
	repo IdentifierRepository,
	events EventRepository,
	ledger LedgerAuthority,
	content ContentStore,
	signal EventPublisher,
) *IdentifierUsecase {
	return &IdentifierUsecase{
		config:  config,
		repo:    repo,
		events:  events,
		ledger:  ledger,
		content: content,
		signal:  signal,
	}
}

func parseKind(s string) (domain.Kind, error) {
	switch domain.Kind(s) {
	case domain.KindPublication:
		return domain.KindPublication, nil
	case domain.KindResearcherProfile:
		return domain.KindResearcherProfile, nil
	default:
		return "", domain.ValidationError{Field: "kind", Message: "must be publication or researcher-profile"}
	}
}

func (uc *IdentifierUsecase) validate(input RegisterInput, kind domain.Kind) error {
	if !doci.ValidPrefix(input.Prefix) {
		return domain.ValidationError{Field: "namespacePrefix", Message: "invalid prefix"}
	}
	if input.Suffix != "" && !doci.ValidSuffix(input.Suffix) {
		return domain.ValidationError{Field: "suffix", Message: "invalid suffix"}
	}

	// the researcher prefix and the researcher kind imply each other
	if kind != domain.KindForPrefix(input.Prefix, uc.config.ResearcherPrefix) {
		return domain.ValidationError{Field: "kind", Message: "kind does not match namespace prefix"}
	}

	switch kind {
	case domain.KindPublication:
		if s, ok := input.Meta["title"].(string); !ok || s == "" {
			return domain.ValidationError{Field: "metadata.title", Message: "required for publications"}
		}
		if authors, ok := input.Meta["authors"].([]any); !ok || len(authors) == 0 {
			return domain.ValidationError{Field: "metadata.authors", Message: "required for publications"}
		}
	case domain.KindResearcherProfile:
		if s, ok := input.Meta["name"].(string); !ok || s == "" {
			return domain.ValidationError{Field: "metadata.name", Message: "required for researcher profiles"}
		}
	}
	return nil
}

func (uc *IdentifierUsecase) Register(ctx context.Context, input RegisterInput) (domain.Identifier, error) {
	if input.Owner == "" {
		return domain.Identifier{}, domain.UnauthorizedError{Message: "authentication required"}
	}

	kind, err := parseKind(input.Kind)
	if err != nil {
		return domain.Identifier{}, err
	}
	if err := uc.validate(input, kind); err != nil {
		return domain.Identifier{}, err
	}

	metaBytes, err := json.Marshal(input.Meta)
	if err != nil {
		return domain.Identifier{}, errors.Wrap(err, "failed to serialize metadata")
	}
	metadataRef, err := uc.content.Put(ctx, metaBytes)
	if err != nil {
		return domain.Identifier{}, errors.Wrap(err, "content store put failed")
	}

	status := domain.StatusActive
	if input.Anchor {
		status = domain.StatusPending
	}

	record := domain.Identifier{
		Prefix:      input.Prefix,
		Kind:        kind,
		Owner:       input.Owner,
		Status:      status,
		Meta:        input.Meta,
		MetadataRef: metadataRef,
	}

	var created domain.Identifier
	if input.Suffix != "" {
		record.Suffix = input.Suffix
		record.Code = doci.ComposeCode(input.Prefix, input.Suffix)
		created, err = uc.repo.Put(ctx, record)
		if err != nil {
			// caller-chosen suffix: collision is permanent, no retry
			return domain.Identifier{}, err
		}
	} else {
		created, err = uc.registerAllocated(ctx, record)
		if err != nil {
			return domain.Identifier{}, err
		}
	}

	if input.Anchor {
		created = uc.anchor(ctx, created, metadataRef)
	}

	uc.publish(ctx, domain.EventTypeRegister, created)
	return created, nil
}

// registerAllocated allocates a suffix and inserts, retrying a bounded
// number of times since a concurrent registration can win the composite-code
// unique constraint between allocation and insert.
func (uc *IdentifierUsecase) registerAllocated(ctx context.Context, record domain.Identifier) (domain.Identifier, error) {
	var lastErr error
	for range domain.SuffixAllocationRetries {
		suffix, err := uc.repo.AllocateSuffix(ctx, record.Prefix)
		if err != nil {
			return domain.Identifier{}, errors.Wrap(err, "suffix allocation failed")
		}

		record.Suffix = suffix
		record.Code = doci.ComposeCode(record.Prefix, suffix)

		created, err := uc.repo.Put(ctx, record)
		if err == nil {
			return created, nil
		}
		if !errors.Is(err, domain.ErrDuplicateCode) {
			return domain.Identifier{}, err
		}
		lastErr = err
	}
	// the collision is the gateway's to resolve, not the caller's: after
	// bounded retries it surfaces as an internal failure, not a duplicate
	return domain.Identifier{}, errors.Errorf("suffix allocation kept colliding after %d attempts: %v",
		domain.SuffixAllocationRetries, lastErr)
}

// anchor records the identifier on the external ledger. Failure leaves the
// identifier Pending so anchoring can be retried; registration itself
// already succeeded.
func (uc *IdentifierUsecase) anchor(ctx context.Context, record domain.Identifier, metadataRef string) domain.Identifier {
	txRef, err := uc.ledger.Anchor(ctx, doci.Anchor{
		Prefix:      record.Prefix,
		Suffix:      record.Suffix,
		Kind:        string(record.Kind),
		Owner:       record.Owner,
		MetadataRef: metadataRef,
	})
	if err != nil {
		slog.WarnContext(ctx, "ledger anchoring failed, identifier left pending",
			slog.String("code", record.Code),
			slog.String("error", err.Error()),
		)
		return record
	}

	if err := uc.repo.SetChainRef(ctx, record.Prefix, record.Suffix, txRef); err != nil {
		slog.WarnContext(ctx, "failed to store chain ref",
			slog.String("code", record.Code),
			slog.String("error", err.Error()),
		)
		return record
	}

	record.ChainRef = &txRef
	record.Status = domain.StatusActive
	return record
}

// immutableFields may never appear in an update patch.
var immutableFields = []string{"prefix", "suffix", "code", "kind", "owner", "ownerUserId"}

func (uc *IdentifierUsecase) Update(ctx context.Context, prefix, suffix, requester string, patch map[string]any) (domain.Identifier, error) {
	if requester == "" {
		return domain.Identifier{}, domain.UnauthorizedError{Message: "authentication required"}
	}

	for _, field := range immutableFields {
		if _, present := patch[field]; present {
			return domain.Identifier{}, domain.ValidationError{Field: field, Message: "field is immutable"}
		}
	}

	record, err := uc.repo.Get(ctx, prefix, suffix)
	if err != nil {
		return domain.Identifier{}, err
	}

	if !uc.authorized(record, requester, "update") {
		return domain.Identifier{}, domain.UnauthorizedError{Message: "only the owner or a delegated account may update"}
	}

	meta := make(map[string]any, len(record.Meta)+len(patch))
	for k, v := range record.Meta {
		meta[k] = v
	}
	for k, v := range patch {
		if v == nil {
			delete(meta, k)
			continue
		}
		meta[k] = v
	}

	metaBytes, err := json.Marshal(meta)
	if err != nil {
		return domain.Identifier{}, errors.Wrap(err, "failed to serialize metadata")
	}
	metadataRef, err := uc.content.Put(ctx, metaBytes)
	if err != nil {
		return domain.Identifier{}, errors.Wrap(err, "content store put failed")
	}

	return uc.repo.UpdateMeta(ctx, prefix, suffix, meta, metadataRef)
}

func (uc *IdentifierUsecase) Revoke(ctx context.Context, prefix, suffix, requester string) error {
	if requester == "" {
		return domain.UnauthorizedError{Message: "authentication required"}
	}

	record, err := uc.repo.Get(ctx, prefix, suffix)
	if err != nil {
		return err
	}

	// revocation is never delegated
	if record.Owner != requester {
		return domain.UnauthorizedError{Message: "only the owner may revoke"}
	}

	if record.Status == domain.StatusRevoked {
		return nil
	}

	if err := uc.repo.SetStatus(ctx, prefix, suffix, domain.StatusRevoked); err != nil {
		return err
	}

	record.Status = domain.StatusRevoked
	uc.publish(ctx, domain.EventTypeRevoke, record)
	return nil
}

// authorized applies the owner-only default, widened by the identifier's
// access policy document when one is attached.
func (uc *IdentifierUsecase) authorized(record domain.Identifier, requester, action string) bool {
	isOwner := record.Owner == requester
	if record.Policy == nil {
		return isOwner
	}

	var doc policy.PolicyDocument
	if err := json.Unmarshal([]byte(*record.Policy), &doc); err != nil {
		slog.Warn("unparseable policy document, falling back to owner-only",
			slog.String("code", record.Code),
			slog.String("error", err.Error()),
		)
		return isOwner
	}

	return policy.Allows(doc, policy.RequestContext{
		Requester: requester,
		Owner:     record.Owner,
		Resource: map[string]any{
			"code":   record.Code,
			"kind":   string(record.Kind),
			"status": string(record.Status),
		},
	}, action, isOwner)
}

func (uc *IdentifierUsecase) publish(ctx context.Context, eventType string, record domain.Identifier) {
	if uc.signal == nil {
		return
	}
	err := uc.signal.Publish(ctx, domain.EventChannel, doci.Event{
		Type:      eventType,
		Code:      record.Code,
		Kind:      string(record.Kind),
		Timestamp: time.Now().UTC(),
	})
	if err != nil {
		slog.WarnContext(ctx, "event publish failed",
			slog.String("code", record.Code),
			slog.String("error", err.Error()),
		)
	}
}
