package usecase

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/pkg/errors"

	doci "github.com/fronsciers/doci-gateway"
	"github.com/fronsciers/doci-gateway/dcid"
	"github.com/fronsciers/doci-gateway/internal/domain"
)

// Resolve looks up a composite code. The local store is tried first; on a
// confirmed miss the external ledger is consulted and a hit is backfilled
// into the store as a cache. Only Active identifiers resolve.
func (uc *IdentifierUsecase) Resolve(ctx context.Context, prefix, suffix, requester string) (domain.Resolution, error) {
	record, err := uc.repo.Get(ctx, prefix, suffix)
	if err == nil {
		if record.Status != domain.StatusActive {
			// revoked or pending content must not leak
			return domain.Resolution{}, domain.NotFoundError{Resource: "identifier"}
		}
		uc.logResolution(ctx, record, requester)
		return domain.Resolution{Kind: record.Kind, Record: record}, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return domain.Resolution{}, errors.Wrap(err, "identifier lookup failed")
	}

	record, err = uc.resolveFromLedger(ctx, prefix, suffix)
	if err != nil {
		return domain.Resolution{}, err
	}

	uc.logResolution(ctx, record, requester)
	return domain.Resolution{Kind: record.Kind, Record: record}, nil
}

// resolveFromLedger is the fallback chain behind a local miss: ledger anchor
// lookup, metadata fetch from the content store, then store backfill. Each
// step distinguishes "confirmed absent" from "could not be determined".
func (uc *IdentifierUsecase) resolveFromLedger(ctx context.Context, prefix, suffix string) (domain.Identifier, error) {
	anchor, found, err := uc.ledger.Lookup(ctx, prefix, suffix)
	if err != nil {
		return domain.Identifier{}, errors.Wrap(err, "ledger lookup failed")
	}
	if !found {
		return domain.Identifier{}, domain.NotFoundError{Resource: "identifier"}
	}

	content, err := uc.content.Get(ctx, anchor.MetadataRef)
	if err != nil {
		return domain.Identifier{}, errors.Wrap(err, "content store fetch failed")
	}

	var meta map[string]any
	if err := json.Unmarshal(content, &meta); err != nil {
		return domain.Identifier{}, errors.Wrap(err, "anchored metadata is not valid json")
	}

	txRef := anchor.TxRef
	record := domain.Identifier{
		Prefix:      prefix,
		Suffix:      suffix,
		Code:        doci.ComposeCode(prefix, suffix),
		Kind:        domain.KindForPrefix(prefix, uc.config.ResearcherPrefix),
		Owner:       anchor.Owner,
		Status:      domain.StatusActive,
		Meta:        meta,
		MetadataRef: anchor.MetadataRef,
		ChainRef:    &txRef,
	}

	created, err := uc.repo.Put(ctx, record)
	if err != nil {
		if errors.Is(err, domain.ErrDuplicateCode) {
			// lost a backfill race; the winner's row is authoritative
			return uc.repo.Get(ctx, prefix, suffix)
		}
		return domain.Identifier{}, errors.Wrap(err, "store backfill failed")
	}
	return created, nil
}

// logResolution appends a usage event and signals realtime subscribers.
// Failures are logged and swallowed: analytics must never fail a resolution.
func (uc *IdentifierUsecase) logResolution(ctx context.Context, record domain.Identifier, requester string) {
	now := time.Now().UTC()
	event := domain.ResolutionEvent{
		ID:        dcid.New([]byte(record.Code+"\x00"+requester), now).String(),
		Code:      record.Code,
		Requester: requester,
		Timestamp: now,
	}

	if err := uc.events.Append(ctx, event); err != nil {
		slog.WarnContext(ctx, "failed to append resolution event",
			slog.String("code", record.Code),
			slog.String("error", err.Error()),
		)
	}

	uc.publish(ctx, domain.EventTypeResolve, record)
}

// Events returns recent resolution events and the total count for an
// existing identifier, regardless of its status: revoked identifiers keep
// their analytics.
func (uc *IdentifierUsecase) Events(ctx context.Context, prefix, suffix string, limit int) ([]domain.ResolutionEvent, int64, error) {
	record, err := uc.repo.Get(ctx, prefix, suffix)
	if err != nil {
		return nil, 0, err
	}

	recent, err := uc.events.Recent(ctx, record.Code, limit)
	if err != nil {
		return nil, 0, errors.Wrap(err, "failed to load recent events")
	}

	count, err := uc.events.Count(ctx, record.Code)
	if err != nil {
		return nil, 0, errors.Wrap(err, "failed to count events")
	}

	return recent, count, nil
}
