package usecase

import (
	"context"
	"errors"
	"testing"

	"github.com/fronsciers/doci-gateway/internal/domain"

	doci "github.com/fronsciers/doci-gateway"
)

func register(t *testing.T, f *fixture, suffix string) domain.Identifier {
	t.Helper()
	input := publicationInput()
	input.Suffix = suffix
	created, err := f.uc.Register(context.Background(), input)
	if err != nil {
		t.Fatalf("register failed: %v", err)
	}
	return created
}

func TestResolveActive(t *testing.T) {
	f := newFixture()
	register(t, f, "ABC123")

	resolution, err := f.uc.Resolve(context.Background(), "10.FRONS", "ABC123", "203.0.113.7")
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	if resolution.Kind != domain.KindPublication {
		t.Fatalf("expected publication, got %s", resolution.Kind)
	}
	if resolution.Record.Code != "10.FRONS/ABC123" {
		t.Fatalf("unexpected record: %+v", resolution.Record)
	}

	if len(f.events.appended) != 1 {
		t.Fatalf("expected one resolution event, got %d", len(f.events.appended))
	}
	if f.events.appended[0].Requester != "203.0.113.7" {
		t.Fatalf("unexpected requester: %s", f.events.appended[0].Requester)
	}
}

func TestResolveNeverRegistered(t *testing.T) {
	f := newFixture()

	_, err := f.uc.Resolve(context.Background(), "10.FRONS", "NOPE", "")
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if len(f.events.appended) != 0 {
		t.Fatalf("misses must not log events")
	}
}

func TestResolveRevokedReturnsNotFound(t *testing.T) {
	f := newFixture()
	register(t, f, "ABC123")

	if err := f.uc.Revoke(context.Background(), "10.FRONS", "ABC123", "frons1owner"); err != nil {
		t.Fatalf("revoke failed: %v", err)
	}

	_, err := f.uc.Resolve(context.Background(), "10.FRONS", "ABC123", "")
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not found for revoked identifier, got %v", err)
	}
}

func TestResolveStorageErrorIsNotNotFound(t *testing.T) {
	f := newFixture()
	f.repo.getErr = errors.New("connection refused")

	_, err := f.uc.Resolve(context.Background(), "10.FRONS", "ABC123", "")
	if err == nil {
		t.Fatalf("expected error")
	}
	if errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("storage failure must be distinguishable from a miss: %v", err)
	}
}

func TestResolveLedgerFallbackBackfills(t *testing.T) {
	f := newFixture()

	ref, err := f.content.Put(context.Background(), []byte(`{"title":"Anchored Paper","authors":["A"]}`))
	if err != nil {
		t.Fatalf("content put failed: %v", err)
	}
	f.ledger.anchors["10.FRONS/CHAIN1"] = doci.Anchor{
		Prefix:      "10.FRONS",
		Suffix:      "CHAIN1",
		Owner:       "frons1owner",
		MetadataRef: ref,
		TxRef:       "tx-abc",
	}

	resolution, err := f.uc.Resolve(context.Background(), "10.FRONS", "CHAIN1", "")
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	if resolution.Record.Meta["title"] != "Anchored Paper" {
		t.Fatalf("expected anchored metadata, got %+v", resolution.Record.Meta)
	}
	if resolution.Record.ChainRef == nil || *resolution.Record.ChainRef != "tx-abc" {
		t.Fatalf("expected chain ref carried over")
	}

	// the hit is backfilled into the local store
	if _, ok := f.repo.store["10.FRONS/CHAIN1"]; !ok {
		t.Fatalf("expected backfilled row")
	}
	if len(f.events.appended) != 1 {
		t.Fatalf("expected resolution event for the fallback hit")
	}
}

func TestResolveLedgerErrorSurfacesAsInternal(t *testing.T) {
	f := newFixture()
	f.ledger.lookupErr = errors.New("rpc timeout")

	_, err := f.uc.Resolve(context.Background(), "10.FRONS", "CHAIN1", "")
	if err == nil {
		t.Fatalf("expected error")
	}
	if errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("ledger failure must not degrade to not found: %v", err)
	}
}

func TestResolveEventLogFailureDoesNotFailResolution(t *testing.T) {
	f := newFixture()
	register(t, f, "ABC123")
	f.events.appendErr = errors.New("redis down")

	if _, err := f.uc.Resolve(context.Background(), "10.FRONS", "ABC123", ""); err != nil {
		t.Fatalf("resolution must survive event log failure: %v", err)
	}
}

func TestEvents(t *testing.T) {
	f := newFixture()
	register(t, f, "ABC123")

	for range 3 {
		if _, err := f.uc.Resolve(context.Background(), "10.FRONS", "ABC123", "a"); err != nil {
			t.Fatalf("resolve failed: %v", err)
		}
	}

	recent, count, err := f.uc.Events(context.Background(), "10.FRONS", "ABC123", 2)
	if err != nil {
		t.Fatalf("events failed: %v", err)
	}
	if count != 3 {
		t.Fatalf("expected count 3, got %d", count)
	}
	if len(recent) != 2 {
		t.Fatalf("expected limit applied, got %d", len(recent))
	}

	if _, _, err := f.uc.Events(context.Background(), "10.FRONS", "NOPE", 10); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not found for unknown identifier, got %v", err)
	}
}
