package usecase

import (
	"context"
	"errors"
	"fmt"
	"testing"

	doci "github.com/fronsciers/doci-gateway"
	"github.com/fronsciers/doci-gateway/internal/domain"
)

// --- mocks ---

type mockIdentifierRepo struct {
	store      map[string]domain.Identifier
	getErr     error
	putErrs    []error // consumed per Put call before the map insert
	allocCalls int
}

func newMockIdentifierRepo() *mockIdentifierRepo {
	return &mockIdentifierRepo{store: map[string]domain.Identifier{}}
}

func (m *mockIdentifierRepo) Get(ctx context.Context, prefix, suffix string) (domain.Identifier, error) {
	if m.getErr != nil {
		return domain.Identifier{}, m.getErr
	}
	record, ok := m.store[doci.ComposeCode(prefix, suffix)]
	if !ok {
		return domain.Identifier{}, domain.NotFoundError{Resource: "identifier"}
	}
	return record, nil
}

func (m *mockIdentifierRepo) Put(ctx context.Context, identifier domain.Identifier) (domain.Identifier, error) {
	if len(m.putErrs) > 0 {
		err := m.putErrs[0]
		m.putErrs = m.putErrs[1:]
		if err != nil {
			return domain.Identifier{}, err
		}
	}
	if _, exists := m.store[identifier.Code]; exists {
		return domain.Identifier{}, domain.DuplicateCodeError{Code: identifier.Code}
	}
	m.store[identifier.Code] = identifier
	return identifier, nil
}

func (m *mockIdentifierRepo) AllocateSuffix(ctx context.Context, prefix string) (string, error) {
	m.allocCalls++
	return fmt.Sprintf("%06d", m.allocCalls), nil
}

func (m *mockIdentifierRepo) UpdateMeta(ctx context.Context, prefix, suffix string, meta map[string]any, metadataRef string) (domain.Identifier, error) {
	code := doci.ComposeCode(prefix, suffix)
	record, ok := m.store[code]
	if !ok {
		return domain.Identifier{}, domain.NotFoundError{Resource: "identifier"}
	}
	record.Meta = meta
	record.MetadataRef = metadataRef
	m.store[code] = record
	return record, nil
}

func (m *mockIdentifierRepo) SetStatus(ctx context.Context, prefix, suffix string, status domain.Status) error {
	code := doci.ComposeCode(prefix, suffix)
	record, ok := m.store[code]
	if !ok {
		return domain.NotFoundError{Resource: "identifier"}
	}
	record.Status = status
	m.store[code] = record
	return nil
}

func (m *mockIdentifierRepo) SetChainRef(ctx context.Context, prefix, suffix, txRef string) error {
	code := doci.ComposeCode(prefix, suffix)
	record, ok := m.store[code]
	if !ok {
		return domain.NotFoundError{Resource: "identifier"}
	}
	record.ChainRef = &txRef
	record.Status = domain.StatusActive
	m.store[code] = record
	return nil
}

type mockEventRepo struct {
	appended  []domain.ResolutionEvent
	appendErr error
}

func (m *mockEventRepo) Append(ctx context.Context, event domain.ResolutionEvent) error {
	if m.appendErr != nil {
		return m.appendErr
	}
	m.appended = append(m.appended, event)
	return nil
}

func (m *mockEventRepo) Recent(ctx context.Context, code string, limit int) ([]domain.ResolutionEvent, error) {
	var recent []domain.ResolutionEvent
	for _, e := range m.appended {
		if e.Code == code {
			recent = append(recent, e)
		}
	}
	if len(recent) > limit {
		recent = recent[len(recent)-limit:]
	}
	return recent, nil
}

func (m *mockEventRepo) Count(ctx context.Context, code string) (int64, error) {
	var count int64
	for _, e := range m.appended {
		if e.Code == code {
			count++
		}
	}
	return count, nil
}

type mockLedger struct {
	anchors   map[string]doci.Anchor
	lookupErr error
	anchorErr error
	anchored  []doci.Anchor
}

func (m *mockLedger) Lookup(ctx context.Context, prefix, suffix string) (doci.Anchor, bool, error) {
	if m.lookupErr != nil {
		return doci.Anchor{}, false, m.lookupErr
	}
	anchor, ok := m.anchors[doci.ComposeCode(prefix, suffix)]
	return anchor, ok, nil
}

func (m *mockLedger) Anchor(ctx context.Context, anchor doci.Anchor) (string, error) {
	if m.anchorErr != nil {
		return "", m.anchorErr
	}
	m.anchored = append(m.anchored, anchor)
	return "tx-" + doci.ComposeCode(anchor.Prefix, anchor.Suffix), nil
}

type mockContent struct {
	blobs  map[string][]byte
	putErr error
	getErr error
}

func newMockContent() *mockContent {
	return &mockContent{blobs: map[string][]byte{}}
}

func (m *mockContent) Put(ctx context.Context, data []byte) (string, error) {
	if m.putErr != nil {
		return "", m.putErr
	}
	ref := fmt.Sprintf("sha3:blob-%d", len(m.blobs))
	m.blobs[ref] = data
	return ref, nil
}

func (m *mockContent) Get(ctx context.Context, ref string) ([]byte, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	data, ok := m.blobs[ref]
	if !ok {
		return nil, domain.NotFoundError{Resource: "content"}
	}
	return data, nil
}

type mockSignal struct {
	published []doci.Event
}

func (m *mockSignal) Publish(ctx context.Context, channel string, event doci.Event) error {
	m.published = append(m.published, event)
	return nil
}

type fixture struct {
	repo    *mockIdentifierRepo
	events  *mockEventRepo
	ledger  *mockLedger
	content *mockContent
	signal  *mockSignal
	uc      *IdentifierUsecase
}

func newFixture() *fixture {
	f := &fixture{
		repo:    newMockIdentifierRepo(),
		events:  &mockEventRepo{},
		ledger:  &mockLedger{anchors: map[string]doci.Anchor{}},
		content: newMockContent(),
		signal:  &mockSignal{},
	}
	f.uc = NewIdentifierUsecase(
		domain.Config{FQDN: "gateway.fronsciers.example", ResearcherPrefix: "10.FRONS-R"},
		f.repo, f.events, f.ledger, f.content, f.signal,
	)
	return f
}

func publicationInput() RegisterInput {
	return RegisterInput{
		Kind:   "publication",
		Prefix: "10.FRONS",
		Owner:  "frons1owner",
		Meta: map[string]any{
			"title":   "On Identifier Resolution",
			"authors": []any{"A. Researcher"},
		},
	}
}

// --- tests ---

func TestRegisterAllocatesSuffix(t *testing.T) {
	f := newFixture()

	created, err := f.uc.Register(context.Background(), publicationInput())
	if err != nil {
		t.Fatalf("register failed: %v", err)
	}

	if created.Suffix == "" {
		t.Fatalf("expected allocated suffix")
	}
	if created.Code != "10.FRONS/"+created.Suffix {
		t.Fatalf("unexpected code: %s", created.Code)
	}
	if created.Status != domain.StatusActive {
		t.Fatalf("expected active, got %s", created.Status)
	}
	if created.MetadataRef == "" {
		t.Fatalf("expected metadata ref from content store")
	}
	if len(f.signal.published) != 1 || f.signal.published[0].Type != domain.EventTypeRegister {
		t.Fatalf("expected register event, got %+v", f.signal.published)
	}
}

func TestRegisterValidation(t *testing.T) {
	f := newFixture()

	cases := []struct {
		name  string
		input RegisterInput
	}{
		{"unknown kind", RegisterInput{Kind: "dataset", Prefix: "10.FRONS", Owner: "frons1o", Meta: map[string]any{}}},
		{"publication without title", RegisterInput{Kind: "publication", Prefix: "10.FRONS", Owner: "frons1o", Meta: map[string]any{"authors": []any{"A"}}}},
		{"publication without authors", RegisterInput{Kind: "publication", Prefix: "10.FRONS", Owner: "frons1o", Meta: map[string]any{"title": "T"}}},
		{"researcher without name", RegisterInput{Kind: "researcher-profile", Prefix: "10.FRONS-R", Owner: "frons1o", Meta: map[string]any{}}},
		{"kind prefix mismatch", RegisterInput{Kind: "researcher-profile", Prefix: "10.FRONS", Owner: "frons1o", Meta: map[string]any{"name": "N"}}},
		{"invalid prefix", RegisterInput{Kind: "publication", Prefix: "bad prefix", Owner: "frons1o", Meta: map[string]any{"title": "T", "authors": []any{"A"}}}},
	}

	for _, tc := range cases {
		_, err := f.uc.Register(context.Background(), tc.input)
		if !errors.Is(err, domain.ErrValidation) {
			t.Fatalf("%s: expected validation error, got %v", tc.name, err)
		}
	}
}

func TestRegisterRequiresAuth(t *testing.T) {
	f := newFixture()

	input := publicationInput()
	input.Owner = ""

	if _, err := f.uc.Register(context.Background(), input); !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("expected unauthorized, got %v", err)
	}
}

func TestRegisterManualSuffixCollision(t *testing.T) {
	f := newFixture()

	input := publicationInput()
	input.Suffix = "ABC123"

	if _, err := f.uc.Register(context.Background(), input); err != nil {
		t.Fatalf("first register failed: %v", err)
	}

	_, err := f.uc.Register(context.Background(), input)
	if !errors.Is(err, domain.ErrDuplicateCode) {
		t.Fatalf("expected duplicate code, got %v", err)
	}
	if f.repo.allocCalls != 0 {
		t.Fatalf("manual suffix must never trigger allocation, got %d calls", f.repo.allocCalls)
	}
}

func TestRegisterRetriesAllocatedCollision(t *testing.T) {
	f := newFixture()
	f.repo.putErrs = []error{
		domain.DuplicateCodeError{Code: "10.FRONS/000001"},
		domain.DuplicateCodeError{Code: "10.FRONS/000002"},
		nil,
	}

	created, err := f.uc.Register(context.Background(), publicationInput())
	if err != nil {
		t.Fatalf("register failed: %v", err)
	}
	if f.repo.allocCalls != 3 {
		t.Fatalf("expected 3 allocations, got %d", f.repo.allocCalls)
	}
	if created.Suffix != "000003" {
		t.Fatalf("expected third allocation to win, got %s", created.Suffix)
	}
}

func TestRegisterGivesUpAfterBoundedRetries(t *testing.T) {
	f := newFixture()
	f.repo.putErrs = []error{
		domain.DuplicateCodeError{},
		domain.DuplicateCodeError{},
		domain.DuplicateCodeError{},
	}

	_, err := f.uc.Register(context.Background(), publicationInput())
	if err == nil {
		t.Fatalf("expected failure after bounded retries")
	}
	// exhausted retries are an internal failure, not a duplicate for the caller
	if errors.Is(err, domain.ErrDuplicateCode) {
		t.Fatalf("exhausted retries must not surface as duplicate: %v", err)
	}
	if f.repo.allocCalls != domain.SuffixAllocationRetries {
		t.Fatalf("expected %d allocations, got %d", domain.SuffixAllocationRetries, f.repo.allocCalls)
	}
}

func TestRegisterAnchored(t *testing.T) {
	f := newFixture()

	input := publicationInput()
	input.Anchor = true

	created, err := f.uc.Register(context.Background(), input)
	if err != nil {
		t.Fatalf("register failed: %v", err)
	}
	if created.ChainRef == nil {
		t.Fatalf("expected chain ref after anchoring")
	}
	if created.Status != domain.StatusActive {
		t.Fatalf("expected active after anchoring, got %s", created.Status)
	}
	if len(f.ledger.anchored) != 1 {
		t.Fatalf("expected one anchor call, got %d", len(f.ledger.anchored))
	}
}

func TestRegisterAnchorFailureLeavesPending(t *testing.T) {
	f := newFixture()
	f.ledger.anchorErr = errors.New("ledger unavailable")

	input := publicationInput()
	input.Anchor = true

	created, err := f.uc.Register(context.Background(), input)
	if err != nil {
		t.Fatalf("register must succeed even when anchoring fails: %v", err)
	}
	if created.Status != domain.StatusPending {
		t.Fatalf("expected pending, got %s", created.Status)
	}
	if created.ChainRef != nil {
		t.Fatalf("expected no chain ref")
	}
}

func TestUpdateRejectsImmutableFields(t *testing.T) {
	f := newFixture()

	input := publicationInput()
	input.Suffix = "ABC123"
	if _, err := f.uc.Register(context.Background(), input); err != nil {
		t.Fatalf("register failed: %v", err)
	}

	for _, field := range []string{"prefix", "suffix", "owner", "ownerUserId", "kind"} {
		_, err := f.uc.Update(context.Background(), "10.FRONS", "ABC123", "frons1owner", map[string]any{field: "x"})
		if !errors.Is(err, domain.ErrValidation) {
			t.Fatalf("patching %s: expected validation error, got %v", field, err)
		}
	}
}

func TestUpdateOwnerOnly(t *testing.T) {
	f := newFixture()

	input := publicationInput()
	input.Suffix = "ABC123"
	if _, err := f.uc.Register(context.Background(), input); err != nil {
		t.Fatalf("register failed: %v", err)
	}

	_, err := f.uc.Update(context.Background(), "10.FRONS", "ABC123", "frons1stranger", map[string]any{"title": "New"})
	if !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("expected unauthorized, got %v", err)
	}

	updated, err := f.uc.Update(context.Background(), "10.FRONS", "ABC123", "frons1owner", map[string]any{"title": "New"})
	if err != nil {
		t.Fatalf("owner update failed: %v", err)
	}
	if updated.Meta["title"] != "New" {
		t.Fatalf("expected merged title, got %v", updated.Meta["title"])
	}
	if updated.Meta["authors"] == nil {
		t.Fatalf("expected untouched fields to survive the merge")
	}
}

func TestUpdatePolicyDelegation(t *testing.T) {
	f := newFixture()

	input := publicationInput()
	input.Suffix = "ABC123"
	if _, err := f.uc.Register(context.Background(), input); err != nil {
		t.Fatalf("register failed: %v", err)
	}

	policyDoc := `{"versions":{"2026-01-01":{"statements":{"update":[{"emit":"allow","condition":{"op":"Contains","args":[{"const":["frons1curator"]},{"op":"Load","args":[{"const":"requester"}]}]}}]}}}}`
	record := f.repo.store["10.FRONS/ABC123"]
	record.Policy = &policyDoc
	f.repo.store["10.FRONS/ABC123"] = record

	if _, err := f.uc.Update(context.Background(), "10.FRONS", "ABC123", "frons1curator", map[string]any{"title": "Delegated"}); err != nil {
		t.Fatalf("delegated update failed: %v", err)
	}

	if _, err := f.uc.Update(context.Background(), "10.FRONS", "ABC123", "frons1stranger", map[string]any{"title": "Nope"}); !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("expected unauthorized for non-delegated account, got %v", err)
	}
}

func TestRevoke(t *testing.T) {
	f := newFixture()

	input := publicationInput()
	input.Suffix = "ABC123"
	if _, err := f.uc.Register(context.Background(), input); err != nil {
		t.Fatalf("register failed: %v", err)
	}

	if err := f.uc.Revoke(context.Background(), "10.FRONS", "ABC123", "frons1stranger"); !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("expected unauthorized, got %v", err)
	}

	if err := f.uc.Revoke(context.Background(), "10.FRONS", "ABC123", "frons1owner"); err != nil {
		t.Fatalf("revoke failed: %v", err)
	}

	// the row survives revocation
	if f.repo.store["10.FRONS/ABC123"].Status != domain.StatusRevoked {
		t.Fatalf("expected revoked row to remain in storage")
	}

	// revoke is idempotent
	if err := f.uc.Revoke(context.Background(), "10.FRONS", "ABC123", "frons1owner"); err != nil {
		t.Fatalf("second revoke failed: %v", err)
	}
}
