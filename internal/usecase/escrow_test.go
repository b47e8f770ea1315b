package usecase

import (
	"context"
	"errors"
	"testing"

	"github.com/fronsciers/doci-gateway/internal/domain"
)

type mockEscrowRepo struct {
	store map[string]domain.EscrowAccount
}

func newMockEscrowRepo() *mockEscrowRepo {
	return &mockEscrowRepo{store: map[string]domain.EscrowAccount{}}
}

func (m *mockEscrowRepo) Create(ctx context.Context, account domain.EscrowAccount) (domain.EscrowAccount, error) {
	m.store[account.ID] = account
	return account, nil
}

func (m *mockEscrowRepo) Get(ctx context.Context, id string) (domain.EscrowAccount, error) {
	account, ok := m.store[id]
	if !ok {
		return domain.EscrowAccount{}, domain.NotFoundError{Resource: "escrow"}
	}
	return account, nil
}

func (m *mockEscrowRepo) Transition(ctx context.Context, id string, fn func(*domain.EscrowAccount) error) (domain.EscrowAccount, error) {
	account, ok := m.store[id]
	if !ok {
		return domain.EscrowAccount{}, domain.NotFoundError{Resource: "escrow"}
	}
	if err := fn(&account); err != nil {
		return domain.EscrowAccount{}, err
	}
	m.store[id] = account
	return account, nil
}

func TestInitializeValidation(t *testing.T) {
	uc := NewEscrowUsecase(newMockEscrowRepo())
	ctx := context.Background()

	if _, err := uc.Initialize(ctx, "", "10.FRONS/ABC123", 100, 3); !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("expected unauthorized, got %v", err)
	}
	if _, err := uc.Initialize(ctx, "frons1payer", "", 100, 3); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected validation error for missing manuscript, got %v", err)
	}
	if _, err := uc.Initialize(ctx, "frons1payer", "10.FRONS/ABC123", 0, 3); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected validation error for amount, got %v", err)
	}
	if _, err := uc.Initialize(ctx, "frons1payer", "10.FRONS/ABC123", 100, 0); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected validation error for approvals, got %v", err)
	}
}

// Full lifecycle: fund once, three distinct approvals, release exactly once,
// then everything else fails terminal.
func TestEscrowLifecycle(t *testing.T) {
	uc := NewEscrowUsecase(newMockEscrowRepo())
	ctx := context.Background()

	account, err := uc.Initialize(ctx, "frons1payer", "10.FRONS/ABC123", 100, 3)
	if err != nil {
		t.Fatalf("initialize failed: %v", err)
	}
	if account.State != domain.EscrowCreated {
		t.Fatalf("expected created, got %s", account.State)
	}

	if _, err := uc.Fund(ctx, account.ID, 100); err != nil {
		t.Fatalf("fund failed: %v", err)
	}
	if _, err := uc.Fund(ctx, account.ID, 100); !errors.Is(err, domain.ErrAlreadyFunded) {
		t.Fatalf("expected already funded, got %v", err)
	}

	for _, approver := range []string{"frons1a", "frons1b"} {
		if _, err := uc.Approve(ctx, account.ID, approver); err != nil {
			t.Fatalf("approve %s failed: %v", approver, err)
		}
	}

	// a repeat approval never counts toward the threshold
	if _, err := uc.Approve(ctx, account.ID, "frons1a"); !errors.Is(err, domain.ErrAlreadyApproved) {
		t.Fatalf("expected already approved, got %v", err)
	}
	if _, err := uc.Release(ctx, account.ID); !errors.Is(err, domain.ErrInsufficientApprovals) {
		t.Fatalf("expected insufficient approvals, got %v", err)
	}

	if _, err := uc.Approve(ctx, account.ID, "frons1c"); err != nil {
		t.Fatalf("third approve failed: %v", err)
	}

	released, err := uc.Release(ctx, account.ID)
	if err != nil {
		t.Fatalf("release failed: %v", err)
	}
	if released.State != domain.EscrowReleased {
		t.Fatalf("expected released, got %s", released.State)
	}

	if _, err := uc.Release(ctx, account.ID); !errors.Is(err, domain.ErrAlreadyReleased) {
		t.Fatalf("expected already released, got %v", err)
	}
	if _, err := uc.Refund(ctx, account.ID); !errors.Is(err, domain.ErrAlreadyReleased) {
		t.Fatalf("refund after release must fail, got %v", err)
	}
}

func TestEscrowRefundWithoutQuorum(t *testing.T) {
	uc := NewEscrowUsecase(newMockEscrowRepo())
	ctx := context.Background()

	account, err := uc.Initialize(ctx, "frons1payer", "10.FRONS/ABC123", 100, 3)
	if err != nil {
		t.Fatalf("initialize failed: %v", err)
	}

	if _, err := uc.Fund(ctx, account.ID, 99); !errors.Is(err, domain.ErrAmountMismatch) {
		t.Fatalf("expected amount mismatch, got %v", err)
	}
	if _, err := uc.Fund(ctx, account.ID, 100); err != nil {
		t.Fatalf("fund failed: %v", err)
	}

	refunded, err := uc.Refund(ctx, account.ID)
	if err != nil {
		t.Fatalf("refund failed: %v", err)
	}
	if refunded.State != domain.EscrowRefunded {
		t.Fatalf("expected refunded, got %s", refunded.State)
	}
}

func TestEscrowUnknownID(t *testing.T) {
	uc := NewEscrowUsecase(newMockEscrowRepo())

	if _, err := uc.Get(context.Background(), "missing"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if _, err := uc.Fund(context.Background(), "missing", 1); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}
