package usecase

import (
	"context"
	"time"

	"github.com/fronsciers/doci-gateway/dcid"
	"github.com/fronsciers/doci-gateway/internal/domain"
)

type EscrowUsecase struct {
	repo EscrowRepository
}

func NewEscrowUsecase(repo EscrowRepository) *EscrowUsecase {
	return &EscrowUsecase{repo: repo}
}

func (uc *EscrowUsecase) Initialize(ctx context.Context, payer, manuscriptRef string, amount int64, requiredApprovals int) (domain.EscrowAccount, error) {
	if payer == "" {
		return domain.EscrowAccount{}, domain.UnauthorizedError{Message: "authentication required"}
	}
	if manuscriptRef == "" {
		return domain.EscrowAccount{}, domain.ValidationError{Field: "manuscriptRef", Message: "required"}
	}
	if amount <= 0 {
		return domain.EscrowAccount{}, domain.ValidationError{Field: "amount", Message: "must be positive"}
	}
	if requiredApprovals < 1 {
		return domain.EscrowAccount{}, domain.ValidationError{Field: "requiredApprovals", Message: "must be at least 1"}
	}

	now := time.Now().UTC()
	account := domain.EscrowAccount{
		ID:                dcid.New([]byte(payer+"\x00"+manuscriptRef), now).String(),
		Payer:             payer,
		ManuscriptRef:     manuscriptRef,
		Amount:            amount,
		RequiredApprovals: requiredApprovals,
		State:             domain.EscrowCreated,
	}

	return uc.repo.Create(ctx, account)
}

func (uc *EscrowUsecase) Get(ctx context.Context, id string) (domain.EscrowAccount, error) {
	return uc.repo.Get(ctx, id)
}

func (uc *EscrowUsecase) Fund(ctx context.Context, id string, amount int64) (domain.EscrowAccount, error) {
	return uc.repo.Transition(ctx, id, func(account *domain.EscrowAccount) error {
		return account.Fund(amount)
	})
}

func (uc *EscrowUsecase) Approve(ctx context.Context, id, approver string) (domain.EscrowAccount, error) {
	if approver == "" {
		return domain.EscrowAccount{}, domain.UnauthorizedError{Message: "authentication required"}
	}
	return uc.repo.Transition(ctx, id, func(account *domain.EscrowAccount) error {
		return account.Approve(approver)
	})
}

func (uc *EscrowUsecase) Release(ctx context.Context, id string) (domain.EscrowAccount, error) {
	return uc.repo.Transition(ctx, id, func(account *domain.EscrowAccount) error {
		return account.Release()
	})
}

func (uc *EscrowUsecase) Refund(ctx context.Context, id string) (domain.EscrowAccount, error) {
	return uc.repo.Transition(ctx, id, func(account *domain.EscrowAccount) error {
		return account.Refund()
	})
}
