package domain

import (
	"errors"
	"time"
)

type EscrowState string

const (
	EscrowCreated  EscrowState = "created"
	EscrowFunded   EscrowState = "funded"
	EscrowReleased EscrowState = "released"
	EscrowRefunded EscrowState = "refunded"
)

var (
	ErrAlreadyFunded         = errors.New("escrow already funded")
	ErrAmountMismatch        = errors.New("funded amount does not match declared amount")
	ErrNotFunded             = errors.New("escrow not funded")
	ErrAlreadyApproved       = errors.New("approver already approved")
	ErrInsufficientApprovals = errors.New("insufficient approvals")
	ErrAlreadyReleased       = errors.New("escrow already released")
	ErrAlreadyRefunded       = errors.New("escrow already refunded")
)

// EscrowAccount holds a publication fee in trust until a quorum of distinct
// approvers releases it to the manuscript beneficiary, or it is refunded to
// the payer. State transitions are one-way: Created -> Funded -> terminal.
type EscrowAccount struct {
	ID                string      `json:"id"`
	Payer             string      `json:"payer"`
	ManuscriptRef     string      `json:"manuscriptRef"`
	Amount            int64       `json:"amount"`
	RequiredApprovals int         `json:"requiredApprovals"`
	Approvers         []string    `json:"approvers"`
	State             EscrowState `json:"state"`
	CreatedAt         time.Time   `json:"createdAt"`
	UpdatedAt         time.Time   `json:"updatedAt"`
}

func (e *EscrowAccount) HasApprover(approver string) bool {
	for _, a := range e.Approvers {
		if a == approver {
			return true
		}
	}
	return false
}

// requireFunded distinguishes the three non-Funded states so callers get a
// precise failure rather than a generic invalid-state error.
func (e *EscrowAccount) requireFunded() error {
	switch e.State {
	case EscrowFunded:
		return nil
	case EscrowCreated:
		return ErrNotFunded
	case EscrowReleased:
		return ErrAlreadyReleased
	default:
		return ErrAlreadyRefunded
	}
}

// Fund moves Created -> Funded. The amount must match the declared amount
// exactly.
func (e *EscrowAccount) Fund(amount int64) error {
	if e.State != EscrowCreated {
		return ErrAlreadyFunded
	}
	if amount != e.Amount {
		return ErrAmountMismatch
	}
	e.State = EscrowFunded
	return nil
}

// Approve records a distinct approver. Approvals accumulate without a state
// transition; the set only grows.
func (e *EscrowAccount) Approve(approver string) error {
	if err := e.requireFunded(); err != nil {
		return err
	}
	if e.HasApprover(approver) {
		return ErrAlreadyApproved
	}
	e.Approvers = append(e.Approvers, approver)
	return nil
}

// Release moves Funded -> Released once the approval quorum is met.
func (e *EscrowAccount) Release() error {
	if err := e.requireFunded(); err != nil {
		return err
	}
	if len(e.Approvers) < e.RequiredApprovals {
		return ErrInsufficientApprovals
	}
	e.State = EscrowReleased
	return nil
}

// Refund moves Funded -> Refunded. Rejection does not require consensus, so
// the approval count is not checked.
func (e *EscrowAccount) Refund() error {
	if err := e.requireFunded(); err != nil {
		return err
	}
	e.State = EscrowRefunded
	return nil
}
