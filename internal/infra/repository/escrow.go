package repository

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/fronsciers/doci-gateway/internal/domain"
	"github.com/fronsciers/doci-gateway/internal/infra/database/models"
)

type EscrowRepository struct {
	db *gorm.DB
}

func NewEscrowRepository(db *gorm.DB) *EscrowRepository {
	return &EscrowRepository{db: db}
}

func (r *EscrowRepository) Create(ctx context.Context, account domain.EscrowAccount) (domain.EscrowAccount, error) {
	record := models.EscrowAccount{
		ID:                account.ID,
		Payer:             account.Payer,
		ManuscriptRef:     account.ManuscriptRef,
		Amount:            account.Amount,
		RequiredApprovals: account.RequiredApprovals,
		State:             string(account.State),
	}
	if err := r.db.WithContext(ctx).Create(&record).Error; err != nil {
		return domain.EscrowAccount{}, err
	}
	return escrowFromModel(record, nil), nil
}

func (r *EscrowRepository) Get(ctx context.Context, id string) (domain.EscrowAccount, error) {
	return r.load(r.db.WithContext(ctx), id, false)
}

// Transition loads the account under a row lock, applies fn, and persists the
// result in one transaction. fn returning an error aborts without writes.
func (r *EscrowRepository) Transition(ctx context.Context, id string, fn func(*domain.EscrowAccount) error) (domain.EscrowAccount, error) {
	var updated domain.EscrowAccount
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		account, err := r.load(tx, id, true)
		if err != nil {
			return err
		}

		before := len(account.Approvers)
		if err := fn(&account); err != nil {
			return err
		}

		result := tx.Model(&models.EscrowAccount{}).
			Where("id = ?", id).
			Updates(map[string]any{
				"state":  string(account.State),
				"m_date": time.Now(),
			})
		if result.Error != nil {
			return result.Error
		}

		for _, approver := range account.Approvers[before:] {
			err := tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "escrow_id"}, {Name: "approver"}},
				DoNothing: true,
			}).Create(&models.EscrowApproval{
				EscrowID: id,
				Approver: approver,
			}).Error
			if err != nil {
				return err
			}
		}

		updated = account
		return nil
	})
	if err != nil {
		return domain.EscrowAccount{}, err
	}
	return updated, nil
}

func (r *EscrowRepository) load(tx *gorm.DB, id string, lock bool) (domain.EscrowAccount, error) {
	query := tx
	if lock {
		query = query.Clauses(clause.Locking{Strength: "UPDATE"})
	}

	var record models.EscrowAccount
	err := query.Where("id = ?", id).Take(&record).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return domain.EscrowAccount{}, domain.NotFoundError{Resource: "escrow"}
		}
		return domain.EscrowAccount{}, err
	}

	var approvals []models.EscrowApproval
	err = tx.Where("escrow_id = ?", id).Order("c_date ASC").Find(&approvals).Error
	if err != nil {
		return domain.EscrowAccount{}, err
	}

	return escrowFromModel(record, approvals), nil
}

func escrowFromModel(record models.EscrowAccount, approvals []models.EscrowApproval) domain.EscrowAccount {
	approvers := make([]string, 0, len(approvals))
	for _, approval := range approvals {
		approvers = append(approvers, approval.Approver)
	}

	return domain.EscrowAccount{
		ID:                record.ID,
		Payer:             record.Payer,
		ManuscriptRef:     record.ManuscriptRef,
		Amount:            record.Amount,
		RequiredApprovals: record.RequiredApprovals,
		Approvers:         approvers,
		State:             domain.EscrowState(record.State),
		CreatedAt:         record.CDate,
		UpdatedAt:         record.MDate,
	}
}
