package repository

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/bradfitz/gomemcache/memcache"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	doci "github.com/fronsciers/doci-gateway"
	"github.com/fronsciers/doci-gateway/internal/domain"
	"github.com/fronsciers/doci-gateway/internal/infra/database/models"
)

const identifierCacheTTL = 60 // seconds

type IdentifierRepository struct {
	db *gorm.DB
	mc *memcache.Client
}

func NewIdentifierRepository(db *gorm.DB, mc *memcache.Client) *IdentifierRepository {
	return &IdentifierRepository{db: db, mc: mc}
}

func identifierCacheKey(code string) string {
	return "doci:identifier:" + code
}

func (r *IdentifierRepository) Get(ctx context.Context, prefix, suffix string) (domain.Identifier, error) {
	code := doci.ComposeCode(prefix, suffix)

	if r.mc != nil {
		if item, err := r.mc.Get(identifierCacheKey(code)); err == nil {
			var cached domain.Identifier
			if err := json.Unmarshal(item.Value, &cached); err == nil {
				return cached, nil
			}
		}
	}

	var record models.Identifier
	err := r.db.WithContext(ctx).
		Where("prefix = ? AND suffix = ?", prefix, suffix).
		Take(&record).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return domain.Identifier{}, domain.NotFoundError{Resource: "identifier"}
		}
		return domain.Identifier{}, err
	}

	identifier, err := fromModel(record)
	if err != nil {
		return domain.Identifier{}, err
	}

	if r.mc != nil {
		if value, err := json.Marshal(identifier); err == nil {
			r.mc.Set(&memcache.Item{
				Key:        identifierCacheKey(code),
				Value:      value,
				Expiration: identifierCacheTTL,
			})
		}
	}

	return identifier, nil
}

func (r *IdentifierRepository) Put(ctx context.Context, identifier domain.Identifier) (domain.Identifier, error) {
	record, err := toModel(identifier)
	if err != nil {
		return domain.Identifier{}, err
	}

	err = r.db.WithContext(ctx).Create(&record).Error
	if err != nil {
		if err == gorm.ErrDuplicatedKey {
			return domain.Identifier{}, domain.DuplicateCodeError{Code: identifier.Code}
		}
		return domain.Identifier{}, err
	}

	return fromModel(record)
}

// AllocateSuffix hands out the next free suffix under prefix. The namespace
// row is locked for the whole allocation, so two concurrent registrations
// under one prefix never receive the same value. Suffixes already taken by
// manual registrations are skipped.
func (r *IdentifierRepository) AllocateSuffix(ctx context.Context, prefix string) (string, error) {
	var allocated string
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.OnConflict{
			DoNothing: true,
		}).Create(&models.Namespace{Prefix: prefix}).Error; err != nil {
			return err
		}

		var namespace models.Namespace
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("prefix = ?", prefix).
			Take(&namespace).Error; err != nil {
			return err
		}

		value := namespace.NextValue
		for {
			candidate := formatSuffix(value)
			value++

			var taken int64
			if err := tx.Model(&models.Identifier{}).
				Where("prefix = ? AND suffix = ?", prefix, candidate).
				Count(&taken).Error; err != nil {
				return err
			}
			if taken == 0 {
				allocated = candidate
				break
			}
		}

		return tx.Model(&models.Namespace{}).
			Where("prefix = ?", prefix).
			Update("next_value", value).Error
	})
	if err != nil {
		return "", err
	}
	return allocated, nil
}

func (r *IdentifierRepository) UpdateMeta(ctx context.Context, prefix, suffix string, meta map[string]any, metadataRef string) (domain.Identifier, error) {
	metaString, err := json.Marshal(meta)
	if err != nil {
		return domain.Identifier{}, err
	}

	result := r.db.WithContext(ctx).
		Model(&models.Identifier{}).
		Where("prefix = ? AND suffix = ?", prefix, suffix).
		Updates(map[string]any{
			"meta":         string(metaString),
			"metadata_ref": metadataRef,
			"m_date":       time.Now(),
		})
	if result.Error != nil {
		return domain.Identifier{}, result.Error
	}
	if result.RowsAffected == 0 {
		return domain.Identifier{}, domain.NotFoundError{Resource: "identifier"}
	}

	r.invalidate(prefix, suffix)
	return r.Get(ctx, prefix, suffix)
}

func (r *IdentifierRepository) SetStatus(ctx context.Context, prefix, suffix string, status domain.Status) error {
	result := r.db.WithContext(ctx).
		Model(&models.Identifier{}).
		Where("prefix = ? AND suffix = ?", prefix, suffix).
		Updates(map[string]any{
			"status": string(status),
			"m_date": time.Now(),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.NotFoundError{Resource: "identifier"}
	}

	r.invalidate(prefix, suffix)
	return nil
}

func (r *IdentifierRepository) SetChainRef(ctx context.Context, prefix, suffix, txRef string) error {
	result := r.db.WithContext(ctx).
		Model(&models.Identifier{}).
		Where("prefix = ? AND suffix = ?", prefix, suffix).
		Updates(map[string]any{
			"chain_ref": txRef,
			"m_date":    time.Now(),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.NotFoundError{Resource: "identifier"}
	}

	r.invalidate(prefix, suffix)
	return nil
}

func (r *IdentifierRepository) invalidate(prefix, suffix string) {
	if r.mc == nil {
		return
	}
	r.mc.Delete(identifierCacheKey(doci.ComposeCode(prefix, suffix)))
}

// formatSuffix renders an allocation counter as uppercase base36, zero-padded
// to six characters. Values beyond 36^6 grow past six characters naturally.
func formatSuffix(value int64) string {
	s := strings.ToUpper(strconv.FormatInt(value, 36))
	for len(s) < 6 {
		s = "0" + s
	}
	return s
}

func toModel(identifier domain.Identifier) (models.Identifier, error) {
	metaString, err := json.Marshal(identifier.Meta)
	if err != nil {
		return models.Identifier{}, err
	}

	return models.Identifier{
		ID:          identifier.Code,
		Prefix:      identifier.Prefix,
		Suffix:      identifier.Suffix,
		Kind:        string(identifier.Kind),
		Owner:       identifier.Owner,
		Status:      string(identifier.Status),
		Meta:        string(metaString),
		MetadataRef: identifier.MetadataRef,
		ChainRef:    identifier.ChainRef,
		Policy:      identifier.Policy,
	}, nil
}

func fromModel(record models.Identifier) (domain.Identifier, error) {
	meta := map[string]any{}
	if record.Meta != "" {
		if err := json.Unmarshal([]byte(record.Meta), &meta); err != nil {
			return domain.Identifier{}, err
		}
	}

	return domain.Identifier{
		Prefix:      record.Prefix,
		Suffix:      record.Suffix,
		Code:        doci.ComposeCode(record.Prefix, record.Suffix),
		Kind:        domain.Kind(record.Kind),
		Owner:       record.Owner,
		Status:      domain.Status(record.Status),
		Meta:        meta,
		MetadataRef: record.MetadataRef,
		ChainRef:    record.ChainRef,
		Policy:      record.Policy,
		CreatedAt:   record.CDate,
		UpdatedAt:   record.MDate,
	}, nil
}
