package reconciliation

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/storefront-checkout/pkg/db/models"
	"github.com/angelmondragon/storefront-checkout/pkg/enums"
)

// Repository manages persistence for payment attempts.
type Repository interface {
	Upsert(ctx context.Context, attempt *models.PaymentAttempt) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.PaymentAttempt, error)
	ListByStatus(ctx context.Context, status enums.ReconciliationStatus, limit, offset int) ([]models.PaymentAttempt, int64, error)
	UpdateProviderStatus(ctx context.Context, provider enums.PaymentMethod, providerPaymentID, status string, detail *string) (int64, error)
	Resolve(ctx context.Context, id uuid.UUID, resolvedBy, note string, at time.Time) (int64, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	if db == nil {
		return nil
	}
	return &repository{db: db}
}

// Upsert inserts the attempt, or refreshes the row already holding the same
// provider payment id.
func (r *repository) Upsert(ctx context.Context, attempt *models.PaymentAttempt) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "provider"}, {Name: "provider_payment_id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"status",
				"status_detail",
				"amount_minor",
				"idempotency_key",
				"reconciliation_status",
				"vendure_error",
				"updated_at",
			}),
		}).
		Create(attempt).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.PaymentAttempt, error) {
	var attempt models.PaymentAttempt
	err := r.db.WithContext(ctx).Where("id = ?", id.String()).First(&attempt).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &attempt, nil
}

func (r *repository) ListByStatus(ctx context.Context, status enums.ReconciliationStatus, limit, offset int) ([]models.PaymentAttempt, int64, error) {
	scoped := func() *gorm.DB {
		query := r.db.WithContext(ctx).Model(&models.PaymentAttempt{})
		if status != "" {
			query = query.Where("reconciliation_status = ?", status)
		}
		return query
	}

	var total int64
	if err := scoped().Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var attempts []models.PaymentAttempt
	if err := scoped().
		Order("created_at DESC").
		Order("id DESC").
		Limit(limit).
		Offset(offset).
		Find(&attempts).Error; err != nil {
		return nil, 0, err
	}
	return attempts, total, nil
}

func (r *repository) UpdateProviderStatus(ctx context.Context, provider enums.PaymentMethod, providerPaymentID, status string, detail *string) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&models.PaymentAttempt{}).
		Where("provider = ? AND provider_payment_id = ?", provider, providerPaymentID).
		Updates(map[string]any{
			"status":        status,
			"status_detail": detail,
			"updated_at":    time.Now().UTC(),
		})
	return res.RowsAffected, res.Error
}

// Resolve only touches rows still waiting for an operator.
func (r *repository) Resolve(ctx context.Context, id uuid.UUID, resolvedBy, note string, at time.Time) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&models.PaymentAttempt{}).
		Where("id = ? AND reconciliation_status = ?", id.String(), enums.ReconciliationRequired).
		Updates(map[string]any{
			"reconciliation_status": enums.ReconciliationResolved,
			"resolved_by":           resolvedBy,
			"resolution_note":       note,
			"resolved_at":           at,
			"updated_at":            at,
		})
	return res.RowsAffected, res.Error
}
