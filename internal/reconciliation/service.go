// Package reconciliation keeps the payment attempt ledger operators use to find
// provider charges the order system never recorded.
package reconciliation

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/storefront-checkout/pkg/db/models"
	"github.com/angelmondragon/storefront-checkout/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-checkout/pkg/errors"
	"github.com/angelmondragon/storefront-checkout/pkg/logger"
	"github.com/angelmondragon/storefront-checkout/pkg/metrics"
	"github.com/angelmondragon/storefront-checkout/pkg/types"
)

const (
	defaultPageSize = 25
	maxPageSize     = 100
)

// Service records payment attempts and serves the operator view of the ledger.
// Without a repository every write is skipped and reads report the ledger as
// unavailable.
type Service interface {
	Enabled() bool
	RecordAttempt(ctx context.Context, input RecordAttemptInput)
	ApplyProviderStatus(ctx context.Context, input ProviderStatusInput) (bool, error)
	List(ctx context.Context, query ListQuery) (*AttemptPage, error)
	Resolve(ctx context.Context, id uuid.UUID, input ResolveInput) (*models.PaymentAttempt, error)
}

// RecordAttemptInput is one provider charge outcome seen during checkout.
type RecordAttemptInput struct {
	OrderCode         string
	Provider          enums.PaymentMethod
	ProviderPaymentID string
	Status            string
	StatusDetail      string
	AmountMinor       int64
	CurrencyCode      string
	IdempotencyKey    string
	// VendureError is set when the charge succeeded but recording it on the
	// order failed. The attempt is then flagged for reconciliation.
	VendureError string
}

// ProviderStatusInput is a status change reported by a provider notification.
type ProviderStatusInput struct {
	OrderCode         string
	Provider          enums.PaymentMethod
	ProviderPaymentID string
	Status            string
	StatusDetail      string
	AmountMinor       int64
	CurrencyCode      string
}

type ListQuery struct {
	Status enums.ReconciliationStatus
	Limit  int
	Page   int
}

type ResolveInput struct {
	Operator string
	Note     string
}

type AttemptPage struct {
	Attempts   []AttemptDTO     `json:"attempts"`
	Pagination types.Pagination `json:"pagination"`
}

// AttemptDTO is the operator-facing view of a payment attempt.
type AttemptDTO struct {
	ID                   uuid.UUID                  `json:"id"`
	OrderCode            string                     `json:"orderCode"`
	Provider             enums.PaymentMethod        `json:"provider"`
	ProviderPaymentID    *string                    `json:"providerPaymentId,omitempty"`
	Status               string                     `json:"status"`
	StatusDetail         *string                    `json:"statusDetail,omitempty"`
	AmountMinor          int64                      `json:"amountMinor"`
	CurrencyCode         string                     `json:"currencyCode"`
	ReconciliationStatus enums.ReconciliationStatus `json:"reconciliationStatus"`
	VendureError         *string                    `json:"vendureError,omitempty"`
	ResolutionNote       *string                    `json:"resolutionNote,omitempty"`
	ResolvedBy           *string                    `json:"resolvedBy,omitempty"`
	ResolvedAt           *time.Time                 `json:"resolvedAt,omitempty"`
	CreatedAt            time.Time                  `json:"createdAt"`
	UpdatedAt            time.Time                  `json:"updatedAt"`
}

type service struct {
	repo    Repository
	logg    *logger.Logger
	metrics *metrics.CheckoutMetrics
	now     func() time.Time
}

// NewService wires the ledger. A nil repository yields a service that drops
// writes, used when no database is configured.
func NewService(repo Repository, logg *logger.Logger, m *metrics.CheckoutMetrics) Service {
	return &service{
		repo:    repo,
		logg:    logg,
		metrics: m,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

func (s *service) Enabled() bool {
	return s.repo != nil
}

// RecordAttempt never fails the caller. Errors are logged.
func (s *service) RecordAttempt(ctx context.Context, input RecordAttemptInput) {
	status := enums.ReconciliationNotRequired
	if strings.TrimSpace(input.VendureError) != "" {
		status = enums.ReconciliationRequired
		s.metrics.IncReconciliationRequired(string(input.Provider))
	}
	if s.repo == nil {
		return
	}

	attempt := &models.PaymentAttempt{
		ID:                   uuid.New(),
		OrderCode:            input.OrderCode,
		Provider:             input.Provider,
		ProviderPaymentID:    optional(input.ProviderPaymentID),
		Status:               input.Status,
		StatusDetail:         optional(input.StatusDetail),
		AmountMinor:          input.AmountMinor,
		CurrencyCode:         currencyOrDefault(input.CurrencyCode),
		IdempotencyKey:       optional(input.IdempotencyKey),
		ReconciliationStatus: status,
		VendureError:         optional(input.VendureError),
	}
	if err := s.repo.Upsert(ctx, attempt); err != nil {
		s.logFailure(ctx, input.OrderCode, input.ProviderPaymentID, "reconciliation.record_failed", err)
		return
	}
	if s.logg != nil && status == enums.ReconciliationRequired {
		logCtx := s.logg.WithOrderCode(ctx, input.OrderCode)
		logCtx = s.logg.WithPaymentID(logCtx, input.ProviderPaymentID)
		s.logg.Warn(logCtx, "reconciliation.required")
	}
}

// ApplyProviderStatus updates the attempt holding the provider payment id. An
// unknown payment is inserted so the ledger reflects every provider charge;
// reconciliation flags of existing rows are left untouched.
func (s *service) ApplyProviderStatus(ctx context.Context, input ProviderStatusInput) (bool, error) {
	if s.repo == nil {
		return false, nil
	}
	if strings.TrimSpace(input.ProviderPaymentID) == "" {
		return false, pkgerrors.New(pkgerrors.CodeValidation, "provider payment id is required")
	}

	updated, err := s.repo.UpdateProviderStatus(ctx, input.Provider, input.ProviderPaymentID, input.Status, optional(input.StatusDetail))
	if err != nil {
		return false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update payment attempt")
	}
	if updated > 0 {
		return true, nil
	}
	if strings.TrimSpace(input.OrderCode) == "" {
		return false, nil
	}

	attempt := &models.PaymentAttempt{
		ID:                   uuid.New(),
		OrderCode:            input.OrderCode,
		Provider:             input.Provider,
		ProviderPaymentID:    optional(input.ProviderPaymentID),
		Status:               input.Status,
		StatusDetail:         optional(input.StatusDetail),
		AmountMinor:          input.AmountMinor,
		CurrencyCode:         currencyOrDefault(input.CurrencyCode),
		ReconciliationStatus: enums.ReconciliationNotRequired,
	}
	if err := s.repo.Upsert(ctx, attempt); err != nil {
		return false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "insert payment attempt")
	}
	return true, nil
}

func (s *service) List(ctx context.Context, query ListQuery) (*AttemptPage, error) {
	if s.repo == nil {
		return nil, ledgerUnavailable()
	}
	if query.Status != "" && !query.Status.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid reconciliation status")
	}

	limit := query.Limit
	if limit <= 0 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	page := query.Page
	if page < 1 {
		page = 1
	}

	attempts, total, err := s.repo.ListByStatus(ctx, query.Status, limit, (page-1)*limit)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list payment attempts")
	}

	out := make([]AttemptDTO, 0, len(attempts))
	for _, attempt := range attempts {
		out = append(out, ToDTO(attempt))
	}
	totalPages := int((total + int64(limit) - 1) / int64(limit))
	return &AttemptPage{
		Attempts: out,
		Pagination: types.Pagination{
			TotalItems:      int(total),
			CurrentPage:     page,
			TotalPages:      totalPages,
			HasNextPage:     page < totalPages,
			HasPreviousPage: page > 1,
			Limit:           limit,
		},
	}, nil
}

func (s *service) Resolve(ctx context.Context, id uuid.UUID, input ResolveInput) (*models.PaymentAttempt, error) {
	if s.repo == nil {
		return nil, ledgerUnavailable()
	}
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "attempt id is required")
	}
	operator := strings.TrimSpace(input.Operator)
	if operator == "" {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "operator identity required")
	}
	note := strings.TrimSpace(input.Note)
	if note == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "resolution note is required").
			WithDetails(map[string]string{"note": "required"})
	}

	existing, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load payment attempt")
	}
	if existing == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "payment attempt not found")
	}
	if existing.ReconciliationStatus != enums.ReconciliationRequired {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "payment attempt does not require reconciliation").
			WithDetails(map[string]string{"reconciliationStatus": string(existing.ReconciliationStatus)})
	}

	updated, err := s.repo.Resolve(ctx, id, operator, note, s.now())
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "resolve payment attempt")
	}
	if updated == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "payment attempt was resolved concurrently")
	}

	resolved, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload payment attempt")
	}
	if s.logg != nil && resolved != nil {
		logCtx := s.logg.WithOrderCode(ctx, resolved.OrderCode)
		logCtx = s.logg.WithField(logCtx, "resolved_by", operator)
		s.logg.Info(logCtx, "reconciliation.resolved")
	}
	return resolved, nil
}

// ToDTO exposes the operator view of a single attempt.
func ToDTO(a models.PaymentAttempt) AttemptDTO {
	return AttemptDTO{
		ID:                   a.ID,
		OrderCode:            a.OrderCode,
		Provider:             a.Provider,
		ProviderPaymentID:    a.ProviderPaymentID,
		Status:               a.Status,
		StatusDetail:         a.StatusDetail,
		AmountMinor:          a.AmountMinor,
		CurrencyCode:         a.CurrencyCode,
		ReconciliationStatus: a.ReconciliationStatus,
		VendureError:         a.VendureError,
		ResolutionNote:       a.ResolutionNote,
		ResolvedBy:           a.ResolvedBy,
		ResolvedAt:           a.ResolvedAt,
		CreatedAt:            a.CreatedAt,
		UpdatedAt:            a.UpdatedAt,
	}
}

func (s *service) logFailure(ctx context.Context, orderCode, paymentID, msg string, err error) {
	if s.logg == nil {
		return
	}
	ctx = s.logg.WithOrderCode(ctx, orderCode)
	if paymentID != "" {
		ctx = s.logg.WithPaymentID(ctx, paymentID)
	}
	s.logg.Error(ctx, msg, err)
}

func ledgerUnavailable() error {
	return pkgerrors.New(pkgerrors.CodeDependency, "reconciliation ledger is not configured")
}

func optional(value string) *string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

func currencyOrDefault(code string) string {
	if strings.TrimSpace(code) == "" {
		return "ARS"
	}
	return strings.ToUpper(strings.TrimSpace(code))
}
