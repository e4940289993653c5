package reconciliation

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/storefront-checkout/pkg/db/models"
	"github.com/angelmondragon/storefront-checkout/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-checkout/pkg/errors"
)

type fakeRepository struct {
	upserted     []*models.PaymentAttempt
	upsertErr    error
	updated      int64
	updateCalls  int
	rows         map[uuid.UUID]*models.PaymentAttempt
	resolveCount int64
	listTotal    int64
	listLimit    int
	listOffset   int
}

func (f *fakeRepository) Upsert(ctx context.Context, attempt *models.PaymentAttempt) error {
	if f.upsertErr != nil {
		return f.upsertErr
	}
	f.upserted = append(f.upserted, attempt)
	return nil
}

func (f *fakeRepository) FindByID(ctx context.Context, id uuid.UUID) (*models.PaymentAttempt, error) {
	return f.rows[id], nil
}

func (f *fakeRepository) ListByStatus(ctx context.Context, status enums.ReconciliationStatus, limit, offset int) ([]models.PaymentAttempt, int64, error) {
	f.listLimit = limit
	f.listOffset = offset
	out := []models.PaymentAttempt{}
	for _, row := range f.rows {
		out = append(out, *row)
	}
	return out, f.listTotal, nil
}

func (f *fakeRepository) UpdateProviderStatus(ctx context.Context, provider enums.PaymentMethod, providerPaymentID, status string, detail *string) (int64, error) {
	f.updateCalls++
	return f.updated, nil
}

func (f *fakeRepository) Resolve(ctx context.Context, id uuid.UUID, resolvedBy, note string, at time.Time) (int64, error) {
	if f.resolveCount > 0 {
		row := f.rows[id]
		row.ReconciliationStatus = enums.ReconciliationResolved
		row.ResolvedBy = &resolvedBy
		row.ResolutionNote = &note
		row.ResolvedAt = &at
	}
	return f.resolveCount, nil
}

func TestRecordAttemptFlagsOrderUpdateFailures(t *testing.T) {
	repo := &fakeRepository{}
	svc := NewService(repo, nil, nil)

	svc.RecordAttempt(context.Background(), RecordAttemptInput{
		OrderCode:         "X100",
		Provider:          enums.PaymentMethodMercadoPago,
		ProviderPaymentID: "123",
		Status:            "approved",
		AmountMinor:       15000,
		VendureError:      "Order not found",
	})

	if len(repo.upserted) != 1 {
		t.Fatalf("expected one attempt, got %d", len(repo.upserted))
	}
	row := repo.upserted[0]
	if row.ReconciliationStatus != enums.ReconciliationRequired {
		t.Fatalf("expected required, got %s", row.ReconciliationStatus)
	}
	if row.CurrencyCode != "ARS" {
		t.Fatalf("expected ARS default, got %s", row.CurrencyCode)
	}
	if row.ProviderPaymentID == nil || *row.ProviderPaymentID != "123" {
		t.Fatalf("payment id not stored: %+v", row.ProviderPaymentID)
	}
	if row.ID == uuid.Nil {
		t.Fatalf("expected generated id")
	}
}

func TestRecordAttemptNotRequiredWhenOrderUpdated(t *testing.T) {
	repo := &fakeRepository{}
	NewService(repo, nil, nil).RecordAttempt(context.Background(), RecordAttemptInput{
		OrderCode: "X100",
		Provider:  enums.PaymentMethodMercadoPago,
		Status:    "rejected",
	})
	if repo.upserted[0].ReconciliationStatus != enums.ReconciliationNotRequired {
		t.Fatalf("unexpected status %s", repo.upserted[0].ReconciliationStatus)
	}
	if repo.upserted[0].ProviderPaymentID != nil {
		t.Fatalf("blank payment id should be stored as NULL")
	}
}

func TestRecordAttemptSwallowsRepositoryErrors(t *testing.T) {
	repo := &fakeRepository{upsertErr: errors.New("database is locked")}
	NewService(repo, nil, nil).RecordAttempt(context.Background(), RecordAttemptInput{OrderCode: "X100"})
}

func TestDisabledLedger(t *testing.T) {
	svc := NewService(nil, nil, nil)
	if svc.Enabled() {
		t.Fatalf("ledger without repository must report disabled")
	}
	svc.RecordAttempt(context.Background(), RecordAttemptInput{OrderCode: "X100"})

	applied, err := svc.ApplyProviderStatus(context.Background(), ProviderStatusInput{ProviderPaymentID: "1"})
	if err != nil || applied {
		t.Fatalf("expected silent no-op, got %v %v", applied, err)
	}
	if _, err := svc.List(context.Background(), ListQuery{}); !pkgerrors.IsCode(err, pkgerrors.CodeDependency) {
		t.Fatalf("expected dependency error, got %v", err)
	}
}

func TestApplyProviderStatusInsertsUnknownPayments(t *testing.T) {
	repo := &fakeRepository{}
	svc := NewService(repo, nil, nil)

	applied, err := svc.ApplyProviderStatus(context.Background(), ProviderStatusInput{
		OrderCode:         "X200",
		Provider:          enums.PaymentMethodMercadoPago,
		ProviderPaymentID: "42",
		Status:            "approved",
		AmountMinor:       9990,
	})
	if err != nil || !applied {
		t.Fatalf("expected applied, got %v %v", applied, err)
	}
	if repo.updateCalls != 1 || len(repo.upserted) != 1 {
		t.Fatalf("expected update attempt then insert, got %d/%d", repo.updateCalls, len(repo.upserted))
	}
	if repo.upserted[0].ReconciliationStatus != enums.ReconciliationNotRequired {
		t.Fatalf("webhook rows must not be flagged")
	}
}

func TestApplyProviderStatusUpdatesExistingRows(t *testing.T) {
	repo := &fakeRepository{updated: 1}
	applied, err := NewService(repo, nil, nil).ApplyProviderStatus(context.Background(), ProviderStatusInput{
		OrderCode:         "X200",
		Provider:          enums.PaymentMethodMercadoPago,
		ProviderPaymentID: "42",
		Status:            "refunded",
	})
	if err != nil || !applied {
		t.Fatalf("expected applied, got %v %v", applied, err)
	}
	if len(repo.upserted) != 0 {
		t.Fatalf("existing rows must not be re-inserted")
	}
}

func TestApplyProviderStatusRequiresPaymentID(t *testing.T) {
	_, err := NewService(&fakeRepository{}, nil, nil).ApplyProviderStatus(context.Background(), ProviderStatusInput{})
	if !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestListClampsPaging(t *testing.T) {
	repo := &fakeRepository{listTotal: 230}
	page, err := NewService(repo, nil, nil).List(context.Background(), ListQuery{Limit: 500, Page: 2})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if repo.listLimit != 100 || repo.listOffset != 100 {
		t.Fatalf("unexpected paging %d/%d", repo.listLimit, repo.listOffset)
	}
	if page.Pagination.TotalPages != 3 || !page.Pagination.HasNextPage || !page.Pagination.HasPreviousPage {
		t.Fatalf("unexpected pagination %+v", page.Pagination)
	}
	if page.Attempts == nil {
		t.Fatalf("attempts should encode as an empty list")
	}

	if _, err := NewService(repo, nil, nil).List(context.Background(), ListQuery{Status: "bogus"}); !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error for bad status, got %v", err)
	}
}

func TestResolve(t *testing.T) {
	id := uuid.New()
	repo := &fakeRepository{
		resolveCount: 1,
		rows: map[uuid.UUID]*models.PaymentAttempt{
			id: {ID: id, OrderCode: "X100", ReconciliationStatus: enums.ReconciliationRequired},
		},
	}
	svc := NewService(repo, nil, nil)

	if _, err := svc.Resolve(context.Background(), id, ResolveInput{Operator: "ops"}); !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected note validation, got %v", err)
	}

	resolved, err := svc.Resolve(context.Background(), id, ResolveInput{Operator: "ops", Note: "added by hand"})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if resolved.ReconciliationStatus != enums.ReconciliationResolved {
		t.Fatalf("unexpected status %s", resolved.ReconciliationStatus)
	}

	if _, err := svc.Resolve(context.Background(), id, ResolveInput{Operator: "ops", Note: "again"}); !pkgerrors.IsCode(err, pkgerrors.CodeConflict) {
		t.Fatalf("expected conflict for resolved row, got %v", err)
	}
	if _, err := svc.Resolve(context.Background(), uuid.New(), ResolveInput{Operator: "ops", Note: "x"}); !pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}
