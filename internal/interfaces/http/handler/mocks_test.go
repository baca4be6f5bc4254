package handler

import (
	"context"
	"io"

	appledger "github.com/CortekUK/drive-247-sub002/internal/application/ledger"
	"github.com/CortekUK/drive-247-sub002/internal/application/billing"
	"github.com/CortekUK/drive-247-sub002/internal/domain/ledger"
	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
)

// MockLedgerService is a mock of the ledger service's handler-facing methods
type MockLedgerService struct {
	mock.Mock
}

func (m *MockLedgerService) RecordPayment(ctx context.Context, tenantID uuid.UUID, params ledger.NewPaymentParams, apply bool) (*appledger.RecordPaymentResult, error) {
	args := m.Called(ctx, tenantID, params, apply)
	result, _ := args.Get(0).(*appledger.RecordPaymentResult)
	return result, args.Error(1)
}

func (m *MockLedgerService) ApplyPayment(ctx context.Context, tenantID, paymentID uuid.UUID, targets []ledger.Category) (*appledger.ProcessResult, error) {
	args := m.Called(ctx, tenantID, paymentID, targets)
	result, _ := args.Get(0).(*appledger.ProcessResult)
	return result, args.Error(1)
}

func (m *MockLedgerService) Refund(ctx context.Context, req appledger.RefundRequest) (*appledger.RefundResult, error) {
	args := m.Called(ctx, req)
	result, _ := args.Get(0).(*appledger.RefundResult)
	return result, args.Error(1)
}

func (m *MockLedgerService) GetPayment(ctx context.Context, tenantID, paymentID uuid.UUID) (*appledger.PaymentDetail, error) {
	args := m.Called(ctx, tenantID, paymentID)
	result, _ := args.Get(0).(*appledger.PaymentDetail)
	return result, args.Error(1)
}

func (m *MockLedgerService) DeductFromCharge(ctx context.Context, req appledger.DeductRequest) (*appledger.DeductResult, error) {
	args := m.Called(ctx, req)
	result, _ := args.Get(0).(*appledger.DeductResult)
	return result, args.Error(1)
}

func (m *MockLedgerService) RentalLedger(ctx context.Context, tenantID, rentalID uuid.UUID) (*appledger.RentalLedger, error) {
	args := m.Called(ctx, tenantID, rentalID)
	result, _ := args.Get(0).(*appledger.RentalLedger)
	return result, args.Error(1)
}

func (m *MockLedgerService) CustomerBalance(ctx context.Context, tenantID, customerID uuid.UUID) (*appledger.CustomerBalance, error) {
	args := m.Called(ctx, tenantID, customerID)
	result, _ := args.Get(0).(*appledger.CustomerBalance)
	return result, args.Error(1)
}

// MockChargeService is a mock of ChargeService
type MockChargeService struct {
	mock.Mock
}

func (m *MockChargeService) CreateCharge(ctx context.Context, tenantID uuid.UUID, req appledger.CreateChargeRequest) (*ledger.LedgerEntry, error) {
	args := m.Called(ctx, tenantID, req)
	result, _ := args.Get(0).(*ledger.LedgerEntry)
	return result, args.Error(1)
}

func (m *MockChargeService) ReverseCharge(ctx context.Context, tenantID, chargeID uuid.UUID, reason string) (*appledger.ReverseChargeResult, error) {
	args := m.Called(ctx, tenantID, chargeID, reason)
	result, _ := args.Get(0).(*appledger.ReverseChargeResult)
	return result, args.Error(1)
}

func (m *MockChargeService) ImportCharges(ctx context.Context, tenantID uuid.UUID, src io.Reader, dryRun bool) (*appledger.ChargeImportResult, error) {
	body, _ := io.ReadAll(src)
	args := m.Called(ctx, tenantID, string(body), dryRun)
	result, _ := args.Get(0).(*appledger.ChargeImportResult)
	return result, args.Error(1)
}

// MockCreditSweeper is a mock of CreditSweeper
type MockCreditSweeper struct {
	mock.Mock
}

func (m *MockCreditSweeper) SweepCredit(ctx context.Context, tenantID, customerID uuid.UUID) (*appledger.CreditSweepResult, error) {
	args := m.Called(ctx, tenantID, customerID)
	result, _ := args.Get(0).(*appledger.CreditSweepResult)
	return result, args.Error(1)
}

// MockConsistencyChecker is a mock of ConsistencyChecker
type MockConsistencyChecker struct {
	mock.Mock
}

func (m *MockConsistencyChecker) Check(ctx context.Context, tenantID, customerID uuid.UUID, repair bool) (*appledger.ConsistencyReport, error) {
	args := m.Called(ctx, tenantID, customerID, repair)
	result, _ := args.Get(0).(*appledger.ConsistencyReport)
	return result, args.Error(1)
}

// MockWebhookProcessor is a mock of WebhookProcessor
type MockWebhookProcessor struct {
	mock.Mock
}

func (m *MockWebhookProcessor) ProcessWebhook(ctx context.Context, payload []byte, signature string) (*billing.WebhookResult, error) {
	args := m.Called(ctx, payload, signature)
	result, _ := args.Get(0).(*billing.WebhookResult)
	return result, args.Error(1)
}

var (
	_ PaymentService     = (*MockLedgerService)(nil)
	_ RentalService      = (*MockLedgerService)(nil)
	_ BalanceReader      = (*MockLedgerService)(nil)
	_ ChargeService      = (*MockChargeService)(nil)
	_ CreditSweeper      = (*MockCreditSweeper)(nil)
	_ ConsistencyChecker = (*MockConsistencyChecker)(nil)
	_ WebhookProcessor   = (*MockWebhookProcessor)(nil)
)
