package app_test

import (
	"context"

	"distributor-erp/internal/core"

	"github.com/stretchr/testify/mock"
)

type mockDocuments struct {
	mock.Mock
}

func (m *mockDocuments) PreviewNextNumber(ctx context.Context, companyID int, typeCode, prefix string, fy core.FinancialYear) (*core.NumberPreview, error) {
	args := m.Called(ctx, companyID, typeCode, prefix, fy)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*core.NumberPreview), args.Error(1)
}

func (m *mockDocuments) AllocateAndCreateDocument(ctx context.Context, p core.SubmissionPayload) (*core.Document, error) {
	args := m.Called(ctx, p)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*core.Document), args.Error(1)
}

func (m *mockDocuments) FindByIdempotencyKey(ctx context.Context, companyID int, key string) (*core.Document, error) {
	args := m.Called(ctx, companyID, key)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*core.Document), args.Error(1)
}

func (m *mockDocuments) GetDocumentByID(ctx context.Context, companyID int, id int64) (*core.Document, error) {
	args := m.Called(ctx, companyID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*core.Document), args.Error(1)
}

func (m *mockDocuments) ResolvePrefix(ctx context.Context, companyID int, typeCode, prefix string, fy core.FinancialYear) (*core.PrefixRecord, error) {
	args := m.Called(ctx, companyID, typeCode, prefix, fy)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*core.PrefixRecord), args.Error(1)
}

func (m *mockDocuments) ListPrefixes(ctx context.Context, companyID int, typeCode string, fy core.FinancialYear) ([]core.PrefixRecord, error) {
	args := m.Called(ctx, companyID, typeCode, fy)
	return args.Get(0).([]core.PrefixRecord), args.Error(1)
}

func (m *mockDocuments) ListDocuments(ctx context.Context, companyID int, typeCode string, limit int) ([]core.Document, error) {
	args := m.Called(ctx, companyID, typeCode, limit)
	return args.Get(0).([]core.Document), args.Error(1)
}

func (m *mockDocuments) CancelDocument(ctx context.Context, companyID int, id int64, reason string) (*core.Document, error) {
	args := m.Called(ctx, companyID, id, reason)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*core.Document), args.Error(1)
}

type mockParties struct {
	mock.Mock
}

func (m *mockParties) GetCompanyByCode(ctx context.Context, companyCode string) (*core.Company, error) {
	args := m.Called(ctx, companyCode)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*core.Company), args.Error(1)
}

func (m *mockParties) CreateParty(ctx context.Context, companyID int, input core.PartyInput) (*core.Party, error) {
	args := m.Called(ctx, companyID, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*core.Party), args.Error(1)
}

func (m *mockParties) GetParties(ctx context.Context, companyID int) ([]core.Party, error) {
	args := m.Called(ctx, companyID)
	return args.Get(0).([]core.Party), args.Error(1)
}

func (m *mockParties) GetPartyByCode(ctx context.Context, companyID int, code string) (*core.Party, error) {
	args := m.Called(ctx, companyID, code)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*core.Party), args.Error(1)
}

type mockRules struct {
	mock.Mock
}

func (m *mockRules) ResolveAccount(ctx context.Context, companyID int, ruleType string) (string, error) {
	args := m.Called(ctx, companyID, ruleType)
	return args.String(0), args.Error(1)
}

type mockLedger struct {
	mock.Mock
}

func (m *mockLedger) GetBalances(ctx context.Context, companyID int) ([]core.AccountBalance, error) {
	args := m.Called(ctx, companyID)
	return args.Get(0).([]core.AccountBalance), args.Error(1)
}

type mockStock struct {
	mock.Mock
}

func (m *mockStock) GetWarehouses(ctx context.Context, companyID int) ([]core.Warehouse, error) {
	args := m.Called(ctx, companyID)
	return args.Get(0).([]core.Warehouse), args.Error(1)
}

func (m *mockStock) GetStockLevels(ctx context.Context, companyID int) ([]core.StockLevel, error) {
	args := m.Called(ctx, companyID)
	return args.Get(0).([]core.StockLevel), args.Error(1)
}
