package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/shobha-cmd/vehicleSalesManagement-sub000/internal/domain"
	apperrors "github.com/shobha-cmd/vehicleSalesManagement-sub000/pkg/errors"
)

func TestFinanceInitiate_OpensNewRound(t *testing.T) {
	financeRepo := new(mockFinanceRepository)
	svc := NewFinanceService(financeRepo, newTestLogger())
	ctx := context.Background()

	financeRepo.On("CreateActive", ctx, "VO-2025-000001").Return(&domain.FinanceRecord{
		ID:      "fin-1",
		OrderID: "VO-2025-000001",
		Status:  domain.FinancePending,
	}, nil)

	rec, err := svc.Initiate(ctx, "VO-2025-000001")
	require.NoError(t, err)
	assert.Equal(t, "fin-1", rec.ID)
	assert.Equal(t, domain.FinancePending, rec.Status)

	financeRepo.AssertExpectations(t)
}

func TestFinanceInitiate_ReturnsExistingRound(t *testing.T) {
	financeRepo := new(mockFinanceRepository)
	svc := NewFinanceService(financeRepo, newTestLogger())
	ctx := context.Background()

	financeRepo.On("CreateActive", ctx, "VO-2025-000001").
		Return(nil, apperrors.AlreadyExists("finance record", "order_id", "VO-2025-000001"))
	financeRepo.On("GetActiveByOrder", ctx, "VO-2025-000001").Return(&domain.FinanceRecord{
		ID:      "fin-1",
		OrderID: "VO-2025-000001",
		Status:  domain.FinancePending,
	}, nil)

	rec, err := svc.Initiate(ctx, "VO-2025-000001")
	require.NoError(t, err)
	assert.Equal(t, "fin-1", rec.ID)

	financeRepo.AssertExpectations(t)
}

func TestFinanceDecide_Approve(t *testing.T) {
	financeRepo := new(mockFinanceRepository)
	svc := NewFinanceService(financeRepo, newTestLogger())
	ctx := context.Background()

	financeRepo.On("GetActiveByOrder", ctx, "VO-2025-000001").Return(&domain.FinanceRecord{
		ID:      "fin-1",
		OrderID: "VO-2025-000001",
		Status:  domain.FinancePending,
	}, nil)
	financeRepo.On("Decide", ctx, "fin-1", domain.FinanceApproved, "alice").Return(nil)

	rec, err := svc.Decide(ctx, "VO-2025-000001", domain.FinanceApproved, "alice")
	require.NoError(t, err)
	assert.Equal(t, domain.FinanceApproved, rec.Status)
	assert.Equal(t, "alice", rec.DecidedBy)

	financeRepo.AssertExpectations(t)
}

func TestFinanceDecide_NoActiveRound(t *testing.T) {
	financeRepo := new(mockFinanceRepository)
	svc := NewFinanceService(financeRepo, newTestLogger())
	ctx := context.Background()

	financeRepo.On("GetActiveByOrder", ctx, "VO-2025-000001").
		Return(nil, apperrors.NotFound("finance record", "VO-2025-000001"))

	rec, err := svc.Decide(ctx, "VO-2025-000001", domain.FinanceRejected, "bob")
	assert.Nil(t, rec)
	assert.ErrorIs(t, err, apperrors.ErrInvalidState)

	financeRepo.AssertNotCalled(t, "Decide", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestFinanceDecide_InvalidStatus(t *testing.T) {
	financeRepo := new(mockFinanceRepository)
	svc := NewFinanceService(financeRepo, newTestLogger())

	rec, err := svc.Decide(context.Background(), "VO-2025-000001", "MAYBE", "alice")
	assert.Nil(t, rec)
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
}

func TestFinanceDecide_MissingActor(t *testing.T) {
	financeRepo := new(mockFinanceRepository)
	svc := NewFinanceService(financeRepo, newTestLogger())

	rec, err := svc.Decide(context.Background(), "VO-2025-000001", domain.FinanceApproved, "")
	assert.Nil(t, rec)
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
}

func TestDispatch_CreatesOnce(t *testing.T) {
	dispatchRepo := new(mockDispatchRepository)
	svc := NewDispatchService(dispatchRepo, newTestLogger())
	ctx := context.Background()

	dispatchRepo.On("CreateDispatch", ctx, "VO-2025-000001").
		Return(&domain.DispatchRecord{ID: "disp-1", OrderID: "VO-2025-000001"}, true, nil).Once()
	dispatchRepo.On("CreateDispatch", ctx, "VO-2025-000001").
		Return(&domain.DispatchRecord{ID: "disp-1", OrderID: "VO-2025-000001"}, false, nil).Once()

	rec, created, err := svc.Dispatch(ctx, "VO-2025-000001")
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, "disp-1", rec.ID)

	rec, created, err = svc.Dispatch(ctx, "VO-2025-000001")
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, "disp-1", rec.ID)

	dispatchRepo.AssertExpectations(t)
}

func TestDeliver_CreatesOnce(t *testing.T) {
	dispatchRepo := new(mockDispatchRepository)
	svc := NewDispatchService(dispatchRepo, newTestLogger())
	ctx := context.Background()

	dispatchRepo.On("CreateDelivery", ctx, "VO-2025-000001").
		Return(&domain.DeliveryRecord{ID: "del-1", OrderID: "VO-2025-000001"}, true, nil)

	rec, created, err := svc.Deliver(ctx, "VO-2025-000001")
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, "del-1", rec.ID)
}
