package orders

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sentra-orders/sentra/internal/platform/httpx"
	"github.com/sentra-orders/sentra/internal/shared"
	"github.com/sentra-orders/sentra/internal/workflow"
)

const testTenant = "tenant-1"

func newTestService(t *testing.T) (*Service, *memoryOrderRepo) {
	t.Helper()
	repo := newMemoryOrderRepo()
	return NewService(repo, nil, nil, nil, nil), repo
}

func createTestOrder(t *testing.T, svc *Service) *Order {
	t.Helper()
	order, err := svc.Create(context.Background(), CreateOrderRequest{
		TenantID:   testTenant,
		CustomerID: "cust-1",
		Currency:   "USD",
		Items: []CreateOrderItemReq{
			{SKU: "WIDGET-1", Quantity: 10, UnitPrice: 2500},
			{SKU: "WIDGET-2", Quantity: 2, UnitPrice: 10000},
		},
	})
	require.NoError(t, err)
	return order
}

func forceStatus(t *testing.T, repo *memoryOrderRepo, id string, status workflow.Status) {
	t.Helper()
	o := repo.orders[id]
	o.Status = status
	repo.orders[id] = o
}

func TestCreateOrder(t *testing.T) {
	svc, _ := newTestService(t)
	order := createTestOrder(t, svc)

	require.Equal(t, workflow.StatusDraft, order.Status)
	require.Equal(t, PaymentUnpaid, order.PaymentStatus)
	require.Equal(t, int64(45000), order.TotalAmount)
	require.Len(t, order.Items, 2)
	require.True(t, strings.HasPrefix(order.OrderNumber, "ORD-"))

	got, err := svc.Get(context.Background(), testTenant, order.ID)
	require.NoError(t, err)
	require.Len(t, got.History, 1)
	require.Equal(t, workflow.StatusDraft, got.History[0].ToStatus)
}

func TestTransitionStageRoutine(t *testing.T) {
	svc, _ := newTestService(t)
	order := createTestOrder(t, svc)

	got, err := svc.TransitionStage(context.Background(), testTenant, order.ID, TransitionRequest{
		TargetStage: workflow.StagePending,
	})
	require.NoError(t, err)
	require.Equal(t, workflow.StatusPending, got.Status)
}

func TestTransitionStageRejectsSkips(t *testing.T) {
	svc, _ := newTestService(t)
	order := createTestOrder(t, svc)

	_, err := svc.TransitionStage(context.Background(), testTenant, order.ID, TransitionRequest{
		TargetStage: workflow.StageShipping,
	})
	require.ErrorIs(t, err, httpx.ErrValidation)
}

func TestTransitionStageEnforcesHighSeverityNote(t *testing.T) {
	svc, repo := newTestService(t)
	order := createTestOrder(t, svc)
	forceStatus(t, repo, order.ID, workflow.StatusFullPayment)

	// full payment into production is critical: needs a long note plus
	// risk acknowledgment
	_, err := svc.TransitionStage(context.Background(), testTenant, order.ID, TransitionRequest{
		TargetStage: workflow.StageInProduction,
	})
	require.ErrorIs(t, err, httpx.ErrValidation)

	_, err = svc.TransitionStage(context.Background(), testTenant, order.ID, TransitionRequest{
		TargetStage:     workflow.StageInProduction,
		Note:            "vendor confirmed material availability",
		AcknowledgeRisk: false,
	})
	require.ErrorIs(t, err, httpx.ErrValidation)

	got, err := svc.TransitionStage(context.Background(), testTenant, order.ID, TransitionRequest{
		TargetStage:     workflow.StageInProduction,
		Note:            "vendor confirmed material availability",
		AcknowledgeRisk: true,
	})
	require.NoError(t, err)
	require.Equal(t, workflow.StatusInProduction, got.Status)
}

func TestTransitionRecordsPercentDelta(t *testing.T) {
	svc, _ := newTestService(t)
	order := createTestOrder(t, svc)

	_, err := svc.TransitionStage(context.Background(), testTenant, order.ID, TransitionRequest{
		TargetStage: workflow.StagePending,
	})
	require.NoError(t, err)

	got, err := svc.Get(context.Background(), testTenant, order.ID)
	require.NoError(t, err)
	require.Len(t, got.History, 2)
	last := got.History[1]
	require.Equal(t, workflow.StatusPending, last.ToStatus)
	// draft 0% -> pending 9%
	require.Equal(t, 9, last.PercentDelta)
}

func TestTransitionTerminalOrderFails(t *testing.T) {
	svc, repo := newTestService(t)
	order := createTestOrder(t, svc)
	forceStatus(t, repo, order.ID, workflow.StatusCompleted)

	_, err := svc.TransitionStage(context.Background(), testTenant, order.ID, TransitionRequest{
		TargetStage: workflow.StagePending,
	})
	require.ErrorIs(t, err, httpx.ErrValidation)
}

func TestRecordPaymentPartialThenFull(t *testing.T) {
	svc, repo := newTestService(t)
	order := createTestOrder(t, svc)
	forceStatus(t, repo, order.ID, workflow.StatusAwaitingPayment)

	got, err := svc.RecordPayment(context.Background(), testTenant, order.ID, PaymentRequest{
		Kind: PaymentKindDeposit, Amount: 15000,
	})
	require.NoError(t, err)
	require.Equal(t, PaymentPartial, got.PaymentStatus)
	require.Equal(t, workflow.StatusPartialPayment, got.Status)
	require.Equal(t, int64(15000), got.AmountPaid)

	got, err = svc.RecordPayment(context.Background(), testTenant, order.ID, PaymentRequest{
		Kind: PaymentKindBalance, Amount: 30000,
	})
	require.NoError(t, err)
	require.Equal(t, PaymentPaid, got.PaymentStatus)
	require.Equal(t, workflow.StatusFullPayment, got.Status)
	require.Equal(t, got.TotalAmount, got.AmountPaid)
}

func TestRecordPaymentNeverExceedsTotal(t *testing.T) {
	svc, repo := newTestService(t)
	order := createTestOrder(t, svc)
	forceStatus(t, repo, order.ID, workflow.StatusAwaitingPayment)

	_, err := svc.RecordPayment(context.Background(), testTenant, order.ID, PaymentRequest{
		Kind: PaymentKindDeposit, Amount: order.TotalAmount + 1,
	})
	require.ErrorIs(t, err, httpx.ErrValidation)
}

func TestRecordPaymentBalanceMustSettle(t *testing.T) {
	svc, repo := newTestService(t)
	order := createTestOrder(t, svc)
	forceStatus(t, repo, order.ID, workflow.StatusAwaitingPayment)

	_, err := svc.RecordPayment(context.Background(), testTenant, order.ID, PaymentRequest{
		Kind: PaymentKindBalance, Amount: 100,
	})
	require.ErrorIs(t, err, httpx.ErrValidation)
}

func TestRefund(t *testing.T) {
	svc, repo := newTestService(t)
	order := createTestOrder(t, svc)
	forceStatus(t, repo, order.ID, workflow.StatusAwaitingPayment)

	_, err := svc.RecordPayment(context.Background(), testTenant, order.ID, PaymentRequest{
		Kind: PaymentKindDeposit, Amount: 45000,
	})
	require.NoError(t, err)

	got, err := svc.RecordPayment(context.Background(), testTenant, order.ID, PaymentRequest{
		Kind: PaymentKindRefund, Amount: 45000,
	})
	require.NoError(t, err)
	require.Equal(t, workflow.StatusRefunded, got.Status)
	require.Equal(t, PaymentRefunded, got.PaymentStatus)

	// refunded orders report 100% but are terminal
	progress := workflow.CalculateProgress(got.Status)
	require.Equal(t, 100, progress.Percentage)
	require.True(t, progress.IsTerminal)
}

func TestRefundWithoutPaymentFails(t *testing.T) {
	svc, _ := newTestService(t)
	order := createTestOrder(t, svc)

	_, err := svc.RecordPayment(context.Background(), testTenant, order.ID, PaymentRequest{
		Kind: PaymentKindRefund, Amount: 100,
	})
	require.ErrorIs(t, err, httpx.ErrValidation)
}

func TestCancelRequiresAcknowledgment(t *testing.T) {
	svc, _ := newTestService(t)
	order := createTestOrder(t, svc)

	_, err := svc.Cancel(context.Background(), testTenant, order.ID, CancelRequest{
		Reason: "customer withdrew the purchase order",
	})
	require.ErrorIs(t, err, httpx.ErrValidation)

	got, err := svc.Cancel(context.Background(), testTenant, order.ID, CancelRequest{
		Reason:          "customer withdrew the purchase order",
		AcknowledgeRisk: true,
	})
	require.NoError(t, err)
	require.Equal(t, workflow.StatusCancelled, got.Status)
	require.Equal(t, 0, workflow.CalculateProgress(got.Status).Percentage)
}

func TestDeleteOnlyDrafts(t *testing.T) {
	svc, repo := newTestService(t)
	order := createTestOrder(t, svc)

	forceStatus(t, repo, order.ID, workflow.StatusInProduction)
	err := svc.Delete(context.Background(), testTenant, order.ID)
	require.ErrorIs(t, err, httpx.ErrValidation)

	forceStatus(t, repo, order.ID, workflow.StatusDraft)
	require.NoError(t, svc.Delete(context.Background(), testTenant, order.ID))

	_, err = svc.Get(context.Background(), testTenant, order.ID)
	require.ErrorIs(t, err, httpx.ErrNotFound)
}

func TestAdvanceOnQuoteAccepted(t *testing.T) {
	svc, repo := newTestService(t)
	order := createTestOrder(t, svc)
	forceStatus(t, repo, order.ID, workflow.StatusVendorNegotiation)

	require.NoError(t, svc.AdvanceOnQuoteAccepted(context.Background(), testTenant, order.ID, 10000))

	got, err := svc.Get(context.Background(), testTenant, order.ID)
	require.NoError(t, err)
	require.Equal(t, workflow.StatusCustomerQuote, got.Status)
	require.NotNil(t, got.QuotationAmount)
	require.Equal(t, int64(13500), *got.QuotationAmount)
	last := got.History[len(got.History)-1]
	require.Equal(t, shared.ActorSystem, last.ActorType)
}

func TestRevertToSourcing(t *testing.T) {
	svc, repo := newTestService(t)
	order := createTestOrder(t, svc)
	forceStatus(t, repo, order.ID, workflow.StatusVendorNegotiation)

	require.NoError(t, svc.RevertToSourcing(context.Background(), testTenant, order.ID, "all vendor quotes rejected"))

	got, err := svc.Get(context.Background(), testTenant, order.ID)
	require.NoError(t, err)
	require.Equal(t, workflow.StatusVendorSourcing, got.Status)

	// reverting an order already back in sourcing is a no-op
	require.NoError(t, svc.RevertToSourcing(context.Background(), testTenant, order.ID, "again"))
	again, err := svc.Get(context.Background(), testTenant, order.ID)
	require.NoError(t, err)
	require.Equal(t, len(got.History), len(again.History))
}

func TestProgressReportListsNextStageRules(t *testing.T) {
	svc, repo := newTestService(t)
	order := createTestOrder(t, svc)
	forceStatus(t, repo, order.ID, workflow.StatusFullPayment)

	report, err := svc.Progress(context.Background(), testTenant, order.ID)
	require.NoError(t, err)
	require.Equal(t, 64, report.Progress.Percentage)
	require.Len(t, report.NextStages, 1)

	next := report.NextStages[0]
	require.Equal(t, workflow.StageInProduction, next.Stage)
	require.Equal(t, workflow.SeverityCritical, next.Confirmation.Severity)
	require.True(t, next.Rules.RequiresRiskAcknowledgment)
}
