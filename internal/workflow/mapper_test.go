package workflow

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMapStatusToStageIsTotal(t *testing.T) {
	for status, want := range statusToStage {
		require.Equal(t, want, MapStatusToStage(status))
	}

	// Unknown statuses fall back to draft instead of failing.
	require.Equal(t, StageDraft, MapStatusToStage(Status("legacy_mystery")))
}

func TestMapStageToStatusRoundTrip(t *testing.T) {
	for _, stage := range Flow() {
		status := MapStageToStatus(stage)
		require.Equal(t, stage, MapStatusToStage(status), "stage %s", stage)
	}
}

func TestMapStatusToStageAliases(t *testing.T) {
	require.Equal(t, StageDraft, MapStatusToStage(StatusNew))
	require.Equal(t, StageInProduction, MapStatusToStage(StatusProcessing))

	// Aliases never come back from the reverse direction.
	require.Equal(t, StatusDraft, MapStageToStatus(StageDraft))
	require.Equal(t, StatusInProduction, MapStageToStatus(StageInProduction))
}

func TestInferStatusFromText(t *testing.T) {
	status, ok := InferStatusFromText("Order moved to quality_control by staff")
	require.True(t, ok)
	require.Equal(t, StatusQualityControl, status)

	status, ok = InferStatusFromText("payment_pending reminder sent")
	require.True(t, ok)
	require.Equal(t, StatusAwaitingPayment, status)

	// Nothing recognisable: callers must get an explicit miss, never a
	// guessed draft.
	_, ok = InferStatusFromText("weekly sync notes")
	require.False(t, ok)
}

func TestInferStatusPrefersSpecificKeywords(t *testing.T) {
	status, ok := InferStatusFromText("vendor_sourcing pending since Monday")
	require.True(t, ok)
	require.Equal(t, StatusVendorSourcing, status)
}
