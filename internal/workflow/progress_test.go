package workflow

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCalculateProgressAllCanonicalStatuses(t *testing.T) {
	flow := Flow()
	for i, stage := range flow {
		status := MapStageToStatus(stage)
		progress := CalculateProgress(status)

		want := int(math.Round(float64(i) / 11 * 100))
		require.Equal(t, want, progress.Percentage, "stage %s", stage)
		require.Len(t, progress.CompletedStages, i, "stage %s", stage)
		require.Equal(t, stage, progress.CurrentStage)
		require.Equal(t, i, progress.StageIndex)
		require.Equal(t, TotalStages, progress.TotalStages)
	}
}

func TestCalculateProgressFullPayment(t *testing.T) {
	progress := CalculateProgress(StatusFullPayment)

	require.Equal(t, 64, progress.Percentage)
	require.Equal(t, StageInProduction, progress.NextStage)
	require.True(t, progress.CanProgress)
	require.Equal(t, 7, progress.StageIndex)
}

func TestCalculateProgressTerminalStatuses(t *testing.T) {
	cancelled := CalculateProgress(StatusCancelled)
	require.True(t, cancelled.IsTerminal)
	require.False(t, cancelled.CanProgress)
	require.Equal(t, 0, cancelled.Percentage)
	require.Empty(t, cancelled.CompletedStages)

	refunded := CalculateProgress(StatusRefunded)
	require.True(t, refunded.IsTerminal)
	require.False(t, refunded.CanProgress)
	require.Equal(t, 100, refunded.Percentage)
}

func TestCalculateProgressCompletedIsTerminal(t *testing.T) {
	progress := CalculateProgress(StatusCompleted)

	require.True(t, progress.IsTerminal)
	require.False(t, progress.CanProgress)
	require.Equal(t, 100, progress.Percentage)
	require.Len(t, progress.CompletedStages, 11)
	require.Equal(t, Stage(""), progress.NextStage)
}

func TestCalculateProgressLegacyStatus(t *testing.T) {
	progress := CalculateProgress(StatusProcessing)

	require.Equal(t, StageInProduction, progress.CurrentStage)
	require.Equal(t, 8, progress.StageIndex)
}

func TestNextValidStages(t *testing.T) {
	require.Equal(t, []Stage{StagePartialPayment, StageFullPayment}, NextValidStages(StageAwaitingPayment))
	require.Equal(t, []Stage{StageShipping, StageInProduction}, NextValidStages(StageQualityControl))
	require.Nil(t, NextValidStages(StageCompleted))

	require.True(t, CanTransition(StageQualityControl, StageInProduction))
	require.False(t, CanTransition(StageDraft, StageShipping))
}
