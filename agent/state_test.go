package agent

import (
	"errors"
	"testing"
)

func TestLegalTransitions(t *testing.T) {
	cases := []struct {
		from  Stage
		event Event
		want  Stage
	}{
		{StageInitial, EventStart, StageGenerateQuery},
		{StageGenerateQuery, EventPreviewLoaded, StageGenerateQuery},
		{StageGenerateQuery, EventQueryExecuted, StageAnalyze},
		{StageGenerateQuery, EventQueryFailed, StageFailed},
		{StageGenerateQuery, EventProtocolViolation, StageFailed},
		{StageGenerateQuery, EventBudgetExhausted, StageFailed},
		{StageAnalyze, EventSummaryReady, StageCompleted},
		{StageAnalyze, EventSummaryMissing, StageGenerateQuery},
	}
	for _, tc := range cases {
		got, err := Next(tc.from, tc.event)
		if err != nil {
			t.Errorf("Next(%s, %s) failed: %v", tc.from, tc.event, err)
			continue
		}
		if got != tc.want {
			t.Errorf("Next(%s, %s) = %s, want %s", tc.from, tc.event, got, tc.want)
		}
	}
}

func TestIllegalTransitions(t *testing.T) {
	cases := []struct {
		from  Stage
		event Event
	}{
		{StageInitial, EventQueryExecuted},
		{StageAnalyze, EventStart},
		{StageAnalyze, EventPreviewLoaded},
		{StageCompleted, EventStart},
		{StageFailed, EventSummaryReady},
		{StageGenerateQuery, EventSummaryReady},
	}
	for _, tc := range cases {
		if _, err := Next(tc.from, tc.event); !errors.Is(err, ErrIllegalTransition) {
			t.Errorf("Next(%s, %s): expected ErrIllegalTransition, got %v", tc.from, tc.event, err)
		}
	}
}

func TestTerminalStagesHaveNoExits(t *testing.T) {
	for _, s := range []Stage{StageCompleted, StageFailed} {
		if exits := transitions[s]; len(exits) != 0 {
			t.Errorf("terminal stage %s has exits: %v", s, exits)
		}
	}
}
