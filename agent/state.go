// Workflow state machine for the analyst.
//
// Every legal stage change is listed in one transition table, so the
// workflow can be tested without involving a reasoning engine.
//
// Information Hiding:
// - Legal transitions hidden behind Next
// - Stage bookkeeping hidden

package agent

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/richinex/tabula/llm"
	"github.com/richinex/tabula/workbook"
)

// Stage identifies where the workflow currently is.
type Stage int

const (
	// StageInitial is the state before any work has happened.
	StageInitial Stage = iota
	// StageGenerateQuery asks the reasoning engine for one tool call
	// and executes it.
	StageGenerateQuery
	// StageAnalyze summarizes an executed query's result.
	StageAnalyze
	// StageCompleted holds a finished analysis.
	StageCompleted
	// StageFailed is the terminal error state.
	StageFailed
)

// String returns the stage name.
func (s Stage) String() string {
	switch s {
	case StageInitial:
		return "initial"
	case StageGenerateQuery:
		return "generate_query"
	case StageAnalyze:
		return "analyze"
	case StageCompleted:
		return "completed"
	case StageFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Event is the outcome of running one workflow node.
type Event int

const (
	// EventStart begins the workflow.
	EventStart Event = iota
	// EventPreviewLoaded means the reasoning engine asked for schema
	// context and got it; another tool call is needed.
	EventPreviewLoaded
	// EventQueryExecuted means an executable operation succeeded.
	EventQueryExecuted
	// EventQueryFailed means an executable operation failed terminally.
	EventQueryFailed
	// EventProtocolViolation means the reasoning engine did not return
	// the required tool call.
	EventProtocolViolation
	// EventBudgetExhausted means the iteration cap was exceeded.
	EventBudgetExhausted
	// EventSummaryReady means the analysis text was produced.
	EventSummaryReady
	// EventSummaryMissing means summarization did not complete and the
	// workflow should try another query round.
	EventSummaryMissing
)

// String returns the event name.
func (e Event) String() string {
	switch e {
	case EventStart:
		return "start"
	case EventPreviewLoaded:
		return "preview_loaded"
	case EventQueryExecuted:
		return "query_executed"
	case EventQueryFailed:
		return "query_failed"
	case EventProtocolViolation:
		return "protocol_violation"
	case EventBudgetExhausted:
		return "budget_exhausted"
	case EventSummaryReady:
		return "summary_ready"
	case EventSummaryMissing:
		return "summary_missing"
	default:
		return "unknown"
	}
}

// transitions is the full set of legal stage changes.
var transitions = map[Stage]map[Event]Stage{
	StageInitial: {
		EventStart: StageGenerateQuery,
	},
	StageGenerateQuery: {
		EventPreviewLoaded:     StageGenerateQuery,
		EventQueryExecuted:     StageAnalyze,
		EventQueryFailed:       StageFailed,
		EventProtocolViolation: StageFailed,
		EventBudgetExhausted:   StageFailed,
	},
	StageAnalyze: {
		EventSummaryReady:   StageCompleted,
		EventSummaryMissing: StageGenerateQuery,
	},
}

// ErrIllegalTransition reports a stage/event pair outside the table.
var ErrIllegalTransition = errors.New("illegal workflow transition")

// Next returns the stage reached from s by event e.
func Next(s Stage, e Event) (Stage, error) {
	if next, ok := transitions[s][e]; ok {
		return next, nil
	}
	return s, fmt.Errorf("%w: %s on %s", ErrIllegalTransition, e, s)
}

// State is the unit of orchestration for one question. It is mutated
// only by the workflow nodes and discarded once an answer is produced.
type State struct {
	Question   string
	File       string
	Preview    *workbook.Preview
	LastQuery  string
	LastResult json.RawMessage
	Err        error
	Analysis   string
	Iterations int
	History    []llm.ChatMessage
	Stage      Stage
}
