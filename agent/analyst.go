// Package agent drives a bounded tool-calling workflow that answers
// natural-language questions about a spreadsheet workbook.
//
// Each question runs the state machine in state.go: ask the reasoning
// engine for one tool call, execute it, loop until a query result is
// available, then summarize. The iteration budget is shared between
// preview loads and query attempts.
//
// Information Hiding:
// - Reasoning-engine prompt construction hidden
// - Node execution and event selection hidden
// - Timeout handling at the external-call boundary hidden

package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"strings"
	"time"

	"github.com/richinex/tabula/engine"
	"github.com/richinex/tabula/frame"
	"github.com/richinex/tabula/llm"
	"github.com/richinex/tabula/workbook"
)

// GenericFailureMessage is the only failure text shown to end users.
// Raw diagnostics stay in the operator log.
const GenericFailureMessage = "I could not process your question against this workbook. Please try rephrasing it."

// Workflow failure sentinels.
var (
	// ErrProtocolViolation means the reasoning engine answered in
	// plain text where a tool call was required.
	ErrProtocolViolation = errors.New("reasoning engine did not return a tool call")
	// ErrBudgetExhausted means the iteration cap was exceeded before a
	// usable result was produced.
	ErrBudgetExhausted = errors.New("exceeded iteration budget")
)

// QueryRunner executes structured queries against a workbook. It is
// satisfied by engine.Executor.
type QueryRunner interface {
	Execute(ctx context.Context, file, query string) (*engine.Result, error)
}

// Config holds the analyst's knobs.
type Config struct {
	// MaxIterations caps tool-call rounds per question. Zero means the
	// default of 10.
	MaxIterations int
	// HistoryWindow is how many prior conversation turns each
	// reasoning-engine call sees. Zero means the default of 6.
	HistoryWindow int
	// LLMTimeout bounds each reasoning-engine call. Zero means no
	// bound beyond the caller's context.
	LLMTimeout time.Duration
}

// Request is one question against one workbook.
type Request struct {
	File      string
	Question  string
	SessionID string // opaque continuity key, forwarded to nothing here
	History   []llm.ChatMessage
}

// Outcome is the result of running the workflow. Answer is always
// populated: the summary on success, GenericFailureMessage otherwise.
type Outcome struct {
	Answer     string
	Stage      Stage
	Iterations int
	Err        error
}

// Analyst runs the question-answering workflow.
type Analyst struct {
	client  *llm.Client
	queries QueryRunner
	cfg     Config
	logger  *log.Logger
	now     func() time.Time
}

// New creates an analyst over a reasoning-engine provider and a query
// runner. A nil logger discards operator output.
func New(provider llm.Provider, queries QueryRunner, cfg Config, logger *log.Logger) *Analyst {
	if cfg.MaxIterations <= 0 {
		cfg.MaxIterations = 10
	}
	if cfg.HistoryWindow <= 0 {
		cfg.HistoryWindow = 6
	}
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &Analyst{
		client:  llm.NewClient(provider),
		queries: queries,
		cfg:     cfg,
		logger:  logger,
		now:     time.Now,
	}
}

// Run answers one question end to end.
func (a *Analyst) Run(ctx context.Context, req Request) Outcome {
	st := &State{
		Question: req.Question,
		File:     req.File,
		History:  tail(req.History, a.cfg.HistoryWindow),
		Stage:    StageInitial,
	}

	stage, err := Next(st.Stage, EventStart)
	if err != nil {
		st.Err = err
		return a.outcome(st)
	}
	st.Stage = stage

	for {
		var event Event
		switch st.Stage {
		case StageGenerateQuery:
			event = a.generateQuery(ctx, st)
		case StageAnalyze:
			event = a.analyze(ctx, st)
		case StageCompleted, StageFailed:
			return a.outcome(st)
		}

		next, err := Next(st.Stage, event)
		if err != nil {
			st.Err = err
			st.Stage = StageFailed
			continue
		}
		a.logger.Printf("agent: %s --%s--> %s (iteration %d)", st.Stage, event, next, st.Iterations)
		st.Stage = next
	}
}

// generateQuery asks the reasoning engine for one tool call and
// executes it.
func (a *Analyst) generateQuery(ctx context.Context, st *State) Event {
	st.Iterations++
	if st.Iterations > a.cfg.MaxIterations {
		st.Err = ErrBudgetExhausted
		return EventBudgetExhausted
	}

	resp, err := a.chatWithTools(ctx, a.queryMessages(st))
	if err != nil {
		st.Err = fmt.Errorf("reasoning engine call failed: %w", err)
		a.logger.Printf("agent: %v", st.Err)
		return EventQueryFailed
	}

	if len(resp.ToolCalls) == 0 {
		st.Err = ErrProtocolViolation
		a.logger.Printf("agent: protocol violation, plain text reply: %.200s", resp.Content)
		return EventProtocolViolation
	}

	op, err := ParseOperation(resp.ToolCalls[0])
	if err != nil {
		st.Err = fmt.Errorf("%w: %v", ErrProtocolViolation, err)
		a.logger.Printf("agent: %v", st.Err)
		return EventProtocolViolation
	}

	switch op.Kind {
	case OpLoadPreview:
		return a.loadPreview(st)
	case OpSimpleQuery:
		return a.runSimple(st, op)
	case OpComplexQuery:
		return a.runComplex(ctx, st, op)
	default:
		st.Err = fmt.Errorf("%w: unhandled operation %v", ErrProtocolViolation, op.Kind)
		return EventProtocolViolation
	}
}

func (a *Analyst) loadPreview(st *State) Event {
	preview, err := workbook.Read(st.File)
	if err != nil {
		st.Err = fmt.Errorf("preview failed: %w", err)
		a.logger.Printf("agent: %v", st.Err)
		return EventQueryFailed
	}
	st.Preview = preview
	return EventPreviewLoaded
}

func (a *Analyst) runSimple(st *State, op *Operation) Event {
	sheet := op.Simple.SheetName
	if sheet == "" {
		sheets, err := workbook.Sheets(st.File)
		if err != nil || len(sheets) == 0 {
			st.Err = fmt.Errorf("could not resolve a sheet for %s: %v", st.File, err)
			a.logger.Printf("agent: %v", st.Err)
			return EventQueryFailed
		}
		sheet = sheets[0]
	}

	// The simple path always reads fresh, never through the cache.
	table, err := workbook.ReadSheet(st.File, sheet)
	if err != nil {
		st.Err = fmt.Errorf("reading sheet %q failed: %w", sheet, err)
		a.logger.Printf("agent: %v", st.Err)
		return EventQueryFailed
	}

	result, err := frame.Apply(table, op.Simple.Op)
	if err != nil {
		st.Err = fmt.Errorf("tabular operation failed: %w", err)
		a.logger.Printf("agent: %v", st.Err)
		return EventQueryFailed
	}

	st.LastQuery = fmt.Sprintf("%s %s on sheet %q", ToolSimpleQuery, op.Simple.Op.Kind, sheet)
	st.LastResult, _ = json.Marshal(result)
	return EventQueryExecuted
}

func (a *Analyst) runComplex(ctx context.Context, st *State, op *Operation) Event {
	st.LastQuery = op.Complex.Query

	result, err := a.queries.Execute(ctx, st.File, op.Complex.Query)
	if err != nil {
		st.Err = err
		a.logger.Printf("agent: query failed: %v", err)
		return EventQueryFailed
	}

	st.LastResult, _ = json.Marshal(result)
	return EventQueryExecuted
}

// analyze turns the executed query's result into prose.
func (a *Analyst) analyze(ctx context.Context, st *State) Event {
	messages := make([]llm.ChatMessage, 0, len(st.History)+2)
	messages = append(messages, llm.SystemMessage(analysisPrompt))
	messages = append(messages, st.History...)
	messages = append(messages, llm.UserMessage(fmt.Sprintf(
		"Question: %s\n\nExecuted query: %s\n\nResult:\n%s",
		st.Question, st.LastQuery, st.LastResult,
	)))

	content, err := a.chat(ctx, messages)
	if err != nil || strings.TrimSpace(content) == "" {
		a.logger.Printf("agent: summarization incomplete: %v", err)
		return EventSummaryMissing
	}

	st.Analysis = content
	return EventSummaryReady
}

// queryMessages builds the context package for the tool-selection
// call: conversation tail, the question, and the preview if loaded.
func (a *Analyst) queryMessages(st *State) []llm.ChatMessage {
	messages := make([]llm.ChatMessage, 0, len(st.History)+2)
	messages = append(messages, llm.SystemMessage(queryPrompt(a.now())))
	messages = append(messages, st.History...)

	var b strings.Builder
	fmt.Fprintf(&b, "Workbook: %s\nQuestion: %s\n\n", st.File, st.Question)
	if st.Preview != nil {
		previewJSON, err := json.Marshal(st.Preview)
		if err == nil {
			fmt.Fprintf(&b, "Schema context:\n%s", previewJSON)
		} else {
			b.WriteString(previewMissingNote)
		}
	} else {
		b.WriteString(previewMissingNote)
	}
	messages = append(messages, llm.UserMessage(b.String()))
	return messages
}

func (a *Analyst) chatWithTools(ctx context.Context, messages []llm.ChatMessage) (llm.Response, error) {
	ctx, cancel := a.bound(ctx)
	defer cancel()
	return a.client.ChatWithTools(ctx, messages, ToolDefinitions())
}

func (a *Analyst) chat(ctx context.Context, messages []llm.ChatMessage) (string, error) {
	ctx, cancel := a.bound(ctx)
	defer cancel()
	return a.client.Chat(ctx, messages)
}

func (a *Analyst) bound(ctx context.Context) (context.Context, context.CancelFunc) {
	if a.cfg.LLMTimeout > 0 {
		return context.WithTimeout(ctx, a.cfg.LLMTimeout)
	}
	return ctx, func() {}
}

func (a *Analyst) outcome(st *State) Outcome {
	out := Outcome{
		Stage:      st.Stage,
		Iterations: st.Iterations,
		Err:        st.Err,
	}
	if st.Stage == StageCompleted && st.Err == nil {
		out.Answer = st.Analysis
	} else {
		out.Answer = GenericFailureMessage
		if out.Err == nil {
			out.Err = errors.New("workflow ended without an analysis")
		}
	}
	return out
}

// tail returns the last n messages of history.
func tail(history []llm.ChatMessage, n int) []llm.ChatMessage {
	if len(history) <= n {
		return history
	}
	return history[len(history)-n:]
}
