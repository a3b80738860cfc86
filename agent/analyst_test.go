package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"testing"

	"github.com/xuri/excelize/v2"

	"github.com/richinex/tabula/engine"
	"github.com/richinex/tabula/llm"
)

// scriptedProvider replays canned responses in call order, across both
// the tool-selection and summarization calls.
type scriptedProvider struct {
	script    []llm.Response
	errs      []error
	calls     int
	toolCalls [][]llm.ChatMessage // messages seen by each ChatWithTools call
}

func (p *scriptedProvider) Name() string  { return "scripted" }
func (p *scriptedProvider) Model() string { return "scripted-model" }

func (p *scriptedProvider) next() (llm.Response, error) {
	i := p.calls
	p.calls++
	if i < len(p.errs) && p.errs[i] != nil {
		return llm.Response{}, p.errs[i]
	}
	if i >= len(p.script) {
		// Repeat the last entry so budget tests can loop freely.
		return p.script[len(p.script)-1], nil
	}
	return p.script[i], nil
}

func (p *scriptedProvider) Chat(_ context.Context, _ []llm.ChatMessage) (llm.Response, error) {
	return p.next()
}

func (p *scriptedProvider) ChatWithTools(_ context.Context, messages []llm.ChatMessage, _ []llm.ToolDefinition) (llm.Response, error) {
	p.toolCalls = append(p.toolCalls, messages)
	return p.next()
}

func (p *scriptedProvider) StreamChat(_ context.Context, _ []llm.ChatMessage, _ chan<- string) (*llm.TokenUsage, error) {
	return nil, errors.New("streaming not scripted")
}

var _ llm.Provider = (*scriptedProvider)(nil)

// fakeRunner returns a canned query result or error.
type fakeRunner struct {
	result *engine.Result
	err    error
	calls  int
	query  string
}

func (r *fakeRunner) Execute(_ context.Context, _ string, query string) (*engine.Result, error) {
	r.calls++
	r.query = query
	if r.err != nil {
		return nil, r.err
	}
	return r.result, nil
}

func writeAnalystWorkbook(t *testing.T) string {
	t.Helper()

	f := excelize.NewFile()
	defer f.Close()

	if _, err := f.NewSheet("Sales Data"); err != nil {
		t.Fatalf("NewSheet failed: %v", err)
	}
	rows := [][]any{
		{"Region", "Revenue"},
		{"East", "1,200"},
		{"South", "450"},
	}
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			t.Fatalf("CoordinatesToCellName failed: %v", err)
		}
		if err := f.SetSheetRow("Sales Data", cell, &row); err != nil {
			t.Fatalf("SetSheetRow failed: %v", err)
		}
	}
	if err := f.DeleteSheet("Sheet1"); err != nil {
		t.Fatalf("DeleteSheet failed: %v", err)
	}

	path := filepath.Join(t.TempDir(), "sales.xlsx")
	if err := f.SaveAs(path); err != nil {
		t.Fatalf("SaveAs failed: %v", err)
	}
	return path
}

func previewCall(file string) llm.Response {
	return llm.Response{ToolCalls: []llm.ToolCall{{
		ID:        "preview-1",
		Name:      ToolLoadPreview,
		Arguments: []byte(fmt.Sprintf(`{"file_name": %q}`, file)),
	}}}
}

func complexCall(file, query string) llm.Response {
	args, _ := json.Marshal(map[string]string{"file_name": file, "query": query})
	return llm.Response{ToolCalls: []llm.ToolCall{{
		ID:        "query-1",
		Name:      ToolComplexQuery,
		Arguments: args,
	}}}
}

func TestPreviewThenQueryCompletes(t *testing.T) {
	path := writeAnalystWorkbook(t)
	provider := &scriptedProvider{script: []llm.Response{
		previewCall(path),
		complexCall(path, "SELECT SUM(CAST(REPLACE(\"Revenue\", ',', '') AS DOUBLE)) AS total FROM sales_data"),
		{Content: "Total revenue across all regions is 1,650."},
	}}
	runner := &fakeRunner{result: &engine.Result{
		Columns: []string{"total"},
		Rows:    []map[string]any{{"total": 1650.0}},
		Shape:   [2]int{1, 1},
	}}

	analyst := New(provider, runner, Config{}, nil)
	out := analyst.Run(context.Background(), Request{File: path, Question: "What is total revenue?"})

	if out.Stage != StageCompleted {
		t.Fatalf("expected completed, got %s (err: %v)", out.Stage, out.Err)
	}
	if out.Answer != "Total revenue across all regions is 1,650." {
		t.Errorf("unexpected answer: %q", out.Answer)
	}
	if out.Iterations != 2 {
		t.Errorf("expected 2 iterations (preview + query), got %d", out.Iterations)
	}
	if runner.calls != 1 {
		t.Errorf("expected exactly one query execution, got %d", runner.calls)
	}

	// First tool-selection call has no schema context; the second
	// carries the loaded preview.
	if len(provider.toolCalls) != 2 {
		t.Fatalf("expected 2 tool-selection calls, got %d", len(provider.toolCalls))
	}
	first := provider.toolCalls[0][len(provider.toolCalls[0])-1].Content
	if !strings.Contains(first, previewMissingNote) {
		t.Errorf("first call should instruct preview loading, got %q", first)
	}
	second := provider.toolCalls[1][len(provider.toolCalls[1])-1].Content
	if !strings.Contains(second, "Schema context") || !strings.Contains(second, "sales_data") {
		t.Errorf("second call should carry the preview, got %q", second)
	}
}

func TestPlainTextIsProtocolViolation(t *testing.T) {
	path := writeAnalystWorkbook(t)
	provider := &scriptedProvider{script: []llm.Response{
		{Content: "The total revenue is probably around 1650."},
	}}
	runner := &fakeRunner{}

	analyst := New(provider, runner, Config{}, nil)
	out := analyst.Run(context.Background(), Request{File: path, Question: "What is total revenue?"})

	if out.Stage != StageFailed {
		t.Fatalf("expected failed, got %s", out.Stage)
	}
	if !errors.Is(out.Err, ErrProtocolViolation) {
		t.Errorf("expected ErrProtocolViolation, got %v", out.Err)
	}
	if out.Answer != GenericFailureMessage {
		t.Errorf("expected generic failure message, got %q", out.Answer)
	}
	if runner.calls != 0 {
		t.Errorf("no query should run after a protocol violation, got %d", runner.calls)
	}
}

func TestBudgetExhaustedAtEleven(t *testing.T) {
	path := writeAnalystWorkbook(t)
	// The engine keeps asking for previews and never issues a query.
	provider := &scriptedProvider{script: []llm.Response{previewCall(path)}}
	runner := &fakeRunner{}

	analyst := New(provider, runner, Config{}, nil)
	out := analyst.Run(context.Background(), Request{File: path, Question: "What is total revenue?"})

	if out.Stage != StageFailed {
		t.Fatalf("expected failed, got %s", out.Stage)
	}
	if !errors.Is(out.Err, ErrBudgetExhausted) {
		t.Errorf("expected ErrBudgetExhausted, got %v", out.Err)
	}
	if out.Iterations != 11 {
		t.Errorf("expected termination at iteration count 11, got %d", out.Iterations)
	}
	if provider.calls != 10 {
		t.Errorf("expected 10 reasoning-engine calls before the cap, got %d", provider.calls)
	}
}

func TestSimpleQueryPathAvoidsEngine(t *testing.T) {
	path := writeAnalystWorkbook(t)
	args, _ := json.Marshal(map[string]any{
		"file_name":  path,
		"sheet_name": "Sales Data",
		"operation":  "head",
		"n":          1,
	})
	provider := &scriptedProvider{script: []llm.Response{
		{ToolCalls: []llm.ToolCall{{ID: "simple-1", Name: ToolSimpleQuery, Arguments: args}}},
		{Content: "The first row covers the East region."},
	}}
	runner := &fakeRunner{}

	analyst := New(provider, runner, Config{}, nil)
	out := analyst.Run(context.Background(), Request{File: path, Question: "Show me the first row."})

	if out.Stage != StageCompleted {
		t.Fatalf("expected completed, got %s (err: %v)", out.Stage, out.Err)
	}
	if runner.calls != 0 {
		t.Errorf("simple path must not touch the cached engine, got %d calls", runner.calls)
	}
	if out.Iterations != 1 {
		t.Errorf("expected 1 iteration, got %d", out.Iterations)
	}
}

func TestQueryFailureTerminates(t *testing.T) {
	path := writeAnalystWorkbook(t)
	provider := &scriptedProvider{script: []llm.Response{
		complexCall(path, "SELECT broken"),
	}}
	runner := &fakeRunner{err: &engine.QueryError{Kind: engine.KindExecution}}

	analyst := New(provider, runner, Config{}, nil)
	out := analyst.Run(context.Background(), Request{File: path, Question: "What is total revenue?"})

	if out.Stage != StageFailed {
		t.Fatalf("expected failed, got %s", out.Stage)
	}
	var qe *engine.QueryError
	if !errors.As(out.Err, &qe) {
		t.Errorf("expected the classified query error, got %v", out.Err)
	}
	if out.Answer != GenericFailureMessage {
		t.Errorf("expected generic failure message, got %q", out.Answer)
	}
}

func TestIncompleteSummaryLoopsBack(t *testing.T) {
	path := writeAnalystWorkbook(t)
	query := "SELECT COUNT(*) AS n FROM sales_data"
	provider := &scriptedProvider{script: []llm.Response{
		complexCall(path, query),
		{Content: "   "}, // summarization comes back blank
		complexCall(path, query),
		{Content: "There are 2 rows of sales data."},
	}}
	runner := &fakeRunner{result: &engine.Result{
		Columns: []string{"n"},
		Rows:    []map[string]any{{"n": int64(2)}},
		Shape:   [2]int{1, 1},
	}}

	analyst := New(provider, runner, Config{}, nil)
	out := analyst.Run(context.Background(), Request{File: path, Question: "How many rows?"})

	if out.Stage != StageCompleted {
		t.Fatalf("expected completed after loop-back, got %s (err: %v)", out.Stage, out.Err)
	}
	if out.Answer != "There are 2 rows of sales data." {
		t.Errorf("unexpected answer: %q", out.Answer)
	}
	if out.Iterations != 2 {
		t.Errorf("expected 2 iterations after one loop-back, got %d", out.Iterations)
	}
	if runner.calls != 2 {
		t.Errorf("expected 2 query executions, got %d", runner.calls)
	}
}

func TestHistoryWindowBoundsContext(t *testing.T) {
	path := writeAnalystWorkbook(t)
	provider := &scriptedProvider{script: []llm.Response{
		{Content: "no tool call"}, // fails fast; we only inspect the messages
	}}
	analyst := New(provider, &fakeRunner{}, Config{HistoryWindow: 2}, nil)

	history := []llm.ChatMessage{
		llm.UserMessage("q1"), llm.AssistantMessage("a1"),
		llm.UserMessage("q2"), llm.AssistantMessage("a2"),
	}
	analyst.Run(context.Background(), Request{File: path, Question: "follow-up", History: history})

	if len(provider.toolCalls) != 1 {
		t.Fatalf("expected 1 tool-selection call, got %d", len(provider.toolCalls))
	}
	messages := provider.toolCalls[0]
	// system + 2 history turns + question
	if len(messages) != 4 {
		t.Fatalf("expected 4 messages with window 2, got %d", len(messages))
	}
	if messages[1].Content != "q2" || messages[2].Content != "a2" {
		t.Errorf("expected only the last two turns, got %q / %q", messages[1].Content, messages[2].Content)
	}
}
