// Closed operation set the reasoning engine may request.
//
// Tool calls are parsed into a tagged variant: one kind per declared
// tool, each carrying its typed argument payload. Dispatch in the
// workflow switches on the tag, so an unknown operation can only be a
// parse-time protocol violation.
//
// Information Hiding:
// - Tool-call argument decoding hidden
// - Per-operation argument validation hidden

package agent

import (
	"encoding/json"
	"fmt"

	"github.com/richinex/tabula/frame"
	"github.com/richinex/tabula/llm"
)

// Declared tool names.
const (
	ToolLoadPreview  = "load_preview_data"
	ToolSimpleQuery  = "simple_dataframe_query"
	ToolComplexQuery = "complex_duckdb_query"
)

// OpKind tags one of the three declared operations.
type OpKind int

const (
	// OpLoadPreview loads schema and sample rows for the workbook.
	OpLoadPreview OpKind = iota
	// OpSimpleQuery runs one predefined tabular operation on one sheet.
	OpSimpleQuery
	// OpComplexQuery runs a structured query over registered tables.
	OpComplexQuery
)

// String returns the operation's tool name.
func (k OpKind) String() string {
	switch k {
	case OpLoadPreview:
		return ToolLoadPreview
	case OpSimpleQuery:
		return ToolSimpleQuery
	case OpComplexQuery:
		return ToolComplexQuery
	default:
		return "unknown"
	}
}

// PreviewArgs are the arguments of a load_preview_data call.
type PreviewArgs struct {
	FileName  string `json:"file_name"`
	SheetName string `json:"sheet_name,omitempty"`
}

// SimpleArgs are the arguments of a simple_dataframe_query call: the
// target sheet plus one tagged tabular operation.
type SimpleArgs struct {
	FileName  string `json:"file_name"`
	SheetName string `json:"sheet_name,omitempty"`
	frame.Op
}

// ComplexArgs are the arguments of a complex_duckdb_query call.
type ComplexArgs struct {
	FileName string `json:"file_name"`
	Query    string `json:"query"`
}

// Operation is the tagged variant; exactly the payload matching Kind
// is populated.
type Operation struct {
	Kind    OpKind
	CallID  string
	Preview PreviewArgs
	Simple  SimpleArgs
	Complex ComplexArgs
}

// ParseOperation decodes a tool call into an Operation. An unknown
// tool name or malformed arguments make the call unusable; the caller
// treats that as a protocol violation.
func ParseOperation(tc llm.ToolCall) (*Operation, error) {
	op := &Operation{CallID: tc.ID}

	switch tc.Name {
	case ToolLoadPreview:
		op.Kind = OpLoadPreview
		if err := json.Unmarshal(tc.Arguments, &op.Preview); err != nil {
			return nil, fmt.Errorf("bad %s arguments: %w", tc.Name, err)
		}

	case ToolSimpleQuery:
		op.Kind = OpSimpleQuery
		if err := json.Unmarshal(tc.Arguments, &op.Simple); err != nil {
			return nil, fmt.Errorf("bad %s arguments: %w", tc.Name, err)
		}
		switch op.Simple.Op.Kind {
		case frame.OpFilter, frame.OpSelect, frame.OpHead, frame.OpSort, frame.OpCount:
		default:
			return nil, fmt.Errorf("%s: unknown operation %q", tc.Name, op.Simple.Op.Kind)
		}

	case ToolComplexQuery:
		op.Kind = OpComplexQuery
		if err := json.Unmarshal(tc.Arguments, &op.Complex); err != nil {
			return nil, fmt.Errorf("bad %s arguments: %w", tc.Name, err)
		}
		if op.Complex.Query == "" {
			return nil, fmt.Errorf("%s: empty query", tc.Name)
		}

	default:
		return nil, fmt.Errorf("unknown tool %q", tc.Name)
	}

	return op, nil
}
