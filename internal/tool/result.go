package tool

import (
	"encoding/json"

	"github.com/harunnryd/renga/internal/model/contract"
)

// Result is the outcome of executing one tool call. Exactly one of Payload
// and Err is set.
type Result struct {
	ToolCallID string
	Payload    json.RawMessage
	Err        string
}

func Ok(payload json.RawMessage) Result {
	if len(payload) == 0 {
		payload = json.RawMessage(`{}`)
	}
	return Result{Payload: payload}
}

func Fail(err error) Result {
	if err == nil {
		return Result{Err: "unknown failure"}
	}
	return Result{Err: err.Error()}
}

func (r Result) IsError() bool {
	return r.Err != ""
}

// Message renders the result as the tool message fed back to the model.
// Errors are rendered as structured JSON so the model can decide to retry,
// pick another tool, or apologize.
func (r Result) Message() contract.Message {
	content := string(r.Payload)
	if r.IsError() {
		encoded, marshalErr := json.Marshal(map[string]string{"error": r.Err})
		if marshalErr != nil {
			encoded = []byte(`{"error": "tool execution failed"}`)
		}
		content = string(encoded)
	}
	return contract.Message{
		Role:       contract.RoleTool,
		Content:    content,
		ToolCallID: r.ToolCallID,
	}
}
