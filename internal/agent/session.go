package agent

import "context"

// FunctionCall is one tool invocation requested by the model.
type FunctionCall struct {
	Name string
	Args map[string]any
}

// FunctionResponse carries a tool result back to the model. Error payloads
// travel through the same shape; the loop never rewrites them.
type FunctionResponse struct {
	Name     string
	Response map[string]any
}

// ModelTurn is one model reply: free text, tool calls, or both.
type ModelTurn struct {
	Text  string
	Calls []FunctionCall
}

// Message is one prior exchange replayed into the chat history.
type Message struct {
	Role string // "user" or "model"
	Text string
}

// ChatSession is a stateful conversation with the model. Send opens a turn
// with user text; Reply continues it with tool results until the model stops
// requesting calls.
type ChatSession interface {
	Send(ctx context.Context, text string) (ModelTurn, error)
	Reply(ctx context.Context, responses []FunctionResponse) (ModelTurn, error)
}

// ModelClient starts chat sessions configured with a persona and a tool
// subset.
type ModelClient interface {
	StartChat(ctx context.Context, persona string, tools []ToolDefinition, history []Message) (ChatSession, error)
}

// ParamType is the declared type of one tool argument.
type ParamType string

const (
	ParamString  ParamType = "string"
	ParamInteger ParamType = "integer"
)

// ToolParam declares one argument of a tool.
type ToolParam struct {
	Name        string
	Type        ParamType
	Description string
	Required    bool
}

// ToolDefinition is the model-facing declaration of a tool.
type ToolDefinition struct {
	Name        ToolName
	Description string
	Params      []ToolParam
}
