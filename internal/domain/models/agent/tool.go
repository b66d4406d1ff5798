package agent

// ToolCall is one tool invocation requested by the classify-&-route node.
// ToolArgsJSON is the raw LLM-produced argument payload; the executor parses
// it lazily so a malformed call fails in isolation rather than the node.
type ToolCall struct {
	ToolName     string `json:"tool_name"`
	ToolArgsJSON string `json:"tool_args_json"`
}

// ToolExecution is the append-only record of one completed (or failed) tool
// call, as stored in AgentState.ToolHistory and surfaced back to the router.
type ToolExecution struct {
	ToolName      string                 `json:"tool_name"`
	ToolArgs      map[string]interface{} `json:"tool_args"`
	Success       bool                   `json:"success"`
	ResultSummary string                 `json:"result_summary"`
	Error         *string                `json:"error,omitempty"`
}

// ToolResult is what a Tool.Execute returns to the executor node.
// Data is a []Chunk for extends_chunks tools, or a map for everything else.
type ToolResult struct {
	Success    bool
	Data       interface{}
	PromptText *string
	Error      string
	ToolName   string
}

// ToolOutput is one non-chunk tool contribution accumulated for the
// generator, append-only across iterations within a turn.
type ToolOutput struct {
	ToolName   string      `json:"tool_name"`
	Data       interface{} `json:"data"`
	PromptText *string     `json:"prompt_text,omitempty"`
}

// ParameterSchema is the JSON-Schema-shaped description of a tool's
// arguments: compiled with santhosh-tekuri/jsonschema at registration time,
// used to validate arguments at Execute time, and used for building the
// classify-&-route prompt.
type ParameterSchema struct {
	Type       string                     `json:"type"`
	Properties map[string]SchemaProperty  `json:"properties,omitempty"`
	Required   []string                   `json:"required,omitempty"`
}

// SchemaProperty describes one argument of a tool's ParameterSchema.
type SchemaProperty struct {
	Type        string   `json:"type"`
	Description string   `json:"description,omitempty"`
	Enum        []string `json:"enum,omitempty"`
	Items       *SchemaProperty `json:"items,omitempty"`
}

// ToolSchema is one entry of ToolRegistry.GetAllSchemas(), the ordered list
// fed into the classify-&-route prompt.
type ToolSchema struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Parameters  ParameterSchema `json:"parameters"`
}
