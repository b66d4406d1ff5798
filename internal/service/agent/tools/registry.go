// Package tools implements the tool registry: a name-keyed map behind a
// sync.RWMutex over the agentsvc.Tool interface
// (ExtendsChunks/SetsPause/RequiredDependencies), with parameter schemas
// compiled and cached at Register time.
package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"arxivian/internal/domain"
	agentmodels "arxivian/internal/domain/models/agent"
	agentsvc "arxivian/internal/domain/services/agent"
)

// entry pairs a registered tool with its compiled parameter schema, so
// Execute can validate arguments before dispatch.
type entry struct {
	tool   agentsvc.Tool
	schema *jsonschema.Schema
}

// Registry implements agentsvc.ToolRegistry. available names the
// collaborators the registry was constructed with, so Register can reject a
// tool whose RequiredDependencies() names something unavailable.
type Registry struct {
	mu        sync.RWMutex
	tools     map[string]entry
	available map[string]bool
}

func NewRegistry(available ...string) *Registry {
	avail := make(map[string]bool, len(available))
	for _, a := range available {
		avail[a] = true
	}
	return &Registry{
		tools:     make(map[string]entry),
		available: avail,
	}
}

var _ agentsvc.ToolRegistry = (*Registry)(nil)

// Register compiles the tool's parameter schema and adds it under its name.
// Fails with domain.ErrConfiguration on a name collision or an unsatisfied
// dependency.
func (r *Registry) Register(tool agentsvc.Tool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	name := tool.Name()
	if _, exists := r.tools[name]; exists {
		return fmt.Errorf("%w: tool %q already registered", domain.ErrConfiguration, name)
	}

	for _, dep := range tool.RequiredDependencies() {
		if !r.available[dep] {
			return fmt.Errorf("%w: tool %q requires unavailable dependency %q", domain.ErrConfiguration, name, dep)
		}
	}

	schema, err := compileParameterSchema(name, tool.ParametersSchema())
	if err != nil {
		return fmt.Errorf("%w: tool %q has invalid parameter schema: %v", domain.ErrConfiguration, name, err)
	}

	r.tools[name] = entry{tool: tool, schema: schema}
	return nil
}

func (r *Registry) Get(name string) (agentsvc.Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.tools[name]
	if !ok {
		return nil, false
	}
	return e.tool, true
}

// GetAllSchemas returns tool schemas sorted by name so the classify-&-route
// prompt is stable across calls.
func (r *Registry) GetAllSchemas() []agentmodels.ToolSchema {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	sort.Strings(names)

	schemas := make([]agentmodels.ToolSchema, 0, len(names))
	for _, name := range names {
		t := r.tools[name].tool
		schemas = append(schemas, agentmodels.ToolSchema{
			Name:        t.Name(),
			Description: t.Description(),
			Parameters:  t.ParametersSchema(),
		})
	}
	return schemas
}

// Execute validates args against the tool's compiled schema, then dispatches.
// Unknown tool name or schema validation failure returns Success=false,
// never an error, so the executor node can isolate per-call failures.
func (r *Registry) Execute(ctx context.Context, name string, args map[string]interface{}) agentmodels.ToolResult {
	r.mu.RLock()
	e, ok := r.tools[name]
	r.mu.RUnlock()
	if !ok {
		return agentmodels.ToolResult{Success: false, Error: fmt.Sprintf("unknown tool %q", name), ToolName: name}
	}

	if e.schema != nil {
		payload, err := json.Marshal(args)
		if err == nil {
			var decoded interface{}
			if err := json.Unmarshal(payload, &decoded); err == nil {
				if err := e.schema.Validate(decoded); err != nil {
					return agentmodels.ToolResult{Success: false, Error: fmt.Sprintf("invalid arguments: %v", err), ToolName: name}
				}
			}
		}
	}

	return e.tool.Execute(ctx, args)
}

// compileParameterSchema converts a ParameterSchema into a compiled
// jsonschema.Schema, following pluginsdk's CompileString convention: encode
// to JSON text, compile that text under a synthetic resource name.
func compileParameterSchema(name string, ps agentmodels.ParameterSchema) (*jsonschema.Schema, error) {
	raw, err := json.Marshal(ps)
	if err != nil {
		return nil, err
	}
	return jsonschema.CompileString(name+".schema.json", string(raw))
}
