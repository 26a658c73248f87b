// Package toolkit is the safety-gated execution framework for operator
// maintenance commands. Business operations (tenant resets, alert-scenario
// seeding) plug in as handlers; the framework owns classification, the
// two-phase destructive confirmation, concurrency limiting, audit manifests
// and report persistence.
package toolkit

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// Classification is the risk tier of a command. It decides which safety
// gates apply before the handler runs.
type Classification string

const (
	// ClassificationRead means no mutation; always safe to run.
	ClassificationRead Classification = "READ"
	// ClassificationWrite mutates tenant data reversibly.
	ClassificationWrite Classification = "WRITE"
	// ClassificationDestructive can irreversibly mutate or delete tenant
	// data. Requires the hard-reset token flow.
	ClassificationDestructive Classification = "DESTRUCTIVE"
)

// CommandSpec is the static description of a registered command.
type CommandSpec struct {
	Name           string         `json:"name"`
	Classification Classification `json:"classification"`
}

// Handler executes the business operation behind a command. It receives a
// request that already passed every safety gate.
type Handler interface {
	Run(ctx context.Context, req *ExecutionRequest) (any, error)
}

// HandlerFunc adapts a plain function to Handler.
type HandlerFunc func(ctx context.Context, req *ExecutionRequest) (any, error)

func (f HandlerFunc) Run(ctx context.Context, req *ExecutionRequest) (any, error) {
	return f(ctx, req)
}

// Command pairs a spec with its handler.
type Command struct {
	Spec    CommandSpec
	Handler Handler
}

// Registry maps command names to their classification and handler.
// Commands are registered at startup and immutable for the process lifetime.
type Registry struct {
	mu       sync.RWMutex
	commands map[string]*Command
}

// NewRegistry creates an empty command registry.
func NewRegistry() *Registry {
	return &Registry{commands: make(map[string]*Command)}
}

// Register adds a command. Duplicate names and unknown classifications are
// rejected so a misconfigured command can never silently run unclassified.
func (r *Registry) Register(spec CommandSpec, handler Handler) error {
	if spec.Name == "" {
		return fmt.Errorf("register: command name is required")
	}
	switch spec.Classification {
	case ClassificationRead, ClassificationWrite, ClassificationDestructive:
	default:
		return fmt.Errorf("register %q: unknown classification %q", spec.Name, spec.Classification)
	}
	if handler == nil {
		return fmt.Errorf("register %q: handler is required", spec.Name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.commands[spec.Name]; exists {
		return fmt.Errorf("register %q: already registered", spec.Name)
	}
	r.commands[spec.Name] = &Command{Spec: spec, Handler: handler}
	return nil
}

// Lookup returns the command for name.
func (r *Registry) Lookup(name string) (*Command, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	cmd, ok := r.commands[name]
	return cmd, ok
}

// Specs returns all registered specs sorted by name.
func (r *Registry) Specs() []CommandSpec {
	r.mu.RLock()
	defer r.mu.RUnlock()
	specs := make([]CommandSpec, 0, len(r.commands))
	for _, cmd := range r.commands {
		specs = append(specs, cmd.Spec)
	}
	sort.Slice(specs, func(i, j int) bool { return specs[i].Name < specs[j].Name })
	return specs
}
