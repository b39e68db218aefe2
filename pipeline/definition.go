package pipeline

import (
	"fmt"
	"strings"
	"time"

	"github.com/stepchain/stepchain/config"
)

// ============================================================================
// STEP AND PIPELINE DEFINITIONS
// ============================================================================

// StepKind identifies what a step does when it runs
type StepKind int

const (
	// StepInvoke calls an external collaborator with a built payload
	StepInvoke StepKind = iota
	// StepTransform records a built payload directly as the step result
	StepTransform
	// StepNotify delivers a built payload as a success notification
	StepNotify
	// StepAggregate computes a result from the whole execution context
	StepAggregate
)

// AggregateFunc computes a pure aggregation result from the context
type AggregateFunc func(ec *ExecutionContext) (map[string]interface{}, error)

// Step is one unit of a pipeline chain
type Step struct {
	Name         string
	Kind         StepKind
	Collaborator string              // collaborator name (StepInvoke)
	Notifier     string              // notifier name (StepNotify)
	Template     *Template           // payload template (all kinds but StepAggregate)
	Aggregate    AggregateFunc       // aggregation function (StepAggregate)
	ResultSlot   string              // context slot the result is written to
	Produces     []string            // result fields downstream templates may reference
	Retry        *config.RetryConfig // per-step retry override (nil: pipeline default)
}

// FailurePolicy describes a pipeline's on-failure notification
type FailurePolicy struct {
	Notifier string
	// StackIDInput names the trigger input field surfaced as the failure
	// notice's stack identifier (empty when not applicable)
	StackIDInput string
}

// Definition is a complete, validated pipeline definition
type Definition struct {
	Name          string
	Description   string
	RequiredInput []string
	Timeout       time.Duration
	Steps         []Step
	OnFailure     *FailurePolicy
}

// Step returns the named step
func (d *Definition) Step(name string) (*Step, bool) {
	for i := range d.Steps {
		if d.Steps[i].Name == name {
			return &d.Steps[i], true
		}
	}
	return nil, false
}

// StepNames returns step names in execution order
func (d *Definition) StepNames() []string {
	names := make([]string, len(d.Steps))
	for i, s := range d.Steps {
		names[i] = s.Name
	}
	return names
}

// ============================================================================
// DEFINITION BUILDER
// ============================================================================

// Builder assembles and validates a pipeline definition. All template
// references are checked at construction time: a template may only reference
// trigger inputs the pipeline requires, and result fields that an earlier
// step declared it produces. Run-time payload resolution therefore never
// encounters a forward or dangling reference.
type Builder struct {
	def  Definition
	errs []error
}

// NewBuilder creates a builder for the named pipeline
func NewBuilder(name string) *Builder {
	return &Builder{def: Definition{Name: name}}
}

// Description sets the pipeline description
func (b *Builder) Description(desc string) *Builder {
	b.def.Description = desc
	return b
}

// RequireInput declares the trigger input fields the pipeline needs.
// Missing fields fail the run before any step executes.
func (b *Builder) RequireInput(keys ...string) *Builder {
	b.def.RequiredInput = append(b.def.RequiredInput, keys...)
	return b
}

// Timeout sets the overall run wall-clock budget
func (b *Builder) Timeout(d time.Duration) *Builder {
	b.def.Timeout = d
	return b
}

// OnFailureNotify attaches an on-failure notifier. stackIDInput names the
// trigger input field reported as the failure notice's stack identifier.
func (b *Builder) OnFailureNotify(notifier, stackIDInput string) *Builder {
	b.def.OnFailure = &FailurePolicy{Notifier: notifier, StackIDInput: stackIDInput}
	return b
}

// Invoke appends a collaborator invocation step
func (b *Builder) Invoke(name, collaborator string, template *Template, slot string, produces ...string) *Builder {
	b.addStep(Step{
		Name:         name,
		Kind:         StepInvoke,
		Collaborator: collaborator,
		Template:     template,
		ResultSlot:   slot,
		Produces:     produces,
	})
	return b
}

// Transform appends a step that records its built payload as its result
func (b *Builder) Transform(name string, template *Template, slot string, produces ...string) *Builder {
	b.addStep(Step{
		Name:       name,
		Kind:       StepTransform,
		Template:   template,
		ResultSlot: slot,
		Produces:   produces,
	})
	return b
}

// Notify appends a step that delivers its built payload as a success notice
func (b *Builder) Notify(name, notifier string, template *Template, slot string, produces ...string) *Builder {
	b.addStep(Step{
		Name:       name,
		Kind:       StepNotify,
		Notifier:   notifier,
		Template:   template,
		ResultSlot: slot,
		Produces:   produces,
	})
	return b
}

// Aggregate appends a pure aggregation step
func (b *Builder) Aggregate(name string, fn AggregateFunc, slot string, produces ...string) *Builder {
	b.addStep(Step{
		Name:       name,
		Kind:       StepAggregate,
		Aggregate:  fn,
		ResultSlot: slot,
		Produces:   produces,
	})
	return b
}

// WithRetry sets the retry policy of the most recently added step
func (b *Builder) WithRetry(retry config.RetryConfig) *Builder {
	if len(b.def.Steps) == 0 {
		b.errs = append(b.errs, fmt.Errorf("WithRetry called before any step was added"))
		return b
	}
	retry.SetDefaults()
	b.def.Steps[len(b.def.Steps)-1].Retry = &retry
	return b
}

// Build validates the assembled definition and returns it
func (b *Builder) Build() (*Definition, error) {
	if b.def.Name == "" {
		b.errs = append(b.errs, fmt.Errorf("pipeline name cannot be empty"))
	}
	if len(b.def.Steps) == 0 {
		b.errs = append(b.errs, fmt.Errorf("pipeline must have at least one step"))
	}
	if len(b.errs) > 0 {
		return nil, NewPipelineError("builder", "build",
			fmt.Sprintf("invalid definition for pipeline '%s'", b.def.Name), joinErrors(b.errs))
	}
	def := b.def
	return &def, nil
}

// addStep validates a step against everything added before it
func (b *Builder) addStep(step Step) {
	if step.Name == "" {
		b.errs = append(b.errs, fmt.Errorf("step name cannot be empty"))
		return
	}
	if step.ResultSlot == "" {
		b.errs = append(b.errs, fmt.Errorf("step '%s': result slot cannot be empty", step.Name))
		return
	}

	for _, prior := range b.def.Steps {
		if prior.Name == step.Name {
			b.errs = append(b.errs, fmt.Errorf("duplicate step name '%s'", step.Name))
		}
		if prior.ResultSlot == step.ResultSlot {
			b.errs = append(b.errs, fmt.Errorf("step '%s': result slot '%s' already written by step '%s'",
				step.Name, step.ResultSlot, prior.Name))
		}
	}

	switch step.Kind {
	case StepInvoke:
		if step.Collaborator == "" {
			b.errs = append(b.errs, fmt.Errorf("step '%s': collaborator cannot be empty", step.Name))
		}
	case StepNotify:
		if step.Notifier == "" {
			b.errs = append(b.errs, fmt.Errorf("step '%s': notifier cannot be empty", step.Name))
		}
	case StepAggregate:
		if step.Aggregate == nil {
			b.errs = append(b.errs, fmt.Errorf("step '%s': aggregate function cannot be nil", step.Name))
		}
	}

	if step.Template != nil {
		b.validateTemplate(step.Name, step.Template)
	}

	b.def.Steps = append(b.def.Steps, step)
}

// validateTemplate checks every reference the template makes against the
// pipeline's required inputs and earlier steps' declared result fields
func (b *Builder) validateTemplate(stepName string, template *Template) {
	for _, field := range template.Fields {
		b.validateFieldRef(stepName, field)
		if field.Source == SourceFormat {
			for _, arg := range field.Args {
				b.validateFieldRef(stepName, arg)
			}
		}
	}
}

func (b *Builder) validateFieldRef(stepName string, field Field) {
	switch field.Source {
	case SourceInput:
		if len(b.def.RequiredInput) == 0 {
			return
		}
		for _, key := range b.def.RequiredInput {
			if key == field.Key {
				return
			}
		}
		b.errs = append(b.errs, fmt.Errorf("step '%s': field '%s' references undeclared input '%s'",
			stepName, field.Name, field.Key))

	case SourceResult:
		producer := b.producerOf(field.Slot)
		if producer == nil {
			b.errs = append(b.errs, fmt.Errorf("step '%s': field '%s' references slot '%s' not written by any earlier step",
				stepName, field.Name, field.Slot))
			return
		}
		// Only the first path segment is checked: nested structure below a
		// declared field is collaborator-defined.
		head := field.Path
		if i := strings.Index(head, "."); i >= 0 {
			head = head[:i]
		}
		for _, produced := range producer.Produces {
			if produced == head {
				return
			}
		}
		b.errs = append(b.errs, fmt.Errorf("step '%s': field '%s' references '%s.%s' but step '%s' does not produce '%s'",
			stepName, field.Name, field.Slot, field.Path, producer.Name, head))
	}
}

func (b *Builder) producerOf(slot string) *Step {
	for i := range b.def.Steps {
		if b.def.Steps[i].ResultSlot == slot {
			return &b.def.Steps[i]
		}
	}
	return nil
}

func joinErrors(errs []error) error {
	if len(errs) == 1 {
		return errs[0]
	}
	msgs := make([]string, len(errs))
	for i, err := range errs {
		msgs[i] = err.Error()
	}
	return fmt.Errorf("%d errors: %s", len(errs), strings.Join(msgs, "; "))
}
