package manifest

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"
)

// refPattern matches {{ reference }} placeholders.
var refPattern = regexp.MustCompile(`\{\{\s*([^{}]+?)\s*\}\}`)

// ErrUnresolvedReference wraps lookups that matched no variable, step output,
// or environment variable.
type ErrUnresolvedReference struct {
	Ref string
}

func (e *ErrUnresolvedReference) Error() string {
	return fmt.Sprintf("unresolved reference: {{ %s }}", e.Ref)
}

// Context supplies the values that {{ ... }} references resolve against.
type Context struct {
	// Variables holds named values, addressed as {{ name }} or
	// {{ prefect.variables.name }}.
	Variables map[string]any

	// Outputs holds step outputs keyed by step id, addressed as
	// {{ step_id.output_key }}.
	Outputs map[string]map[string]any

	// Env resolves {{ $NAME }} references. Defaults to os.LookupEnv.
	Env func(string) (string, bool)

	// Lenient leaves unresolved references in place instead of failing.
	// Rendering uses this for step outputs that only exist at deploy time.
	Lenient bool
}

// NewContext creates a resolution context with environment lookup enabled.
func NewContext(variables map[string]any) *Context {
	return &Context{
		Variables: variables,
		Outputs:   make(map[string]map[string]any),
		Env:       os.LookupEnv,
	}
}

// SetOutputs records a step's outputs so later steps can reference them.
func (c *Context) SetOutputs(stepID string, outputs map[string]any) {
	if c.Outputs == nil {
		c.Outputs = make(map[string]map[string]any)
	}
	c.Outputs[stepID] = outputs
}

// Resolve replaces every {{ reference }} in s. When the whole string is a
// single reference the underlying value is returned with its type intact,
// so step outputs that are not strings survive substitution.
func (c *Context) Resolve(s string) (any, error) {
	if m := refPattern.FindStringSubmatch(s); m != nil && m[0] == strings.TrimSpace(s) {
		value, err := c.lookup(m[1])
		if err != nil && c.Lenient && isUnresolved(err) {
			return s, nil
		}
		return value, err
	}
	return c.ResolveString(s)
}

// ResolveString replaces every {{ reference }} in s with its string form.
func (c *Context) ResolveString(s string) (string, error) {
	var firstErr error

	result := refPattern.ReplaceAllStringFunc(s, func(match string) string {
		ref := refPattern.FindStringSubmatch(match)[1]
		value, err := c.lookup(ref)
		if err != nil {
			if firstErr == nil && !(c.Lenient && isUnresolved(err)) {
				firstErr = err
			}
			return match
		}
		return fmt.Sprintf("%v", value)
	})

	if firstErr != nil {
		return "", firstErr
	}
	return result, nil
}

// ResolveMap applies resolution to every string value in a map, recursing
// into nested maps and sequences.
func (c *Context) ResolveMap(data map[string]any) (map[string]any, error) {
	result := make(map[string]any, len(data))

	for k, v := range data {
		resolved, err := c.resolveValue(v)
		if err != nil {
			return nil, fmt.Errorf("key %q: %w", k, err)
		}
		result[k] = resolved
	}

	return result, nil
}

func (c *Context) resolveValue(value any) (any, error) {
	switch v := value.(type) {
	case string:
		return c.Resolve(v)
	case map[string]any:
		return c.ResolveMap(v)
	case StepArgs:
		return c.ResolveMap(v)
	case []any:
		result := make([]any, len(v))
		for i, item := range v {
			resolved, err := c.resolveValue(item)
			if err != nil {
				return nil, err
			}
			result[i] = resolved
		}
		return result, nil
	default:
		return value, nil
	}
}

func isUnresolved(err error) bool {
	var unresolved *ErrUnresolvedReference
	return errors.As(err, &unresolved)
}

// lookup resolves a single reference body.
func (c *Context) lookup(ref string) (any, error) {
	// {{ $NAME }} reads the environment.
	if name, ok := strings.CutPrefix(ref, "$"); ok {
		env := c.Env
		if env == nil {
			env = os.LookupEnv
		}
		if value, found := env(name); found {
			return value, nil
		}
		return nil, &ErrUnresolvedReference{Ref: ref}
	}

	// {{ prefect.variables.name }} is an alias for {{ name }}.
	if name, ok := strings.CutPrefix(ref, "prefect.variables."); ok {
		if value, found := c.Variables[name]; found {
			return value, nil
		}
		return nil, &ErrUnresolvedReference{Ref: ref}
	}

	// Bare names read variables; dotted paths read step outputs.
	head, rest, dotted := strings.Cut(ref, ".")
	if !dotted {
		if value, found := c.Variables[ref]; found {
			return value, nil
		}
		return nil, &ErrUnresolvedReference{Ref: ref}
	}

	outputs, found := c.Outputs[head]
	if !found {
		return nil, &ErrUnresolvedReference{Ref: ref}
	}

	value, found := walk(outputs, rest)
	if !found {
		return nil, &ErrUnresolvedReference{Ref: ref}
	}
	return value, nil
}

// walk follows a dotted path through nested maps.
func walk(data map[string]any, path string) (any, bool) {
	key, rest, more := strings.Cut(path, ".")

	value, found := data[key]
	if !found {
		return nil, false
	}
	if !more {
		return value, true
	}

	switch nested := value.(type) {
	case map[string]any:
		return walk(nested, rest)
	case StepArgs:
		return walk(nested, rest)
	default:
		return nil, false
	}
}
