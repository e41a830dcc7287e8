package manifest

import (
	"errors"
	"fmt"
	"regexp"
)

// Validation errors for manifest structure.
var (
	// ErrInvalidEntrypoint indicates an entrypoint that is not of the form
	// "<nonempty path>:<nonempty identifier>".
	ErrInvalidEntrypoint = errors.New("invalid entrypoint")

	// ErrMissingWorkPoolName indicates a work_pool record without a name.
	ErrMissingWorkPoolName = errors.New("missing work pool name")

	// ErrMissingWorkQueue indicates a work_pool record without a queue name.
	ErrMissingWorkQueue = errors.New("missing work queue name")

	// ErrDuplicateDeployment indicates two entries sharing both name and
	// entrypoint. Sharing a name alone is legal.
	ErrDuplicateDeployment = errors.New("duplicate deployment")

	// ErrInvalidStep indicates a step that does not map exactly one step
	// identifier to an argument record.
	ErrInvalidStep = errors.New("invalid step")

	// ErrInvalidSchedule indicates a schedule that does not set exactly one
	// of cron, interval, or rrule.
	ErrInvalidSchedule = errors.New("invalid schedule")
)

// entrypointPattern matches "<path>:<callable>" where the callable is a
// Python identifier. The path may not contain a colon or whitespace.
var entrypointPattern = regexp.MustCompile(`^[^:\s]+:[A-Za-z_][A-Za-z0-9_]*$`)

// Validate checks the whole manifest and returns every structural problem
// found, in document order. A nil result means the manifest is valid.
func Validate(m *Manifest) []error {
	var errs []error

	for _, section := range []struct {
		name  string
		steps []Step
	}{
		{"build", m.Build},
		{"push", m.Push},
		{"pull", m.Pull},
	} {
		for i, step := range section.steps {
			if err := ValidateStep(step); err != nil {
				errs = append(errs, fmt.Errorf("%s[%d]: %w", section.name, i, err))
			}
		}
	}

	seen := make(map[string]bool, len(m.Deployments))
	for i, d := range m.Deployments {
		if err := ValidateDeployment(d); err != nil {
			errs = append(errs, fmt.Errorf("deployments[%d] %q: %w", i, d.Name, err))
		}

		key := d.Name + "\x00" + d.Entrypoint
		if seen[key] {
			errs = append(errs, fmt.Errorf("deployments[%d]: %w: %s", i, ErrDuplicateDeployment, d.Key()))
		}
		seen[key] = true
	}

	return errs
}

// ValidateDeployment checks a single deployment entry.
func ValidateDeployment(d Deployment) error {
	if !entrypointPattern.MatchString(d.Entrypoint) {
		return fmt.Errorf("%w: %q (want \"<path>:<callable>\")", ErrInvalidEntrypoint, d.Entrypoint)
	}

	if d.WorkPool != nil {
		if d.WorkPool.Name == "" {
			return ErrMissingWorkPoolName
		}
		if d.WorkPool.WorkQueueName == "" {
			return ErrMissingWorkQueue
		}
	}

	for i, s := range d.Schedules {
		if err := ValidateSchedule(s); err != nil {
			return fmt.Errorf("schedules[%d]: %w", i, err)
		}
	}

	return nil
}

// ValidateStep checks that a step maps exactly one identifier to arguments.
func ValidateStep(s Step) error {
	if len(s) != 1 {
		return fmt.Errorf("%w: want exactly one step identifier, got %d", ErrInvalidStep, len(s))
	}
	return nil
}

// ValidateSchedule checks that exactly one schedule kind is set.
func ValidateSchedule(s Schedule) error {
	kinds := 0
	if s.Cron != "" {
		kinds++
	}
	if s.Interval != 0 {
		kinds++
	}
	if s.RRule != "" {
		kinds++
	}

	if kinds != 1 {
		return fmt.Errorf("%w: set exactly one of cron, interval, rrule", ErrInvalidSchedule)
	}

	if s.Interval < 0 {
		return fmt.Errorf("%w: interval must be positive", ErrInvalidSchedule)
	}

	return nil
}
