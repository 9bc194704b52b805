// Package validation runs preflight checks before an experiment and prints
// their outcome.
package validation

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/fatih/color"
)

// StepStatus is the outcome of one check.
type StepStatus int

const (
	StepPending StepStatus = iota
	StepPassed
	StepFailed
	StepWarning
	StepSkipped
)

func (s StepStatus) String() string {
	switch s {
	case StepPending:
		return "pending"
	case StepPassed:
		return "passed"
	case StepFailed:
		return "failed"
	case StepWarning:
		return "warning"
	case StepSkipped:
		return "skipped"
	default:
		return "unknown"
	}
}

// CheckFunc returns a short message on success. A *Warning error marks the
// step as a warning rather than a failure.
type CheckFunc func() (string, error)

// Warning is a non-fatal check result.
type Warning struct {
	Message string
}

func (w *Warning) Error() string {
	return w.Message
}

// ValidationStep is a completed check.
type ValidationStep struct {
	Name    string
	Status  StepStatus
	Message string
	Error   error
	Latency time.Duration
}

// SuiteResult summarises a run of the suite.
type SuiteResult struct {
	Steps       []ValidationStep
	PassedSteps int
	FailedSteps int
	Warnings    int
	Duration    time.Duration
	Success     bool
}

// FirstError returns the first failed step's error, or nil.
func (r SuiteResult) FirstError() error {
	for _, step := range r.Steps {
		if step.Status == StepFailed {
			return step.Error
		}
	}
	return nil
}

type check struct {
	name string
	fn   CheckFunc
}

// Suite runs named checks in order and prints colored progress.
type Suite struct {
	title    string
	checks   []check
	output   io.Writer
	quiet    bool
	failFast bool
}

// NewSuite creates a suite printing to stdout.
func NewSuite(title string) *Suite {
	return &Suite{title: title, output: os.Stdout}
}

// WithOutput sets the writer for progress output.
func (s *Suite) WithOutput(w io.Writer) *Suite {
	s.output = w
	return s
}

// WithQuiet disables progress output.
func (s *Suite) WithQuiet(quiet bool) *Suite {
	s.quiet = quiet
	return s
}

// WithFailFast skips the remaining checks after the first failure.
func (s *Suite) WithFailFast(failFast bool) *Suite {
	s.failFast = failFast
	return s
}

// Add appends a check.
func (s *Suite) Add(name string, fn CheckFunc) *Suite {
	s.checks = append(s.checks, check{name: name, fn: fn})
	return s
}

// Run executes every check.
func (s *Suite) Run() SuiteResult {
	start := time.Now()
	if !s.quiet {
		s.printHeader()
	}

	steps := make([]ValidationStep, 0, len(s.checks))
	failed := false
	for _, c := range s.checks {
		var step ValidationStep
		if failed && s.failFast {
			step = ValidationStep{Name: c.name, Status: StepSkipped, Message: "skipped after earlier failure"}
		} else {
			step = s.runStep(c)
			failed = failed || step.Status == StepFailed
		}
		if !s.quiet {
			s.printStep(step)
		}
		steps = append(steps, step)
	}

	result := buildResult(steps, start)
	if !s.quiet {
		s.printSummary(result)
	}
	return result
}

func (s *Suite) runStep(c check) ValidationStep {
	start := time.Now()
	msg, err := c.fn()
	step := ValidationStep{Name: c.name, Message: msg, Error: err, Latency: time.Since(start)}

	var warn *Warning
	switch {
	case err == nil:
		step.Status = StepPassed
	case asWarning(err, &warn):
		step.Status = StepWarning
		step.Message = warn.Message
	default:
		step.Status = StepFailed
	}
	return step
}

func asWarning(err error, target **Warning) bool {
	w, ok := err.(*Warning)
	if ok {
		*target = w
	}
	return ok
}

func buildResult(steps []ValidationStep, start time.Time) SuiteResult {
	result := SuiteResult{Steps: steps, Duration: time.Since(start), Success: true}
	for _, step := range steps {
		switch step.Status {
		case StepPassed:
			result.PassedSteps++
		case StepFailed:
			result.FailedSteps++
			result.Success = false
		case StepWarning:
			result.Warnings++
		}
	}
	return result
}

func (s *Suite) printHeader() {
	fmt.Fprintln(s.output)
	color.New(color.FgCyan, color.Bold).Fprintf(s.output, "━━━ %s ━━━\n", s.title)
}

func (s *Suite) printStep(step ValidationStep) {
	var icon string
	var clr *color.Color
	switch step.Status {
	case StepPassed:
		icon, clr = "✓", color.New(color.FgGreen)
	case StepFailed:
		icon, clr = "✗", color.New(color.FgRed)
	case StepWarning:
		icon, clr = "!", color.New(color.FgYellow)
	default:
		icon, clr = "○", color.New(color.FgHiBlack)
	}

	clr.Fprintf(s.output, "  %s %s", icon, step.Name)
	if step.Message != "" {
		color.New(color.FgHiBlack).Fprintf(s.output, " - %s", step.Message)
	}
	fmt.Fprintln(s.output)

	if step.Status == StepFailed && step.Error != nil {
		color.New(color.FgRed).Fprintf(s.output, "    └─ %s\n", step.Error.Error())
	}
}

func (s *Suite) printSummary(result SuiteResult) {
	total := len(result.Steps)
	if result.Success {
		color.New(color.FgGreen, color.Bold).Fprintf(s.output, "━━━ Preflight passed (%d/%d) ━━━\n\n",
			result.PassedSteps+result.Warnings, total)
		return
	}
	color.New(color.FgRed, color.Bold).Fprintf(s.output, "━━━ Preflight failed (%d passed, %d failed) ━━━\n\n",
		result.PassedSteps, result.FailedSteps)
}
