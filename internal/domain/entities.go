// Package domain defines the core business entities and interfaces for pipeline-builder.
package domain

import (
	"fmt"
	"strings"
)

// DefaultApplicationName is substituted wherever a step needs the repository
// display name and the host could not resolve one.
const DefaultApplicationName = "application"

// Ecosystem identifies the language/build-tool combination a builder targets.
type Ecosystem int

// Supported ecosystems. Generic must stay last; it matches every repository.
const (
	EcosystemMaven Ecosystem = iota
	EcosystemGradle
	EcosystemNodeJS
	EcosystemPHP
	EcosystemPython
	EcosystemGo
	EcosystemRuby
	EcosystemDotNetCore
	EcosystemGeneric
)

var ecosystemNames = map[Ecosystem]string{
	EcosystemMaven:      "maven",
	EcosystemGradle:     "gradle",
	EcosystemNodeJS:     "nodejs",
	EcosystemPHP:        "php",
	EcosystemPython:     "python",
	EcosystemGo:         "go",
	EcosystemRuby:       "ruby",
	EcosystemDotNetCore: "dotnetcore",
	EcosystemGeneric:    "generic",
}

// String returns the lowercase ecosystem name.
func (e Ecosystem) String() string {
	if name, ok := ecosystemNames[e]; ok {
		return name
	}
	return fmt.Sprintf("ecosystem(%d)", int(e))
}

// ParseEcosystem returns the ecosystem with the given name.
func ParseEcosystem(name string) (Ecosystem, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	for eco, n := range ecosystemNames {
		if n == name {
			return eco, nil
		}
	}
	return 0, &PreconditionError{Op: "ParseEcosystem", Reason: fmt.Sprintf("unknown ecosystem %q", name)}
}

// Param is a single key/value pair of a step parameter or environment map.
type Param struct {
	Key   string
	Value string
}

// Params is an insertion-ordered string map with unique keys.
// Rendered workflows keep the order in which parameters were added.
type Params []Param

// NewParams builds Params from alternating keys and values.
// A trailing key without a value is ignored.
func NewParams(kv ...string) Params {
	p := make(Params, 0, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		p = p.Set(kv[i], kv[i+1])
	}
	return p
}

// Set returns a copy of p with key set to value. An existing key keeps its
// position. p itself is never modified, so steps sharing Params stay intact.
func (p Params) Set(key, value string) Params {
	out := p.Clone()
	for i := range out {
		if out[i].Key == key {
			out[i].Value = value
			return out
		}
	}
	return append(out, Param{Key: key, Value: value})
}

// Get returns the value stored under key.
func (p Params) Get(key string) (string, bool) {
	for _, kv := range p {
		if kv.Key == key {
			return kv.Value, true
		}
	}
	return "", false
}

// Keys returns the keys in insertion order.
func (p Params) Keys() []string {
	keys := make([]string, 0, len(p))
	for _, kv := range p {
		keys = append(keys, kv.Key)
	}
	return keys
}

// Len returns the number of entries.
func (p Params) Len() int {
	return len(p)
}

// Clone returns a copy that does not share storage with p.
func (p Params) Clone() Params {
	if p == nil {
		return nil
	}
	out := make(Params, len(p))
	copy(out, p)
	return out
}

// Step is one pipeline action. Exactly one of Uses or Run is set.
type Step struct {
	// Uses references a reusable action, e.g. "actions/checkout@v4".
	Uses string

	// Run is a raw shell script executed instead of an action.
	Run string

	// Shell selects the interpreter for Run (optional).
	Shell string

	// Name is the human label. DisplayName derives one when empty.
	Name string

	// ID lets later steps interpolate this step's outputs.
	// Must be unique within the enclosing pipeline.
	ID string

	// If is a condition expression evaluated by the CI engine, e.g. "always()".
	If string

	// With holds the action parameters.
	With Params

	// Env holds environment variables for the step.
	Env Params
}

// DisplayName returns Name, or a label derived from Uses/Run.
func (s Step) DisplayName() string {
	if s.Name != "" {
		return s.Name
	}
	if s.Uses != "" {
		action, _, _ := strings.Cut(s.Uses, "@")
		return action
	}
	line, _, _ := strings.Cut(strings.TrimSpace(s.Run), "\n")
	return line
}

// IsCheckout reports whether the step checks out the repository.
func (s Step) IsCheckout() bool {
	action, _, _ := strings.Cut(s.Uses, "@")
	return action == CheckoutAction
}

// CheckoutAction is the action every job must start with.
const CheckoutAction = "actions/checkout"

// Job is a named group of steps executed on one runner.
type Job struct {
	ID     string
	Name   string
	RunsOn string
	Steps  []Step
}

// Pipeline is the ordered result of a builder. Order is significant.
type Pipeline struct {
	// Name is the workflow display name.
	Name string

	// Ecosystem records which builder produced the pipeline.
	Ecosystem Ecosystem

	// Triggers lists the workflow events, e.g. "push".
	Triggers []string

	// Jobs holds the step groups in execution order.
	Jobs []Job
}

// Steps returns every step of every job in order.
func (p *Pipeline) Steps() []Step {
	var out []Step
	for _, job := range p.Jobs {
		out = append(out, job.Steps...)
	}
	return out
}

// Validate checks the structural invariants of a generated pipeline:
// each job starts with checkout, step ids are unique across the pipeline,
// and every step sets exactly one of Uses or Run.
func (p *Pipeline) Validate() error {
	if len(p.Steps()) == 0 {
		return fmt.Errorf("%w: pipeline has no steps", ErrInvalidPipeline)
	}

	ids := make(map[string]string)
	for _, job := range p.Jobs {
		if len(job.Steps) == 0 {
			continue
		}
		if !job.Steps[0].IsCheckout() {
			return fmt.Errorf("%w: job %q does not start with checkout", ErrInvalidPipeline, job.ID)
		}
		for i, step := range job.Steps {
			if (step.Uses == "") == (step.Run == "") {
				return fmt.Errorf("%w: job %q step %d must set exactly one of uses or run",
					ErrInvalidPipeline, job.ID, i)
			}
			if step.ID == "" {
				continue
			}
			if prev, ok := ids[step.ID]; ok {
				return fmt.Errorf("%w: step id %q used by %q and %q",
					ErrInvalidPipeline, step.ID, prev, step.DisplayName())
			}
			ids[step.ID] = step.DisplayName()
		}
	}
	return nil
}

// BuildParameters carries caller-supplied options for Build.
// Empty fields are filled with ecosystem defaults.
type BuildParameters struct {
	// TestReportPath is where test output is collected from.
	TestReportPath string

	// OctopusProject is the deployment project to release to.
	OctopusProject string

	// ReleaseChannel is the environment the release deploys to.
	ReleaseChannel string

	// PackageGlob matches the artifacts pushed to the deployment tool.
	PackageGlob string
}

// WithDefaults returns b with every blank field taken from fallback.
// Values are trimmed, so whitespace alone counts as blank.
func (b BuildParameters) WithDefaults(fallback BuildParameters) BuildParameters {
	return BuildParameters{
		TestReportPath: orDefault(b.TestReportPath, fallback.TestReportPath),
		OctopusProject: orDefault(b.OctopusProject, fallback.OctopusProject),
		ReleaseChannel: orDefault(b.ReleaseChannel, fallback.ReleaseChannel),
		PackageGlob:    orDefault(b.PackageGlob, fallback.PackageGlob),
	}
}

func orDefault(v, fallback string) string {
	if v = strings.TrimSpace(v); v != "" {
		return v
	}
	return strings.TrimSpace(fallback)
}

// AuditEntry describes one pipeline generation for the audit trail.
type AuditEntry struct {
	// Repository is the location the pipeline was generated for.
	Repository string

	// RepoName is the resolved display name (may be empty).
	RepoName string

	// Ecosystem is the selected builder.
	Ecosystem Ecosystem

	// StepCount is the number of steps in the generated pipeline.
	StepCount int
}
