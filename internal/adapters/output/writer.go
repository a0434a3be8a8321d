// Package output provides adapters for writing application output.
package output

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/MyCarrier-DevOps/pipeline-builder/internal/domain"
)

// WorkflowWriter renders pipelines as GitHub Actions workflow YAML.
type WorkflowWriter struct {
	out io.Writer
}

var _ domain.PipelineWriter = (*WorkflowWriter)(nil)

// NewWriterWithOutput creates a new WorkflowWriter with a custom output destination.
// This is useful for testing.
func NewWriterWithOutput(out io.Writer) *WorkflowWriter {
	return &WorkflowWriter{out: out}
}

// WritePipeline writes the workflow document for p.
func (w *WorkflowWriter) WritePipeline(p *domain.Pipeline) error {
	data, err := MarshalWorkflow(p)
	if err != nil {
		return err
	}
	_, err = w.out.Write(data)
	return err
}

// WriteEcosystem writes the selected ecosystem as a single line.
func (w *WorkflowWriter) WriteEcosystem(eco domain.Ecosystem) error {
	_, err := fmt.Fprintln(w.out, eco.String())
	return err
}

// MarshalWorkflow renders p. Mapping keys keep a fixed order and step
// parameters keep their insertion order.
func MarshalWorkflow(p *domain.Pipeline) ([]byte, error) {
	if p == nil {
		return nil, fmt.Errorf("%w: nil pipeline", domain.ErrPrecondition)
	}

	triggers := mapping()
	for _, trigger := range p.Triggers {
		appendPair(triggers, trigger, mapping())
	}

	jobs := mapping()
	for _, job := range p.Jobs {
		appendPair(jobs, job.ID, jobNode(job))
	}

	doc := mapping()
	appendPair(doc, "name", scalar(p.Name))
	appendPair(doc, "on", triggers)
	appendPair(doc, "jobs", jobs)

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		return nil, fmt.Errorf("encoding workflow: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("encoding workflow: %w", err)
	}
	return buf.Bytes(), nil
}

func jobNode(job domain.Job) *yaml.Node {
	steps := &yaml.Node{Kind: yaml.SequenceNode}
	for _, step := range job.Steps {
		steps.Content = append(steps.Content, stepNode(step))
	}

	n := mapping()
	if job.Name != "" {
		appendPair(n, "name", scalar(job.Name))
	}
	appendPair(n, "runs-on", scalar(job.RunsOn))
	appendPair(n, "steps", steps)
	return n
}

func stepNode(step domain.Step) *yaml.Node {
	n := mapping()
	optional := func(key, value string) {
		if value != "" {
			appendPair(n, key, scalar(value))
		}
	}

	optional("name", step.Name)
	optional("id", step.ID)
	optional("if", step.If)
	optional("uses", step.Uses)
	if step.Run != "" {
		run := scalar(step.Run)
		if strings.Contains(step.Run, "\n") {
			run.Style = yaml.LiteralStyle
		}
		appendPair(n, "run", run)
	}
	optional("shell", step.Shell)
	if step.With.Len() > 0 {
		appendPair(n, "with", paramsNode(step.With))
	}
	if step.Env.Len() > 0 {
		appendPair(n, "env", paramsNode(step.Env))
	}
	return n
}

func paramsNode(params domain.Params) *yaml.Node {
	n := mapping()
	for _, key := range params.Keys() {
		value, _ := params.Get(key)
		appendPair(n, key, scalar(value))
	}
	return n
}

func mapping() *yaml.Node {
	return &yaml.Node{Kind: yaml.MappingNode}
}

// scalar returns a string node. The yaml encoder quotes values that would
// otherwise resolve to another type, such as "0" or "false".
func scalar(value string) *yaml.Node {
	return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: value}
}

func appendPair(m *yaml.Node, key string, value *yaml.Node) {
	m.Content = append(m.Content, scalar(key), value)
}
