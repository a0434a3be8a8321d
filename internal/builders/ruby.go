package builders

import (
	"bytes"
	"context"
	"strings"

	"github.com/MyCarrier-DevOps/pipeline-builder/internal/domain"
	"github.com/MyCarrier-DevOps/pipeline-builder/internal/steps"
)

const defaultRubyVersion = "3.2"

// NewRuby returns the builder for Bundler projects.
func NewRuby() *Variant {
	return &Variant{
		ecosystem:   domain.EcosystemRuby,
		displayName: "Ruby Build",
		testReport:  "reports/rspec.xml",
		detect:      markerFiles("Gemfile"),
		assemble:    assembleRuby,
	}
}

func assembleRuby(ctx context.Context, in buildInput) (recipe, error) {
	gemfile, err := readOptional(ctx, in.client, "Gemfile")
	if err != nil {
		return recipe{}, err
	}
	pinned, err := readOptional(ctx, in.client, ".ruby-version")
	if err != nil {
		return recipe{}, err
	}
	rakefile, err := in.client.TestFile(ctx, "Rakefile")
	if err != nil {
		return recipe{}, err
	}
	gemspecs, err := in.client.FindFiles(ctx, "*.gemspec")
	if err != nil {
		return recipe{}, err
	}

	version := defaultRubyVersion
	if v := strings.TrimSpace(string(pinned)); v != "" {
		version = strings.TrimPrefix(v, "ruby-")
	}

	r := recipe{
		setup: []domain.Step{steps.SetupRuby(version)},
		install: []domain.Step{
			steps.Run("Install Dependencies", "bundle install --jobs 4"),
			steps.Run("List Dependencies", "bundle list > dependencies.txt"),
			steps.CollectDependencies(),
			steps.Run("List Dependency Updates", "bundle outdated > dependencyUpdates.txt || true"),
			steps.CollectDependencyUpdates(),
		},
		pkg: []domain.Step{packageDir(in.name, ".")},
	}

	if len(gemspecs) > 0 {
		r.build = []domain.Step{steps.Run("Build", "gem build "+gemspecs[0])}
	}

	switch {
	case bytes.Contains(gemfile, []byte("rspec")):
		r.test = []domain.Step{
			steps.Run("Install JUnit Formatter", "gem install rspec_junit_formatter"),
			steps.Run("Test", "bundle exec rspec --format progress "+
				"--format RspecJunitFormatter --out "+in.params.TestReportPath),
			steps.JUnitReport("RSpec Tests", in.params.TestReportPath, "java-junit"),
		}
	case rakefile:
		r.test = []domain.Step{steps.Run("Test", "bundle exec rake")}
	}
	return r, nil
}
