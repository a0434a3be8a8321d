package builders

import (
	"context"

	"golang.org/x/mod/modfile"

	"github.com/MyCarrier-DevOps/pipeline-builder/internal/domain"
	"github.com/MyCarrier-DevOps/pipeline-builder/internal/steps"
)

const defaultGoVersion = "stable"

// NewGo returns the builder for Go modules.
func NewGo() *Variant {
	return &Variant{
		ecosystem:   domain.EcosystemGo,
		displayName: "Go Build",
		testReport:  "reports/junit.xml",
		detect:      markerFiles("go.mod"),
		assemble:    assembleGo,
	}
}

// goVersion returns the go directive of go.mod, or defaultGoVersion when the
// file is missing, unparsable or has no directive.
func goVersion(data []byte) string {
	if len(data) == 0 {
		return defaultGoVersion
	}
	f, err := modfile.ParseLax("go.mod", data, nil)
	if err != nil || f.Go == nil || f.Go.Version == "" {
		return defaultGoVersion
	}
	return f.Go.Version
}

func assembleGo(ctx context.Context, in buildInput) (recipe, error) {
	data, err := readOptional(ctx, in.client, "go.mod")
	if err != nil {
		return recipe{}, err
	}
	report := in.params.TestReportPath

	return recipe{
		setup: []domain.Step{steps.SetupGo(goVersion(data))},
		install: []domain.Step{
			steps.Run("Install Dependencies", "go mod download"),
			steps.Run("List Dependencies", "go list -m all > dependencies.txt"),
			steps.CollectDependencies(),
			steps.Run("List Dependency Updates", "go list -u -m all > dependencyUpdates.txt"),
			steps.CollectDependencyUpdates(),
		},
		build: []domain.Step{
			steps.Run("Build", "go build ./..."),
		},
		test: []domain.Step{
			steps.Run("Install go-junit-report", "go install github.com/jstemmer/go-junit-report/v2@latest"),
			steps.Run("Test", `mkdir -p "$(dirname `+report+`)" && go test -v ./... 2>&1 | `+
				`go-junit-report -set-exit-code > `+report),
			steps.JUnitReport("Go Tests", report, "java-junit"),
		},
		pkg: []domain.Step{
			steps.Run("Build Binaries", "mkdir -p dist && go build -o dist/ ./..."),
			packageDir(in.name, "dist"),
		},
	}, nil
}
