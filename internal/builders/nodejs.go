package builders

import (
	"context"
	"encoding/json"

	"github.com/MyCarrier-DevOps/pipeline-builder/internal/domain"
	"github.com/MyCarrier-DevOps/pipeline-builder/internal/steps"
)

const defaultNodeVersion = "lts/*"

// packageJSON is the subset of package.json the Node.js builder reads.
type packageJSON struct {
	Scripts map[string]string `json:"scripts"`
	Engines struct {
		Node string `json:"node"`
	} `json:"engines"`
}

// NewNodeJS returns the builder for repositories with a root package.json.
func NewNodeJS() *Variant {
	return &Variant{
		ecosystem:   domain.EcosystemNodeJS,
		displayName: "Node.js Build",
		testReport:  "junit.xml",
		detect:      markerFiles("package.json"),
		assemble:    assembleNodeJS,
	}
}

// readPackageJSON returns nil when the manifest is absent or not valid JSON.
// Without a scripts section every script is assumed to exist.
func readPackageJSON(ctx context.Context, client domain.RepoClient) (*packageJSON, error) {
	data, err := readOptional(ctx, client, "package.json")
	if err != nil || len(data) == 0 {
		return nil, err
	}
	var manifest packageJSON
	if json.Unmarshal(data, &manifest) != nil {
		return nil, nil
	}
	return &manifest, nil
}

func assembleNodeJS(ctx context.Context, in buildInput) (recipe, error) {
	manifest, err := readPackageJSON(ctx, in.client)
	if err != nil {
		return recipe{}, err
	}
	yarn, err := in.client.TestFile(ctx, "yarn.lock")
	if err != nil {
		return recipe{}, err
	}
	lockfile, err := in.client.TestFile(ctx, "package-lock.json")
	if err != nil {
		return recipe{}, err
	}

	hasScript := func(name string) bool {
		if manifest == nil || manifest.Scripts == nil {
			return true
		}
		_, ok := manifest.Scripts[name]
		return ok
	}

	version := defaultNodeVersion
	if manifest != nil && manifest.Engines.Node != "" {
		version = versionFromConstraint(manifest.Engines.Node, defaultNodeVersion)
	}

	var r recipe
	r.setup = []domain.Step{steps.SetupNode(version)}

	switch {
	case yarn:
		r.install = []domain.Step{steps.Run("Install Dependencies", "yarn install --frozen-lockfile")}
	case lockfile:
		r.install = []domain.Step{steps.Run("Install Dependencies", "npm ci")}
	default:
		r.install = []domain.Step{steps.Run("Install Dependencies", "npm install")}
	}
	r.install = append(r.install,
		steps.Run("List Dependencies", "npm ls --all > dependencies.txt || true"),
		steps.CollectDependencies(),
		steps.Run("List Dependency Updates", "npm outdated > dependencyUpdates.txt || true"),
		steps.CollectDependencyUpdates(),
	)

	if hasScript("build") {
		if yarn {
			r.build = []domain.Step{steps.Run("Build", "yarn build")}
		} else {
			r.build = []domain.Step{steps.Run("Build", "npm run build --if-present")}
		}
	}

	if hasScript("test") {
		test := steps.Run("Test", "npm test --if-present")
		if yarn {
			test = steps.Run("Test", "yarn test")
		}
		test.Env = domain.NewParams(
			"CI", "true",
			"JEST_JUNIT_OUTPUT_FILE", in.params.TestReportPath,
		)
		r.test = []domain.Step{
			test,
			steps.JUnitReport("Node.js Tests", in.params.TestReportPath, "jest-junit"),
		}
	}

	r.pkg = []domain.Step{packageDir(in.name, ".")}
	return r, nil
}
