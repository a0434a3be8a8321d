package builders

import (
	"context"

	"github.com/pelletier/go-toml/v2"

	"github.com/MyCarrier-DevOps/pipeline-builder/internal/domain"
	"github.com/MyCarrier-DevOps/pipeline-builder/internal/steps"
)

const defaultPythonVersion = "3.x"

// pyProject is the subset of pyproject.toml the Python builder reads.
type pyProject struct {
	Project struct {
		RequiresPython string `toml:"requires-python"`
	} `toml:"project"`
	Tool struct {
		Poetry *struct {
			Dependencies map[string]any `toml:"dependencies"`
		} `toml:"poetry"`
	} `toml:"tool"`
}

// pythonVersion returns the interpreter constraint declared by the project,
// either PEP 621 requires-python or the poetry "python" dependency.
func (p *pyProject) pythonVersion() string {
	if p.Project.RequiresPython != "" {
		return versionFromConstraint(p.Project.RequiresPython, defaultPythonVersion)
	}
	if p.Tool.Poetry != nil {
		if c, ok := p.Tool.Poetry.Dependencies["python"].(string); ok {
			return versionFromConstraint(c, defaultPythonVersion)
		}
	}
	return defaultPythonVersion
}

// NewPython returns the builder for pip, setuptools and poetry projects.
func NewPython() *Variant {
	return &Variant{
		ecosystem:   domain.EcosystemPython,
		displayName: "Python Build",
		testReport:  "reports/junit.xml",
		detect:      markerFiles("pyproject.toml", "setup.py", "requirements.txt"),
		assemble:    assemblePython,
	}
}

func assemblePython(ctx context.Context, in buildInput) (recipe, error) {
	data, err := readOptional(ctx, in.client, "pyproject.toml")
	if err != nil {
		return recipe{}, err
	}
	var project pyProject
	if len(data) > 0 {
		// A malformed pyproject.toml is left for pip to report at run time.
		_ = toml.Unmarshal(data, &project)
	}
	requirements, err := in.client.TestFile(ctx, "requirements.txt")
	if err != nil {
		return recipe{}, err
	}
	setupPy, err := in.client.TestFile(ctx, "setup.py")
	if err != nil {
		return recipe{}, err
	}

	poetry := project.Tool.Poetry != nil
	run := ""
	if poetry {
		run = "poetry run "
	}

	var r recipe
	r.setup = []domain.Step{steps.SetupPython(project.pythonVersion())}

	switch {
	case poetry:
		r.install = []domain.Step{
			steps.Run("Install Poetry", "pip install poetry"),
			steps.Run("Install Dependencies", "poetry install --no-interaction"),
		}
	case requirements:
		r.install = []domain.Step{steps.Run("Install Dependencies", "pip install -r requirements.txt")}
	default:
		r.install = []domain.Step{steps.Run("Install Dependencies", "pip install .")}
	}
	r.install = append(r.install,
		steps.Run("List Dependencies", run+"pip freeze > dependencies.txt"),
		steps.CollectDependencies(),
		steps.Run("List Dependency Updates", run+"pip list --outdated > dependencyUpdates.txt"),
		steps.CollectDependencyUpdates(),
	)

	if len(data) > 0 || setupPy {
		r.build = []domain.Step{steps.Run("Build", "pip install build && python -m build")}
	} else {
		r.build = []domain.Step{steps.Run("Build", "python -m compileall -q .")}
	}

	r.test = []domain.Step{
		steps.Run("Test", "pip install pytest && "+run+"pytest --junitxml="+in.params.TestReportPath),
		steps.JUnitReport("Python Tests", in.params.TestReportPath, "java-junit"),
	}
	r.pkg = []domain.Step{packageDir(in.name, ".")}
	return r, nil
}
