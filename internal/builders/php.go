package builders

import (
	"context"
	"encoding/json"

	"github.com/MyCarrier-DevOps/pipeline-builder/internal/domain"
	"github.com/MyCarrier-DevOps/pipeline-builder/internal/steps"
)

const defaultPHPVersion = "8.2"

type composerJSON struct {
	Require    map[string]string `json:"require"`
	RequireDev map[string]string `json:"require-dev"`
}

// NewPHP returns the builder for Composer projects.
func NewPHP() *Variant {
	return &Variant{
		ecosystem:   domain.EcosystemPHP,
		displayName: "PHP Build",
		testReport:  "reports/junit.xml",
		detect:      markerFiles("composer.json"),
		assemble:    assemblePHP,
	}
}

func assemblePHP(ctx context.Context, in buildInput) (recipe, error) {
	data, err := readOptional(ctx, in.client, "composer.json")
	if err != nil {
		return recipe{}, err
	}
	var manifest composerJSON
	_ = json.Unmarshal(data, &manifest)

	version := versionFromConstraint(manifest.Require["php"], defaultPHPVersion)

	r := recipe{
		setup: []domain.Step{steps.SetupPHP(version)},
		install: []domain.Step{
			steps.Run("Install Dependencies", "composer install --prefer-dist --no-progress --no-interaction"),
			steps.Run("List Dependencies", "composer show --tree > dependencies.txt"),
			steps.CollectDependencies(),
			steps.Run("List Dependency Updates", "composer outdated --direct > dependencyUpdates.txt || true"),
			steps.CollectDependencyUpdates(),
		},
		build: []domain.Step{
			steps.Run("Build", "composer dump-autoload --optimize"),
		},
		pkg: []domain.Step{packageDir(in.name, ".")},
	}

	phpunit := manifest.RequireDev["phpunit/phpunit"] != "" || manifest.Require["phpunit/phpunit"] != ""
	if !phpunit {
		phpunit, err = anyFile(ctx, in.client, "phpunit.xml", "phpunit.xml.dist")
		if err != nil {
			return recipe{}, err
		}
	}
	if phpunit {
		r.test = []domain.Step{
			steps.Run("Test", "vendor/bin/phpunit --log-junit "+in.params.TestReportPath),
			steps.JUnitReport("PHPUnit Tests", in.params.TestReportPath, "java-junit"),
		}
	}
	return r, nil
}
