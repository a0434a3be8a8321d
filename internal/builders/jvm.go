package builders

import (
	"context"

	"github.com/MyCarrier-DevOps/pipeline-builder/internal/domain"
	"github.com/MyCarrier-DevOps/pipeline-builder/internal/steps"
)

// NewMaven returns the builder for repositories with a root pom.xml.
func NewMaven() *Variant {
	return &Variant{
		ecosystem:   domain.EcosystemMaven,
		displayName: "Java Maven Build",
		testReport:  "target/surefire-reports/*.xml",
		detect:      markerFiles("pom.xml"),
		assemble:    assembleMaven,
	}
}

func assembleMaven(_ context.Context, in buildInput) (recipe, error) {
	return recipe{
		setup: []domain.Step{steps.InstallJava()},
		install: []domain.Step{
			steps.Run("Install Dependencies", "mvn --batch-mode dependency:resolve-plugins dependency:go-offline"),
			steps.Run("List Dependencies", "mvn --batch-mode dependency:tree --no-transfer-progress > dependencies.txt"),
			steps.CollectDependencies(),
			steps.Run("List Dependency Updates",
				"mvn --batch-mode versions:display-dependency-updates > dependencyUpdates.txt"),
			steps.CollectDependencyUpdates(),
		},
		build: []domain.Step{
			steps.Run("Compile", "mvn --batch-mode -DskipTests compile"),
		},
		test: []domain.Step{
			steps.Run("Test", "mvn --batch-mode -Dmaven.test.failure.ignore=true test"),
			steps.JUnitReport("Maven Tests", in.params.TestReportPath, "java-junit"),
		},
		pkg: []domain.Step{
			steps.Run("Package", "mvn --batch-mode -DskipTests package"),
			steps.Run("Stage Artifacts", "mkdir -p package && cp target/*.jar package/"),
			packageDir(in.name, "package"),
		},
	}, nil
}

// NewGradle returns the builder for Gradle projects, preferring the wrapper
// script when the repository ships one.
func NewGradle() *Variant {
	return &Variant{
		ecosystem:   domain.EcosystemGradle,
		displayName: "Java Gradle Build",
		testReport:  "build/test-results/**/*.xml",
		detect:      markerFiles("build.gradle", "build.gradle.kts", "gradlew"),
		assemble:    assembleGradle,
	}
}

func assembleGradle(ctx context.Context, in buildInput) (recipe, error) {
	wrapper, err := in.client.TestFile(ctx, "gradlew")
	if err != nil {
		return recipe{}, err
	}

	gradle := "gradle"
	var install []domain.Step
	if wrapper {
		gradle = "./gradlew"
		install = append(install, steps.Run("Make Wrapper Executable", "chmod +x gradlew"))
	}

	install = append(install,
		steps.Run("List Dependencies", gradle+" dependencies --console=plain > dependencies.txt"),
		steps.CollectDependencies(),
		steps.Run("List Dependency Updates",
			gradle+" dependencyUpdates --console=plain > dependencyUpdates.txt || true"),
		steps.CollectDependencyUpdates(),
	)

	return recipe{
		setup:   []domain.Step{steps.InstallJava()},
		install: install,
		build: []domain.Step{
			steps.Run("Build", gradle+" assemble --console=plain"),
		},
		test: []domain.Step{
			steps.Run("Test", gradle+" test --console=plain"),
			steps.JUnitReport("Gradle Tests", in.params.TestReportPath, "java-junit"),
		},
		pkg: []domain.Step{
			packageDir(in.name, "build/libs"),
		},
	}, nil
}
