// Package steps is the catalogue of shared, parameterized pipeline steps reused
// by every ecosystem builder.
//
// Constructors are pure: no I/O and the same inputs always yield the same Step.
// Secret values are never produced here, only ${{ secrets.NAME }} references
// that the CI engine resolves at run time. A missing required argument is a
// programming error and panics with *domain.PreconditionError.
package steps

import (
	"strings"

	"github.com/MyCarrier-DevOps/pipeline-builder/internal/domain"
)

// Step ids referenced by later steps through output interpolation.
const (
	VersionStepID      = "determine_version"
	ReleaseStepID      = "create_release"
	ArtifactStepID     = "get_artifact"
	ArtifactNameStepID = "get_artifact_name"
)

// SemVer interpolates the version computed by DetermineVersion.
const SemVer = "${{ steps." + VersionStepID + ".outputs.semVer }}"

// PublishCondition restricts publishing steps to non pull request events.
const PublishCondition = "github.event_name != 'pull_request'"

// Secret returns the interpolation reference for a named secret.
func Secret(name string) string {
	return "${{ secrets." + name + " }}"
}

func mustNotBeEmpty(op, name, value string) {
	if strings.TrimSpace(value) == "" {
		panic(&domain.PreconditionError{Op: op, Reason: name + " must not be empty"})
	}
}

// Checkout clones the repository with full history so version calculation
// can see every tag.
func Checkout() domain.Step {
	return domain.Step{
		Uses: domain.CheckoutAction + "@v1",
		With: domain.NewParams("fetch-depth", "0"),
	}
}

// Run executes a shell script.
func Run(name, script string) domain.Step {
	mustNotBeEmpty("Run", "script", script)
	return domain.Step{
		Name:  name,
		Run:   script,
		Shell: "bash",
	}
}

// GitVersionInstall installs GitVersion.
func GitVersionInstall() domain.Step {
	return domain.Step{
		Name: "Install GitVersion",
		Uses: "gittools/actions/gitversion/setup@v0.9.7",
		With: domain.NewParams("versionSpec", "5.x"),
	}
}

// DetermineVersion calculates the semantic version from git history.
// Its outputs are available through SemVer.
func DetermineVersion() domain.Step {
	return domain.Step{
		Name: "Determine Version",
		ID:   VersionStepID,
		Uses: "gittools/actions/gitversion/execute@v0.9.7",
	}
}

// InstallOctopusCli installs the Octopus Deploy CLI.
func InstallOctopusCli() domain.Step {
	return domain.Step{
		Name: "Install Octopus Deploy CLI",
		Uses: "OctopusDeploy/install-octocli@v1.1.1",
		With: domain.NewParams("version", "latest"),
	}
}

// JUnitReport publishes test results found at path. An empty reporter
// defaults to java-junit.
func JUnitReport(title, path, reporter string) domain.Step {
	mustNotBeEmpty("JUnitReport", "path", path)
	if title == "" {
		title = "Tests"
	}
	if reporter == "" {
		reporter = "java-junit"
	}
	return domain.Step{
		Name: "Report",
		Uses: "dorny/test-reporter@v1",
		If:   "always()",
		With: domain.NewParams(
			"name", title,
			"path", path,
			"reporter", reporter,
			"fail-on-error", "false",
		),
	}
}

// UploadArtifact stores path as a workflow artifact.
func UploadArtifact(stepName, artifactName, path string) domain.Step {
	mustNotBeEmpty("UploadArtifact", "path", path)
	return domain.Step{
		Name: stepName,
		Uses: "actions/upload-artifact@v2",
		With: domain.NewParams(
			"name", artifactName,
			"path", path,
		),
	}
}

// CollectDependencies uploads dependencies.txt.
func CollectDependencies() domain.Step {
	return UploadArtifact("Collect Dependencies", "Dependencies", "dependencies.txt")
}

// CollectDependencyUpdates uploads dependencyUpdates.txt.
func CollectDependencyUpdates() domain.Step {
	return UploadArtifact("Collect Dependency Updates", "Dependencies Updates", "dependencyUpdates.txt")
}

// FindArtifact records the first file matching glob as the get_artifact output.
func FindArtifact(glob string) domain.Step {
	mustNotBeEmpty("FindArtifact", "glob", glob)
	s := Run("Get Artifact Path",
		`echo "artifact=$(ls -1 `+glob+` | head -n 1)" >> "$GITHUB_OUTPUT"`)
	s.ID = ArtifactStepID
	return s
}

// FindArtifactName records the base name of the get_artifact output.
func FindArtifactName() domain.Step {
	s := Run("Get Artifact Name",
		`echo "artifact=$(basename "${{ steps.`+ArtifactStepID+`.outputs.artifact }}")" >> "$GITHUB_OUTPUT"`)
	s.ID = ArtifactNameStepID
	return s
}

// CreateGitHubRelease tags the computed version as a GitHub release.
func CreateGitHubRelease() domain.Step {
	return domain.Step{
		Name: "Create Release",
		ID:   ReleaseStepID,
		Uses: "actions/create-release@v1",
		If:   PublishCondition,
		Env:  domain.NewParams("GITHUB_TOKEN", Secret("GITHUB_TOKEN")),
		With: domain.NewParams(
			"tag_name", SemVer,
			"release_name", "Release "+SemVer,
			"draft", "false",
			"prerelease", "false",
		),
	}
}

// UploadToGitHubRelease attaches the get_artifact file to the release.
func UploadToGitHubRelease() domain.Step {
	return domain.Step{
		Name: "Upload Release Asset",
		Uses: "actions/upload-release-asset@v1",
		If:   PublishCondition,
		Env:  domain.NewParams("GITHUB_TOKEN", Secret("GITHUB_TOKEN")),
		With: domain.NewParams(
			"upload_url", "${{ steps."+ReleaseStepID+".outputs.upload_url }}",
			"asset_path", "${{ steps."+ArtifactStepID+".outputs.artifact }}",
			"asset_name", "${{ steps."+ArtifactNameStepID+".outputs.artifact }}",
			"asset_content_type", "application/octet-stream",
		),
	}
}

// PushToOctopus uploads the packages matching the glob to Octopus.
func PushToOctopus(packages string) domain.Step {
	mustNotBeEmpty("PushToOctopus", "packages", packages)
	return domain.Step{
		Name: "Push to Octopus",
		Uses: "OctopusDeploy/push-package-action@v1.1.1",
		If:   PublishCondition,
		With: domain.NewParams(
			"api_key", Secret("OCTOPUS_API_TOKEN"),
			"packages", packages,
			"server", Secret("OCTOPUS_SERVER_URL"),
		),
	}
}

// UploadOctopusBuildInfo pushes commit and issue metadata for the package.
func UploadOctopusBuildInfo(project, packageID string) domain.Step {
	mustNotBeEmpty("UploadOctopusBuildInfo", "project", project)
	mustNotBeEmpty("UploadOctopusBuildInfo", "packageID", packageID)
	return domain.Step{
		Name: "Generate Octopus Deploy build information",
		Uses: "xo-energy/action-octopus-build-information@v1.1.2",
		If:   PublishCondition,
		With: domain.NewParams(
			"octopus_api_key", Secret("OCTOPUS_API_TOKEN"),
			"octopus_project", project,
			"octopus_server", Secret("OCTOPUS_SERVER_URL"),
			"push_version", SemVer,
			"push_package_ids", packageID,
			"output_path", "octopus",
		),
	}
}

// CreateOctopusRelease creates a release of project and deploys it to channel.
func CreateOctopusRelease(project, channel string) domain.Step {
	mustNotBeEmpty("CreateOctopusRelease", "project", project)
	mustNotBeEmpty("CreateOctopusRelease", "channel", channel)
	return domain.Step{
		Name: "Create Octopus Release",
		Uses: "OctopusDeploy/create-release-action@v1.1.1",
		If:   PublishCondition,
		With: domain.NewParams(
			"api_key", Secret("OCTOPUS_API_TOKEN"),
			"project", project,
			"server", Secret("OCTOPUS_SERVER_URL"),
			"deploy_to", channel,
		),
	}
}
