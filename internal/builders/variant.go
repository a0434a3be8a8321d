// Package builders holds one PipelineBuilder variant per ecosystem.
//
// A Variant pairs a closed domain.Ecosystem value with a detection rule and an
// assembly recipe. Every variant produces the same outer sequence:
//
//	checkout -> setup -> install -> build -> test -> version -> package -> publish
//
// and only fills in the ecosystem specific phases.
package builders

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/MyCarrier-DevOps/pipeline-builder/internal/domain"
	"github.com/MyCarrier-DevOps/pipeline-builder/internal/steps"
)

// Workflow defaults shared by every variant.
const (
	JobID          = "build"
	RunnerImage    = "ubuntu-latest"
	DefaultChannel = "Development"
)

// DefaultTriggers are the workflow events of generated pipelines.
var DefaultTriggers = []string{"push", "workflow_dispatch"}

// recipe holds the ecosystem specific phases of a pipeline.
type recipe struct {
	setup   []domain.Step
	install []domain.Step
	build   []domain.Step
	test    []domain.Step
	pkg     []domain.Step
}

// buildInput is everything an assembly function may depend on.
type buildInput struct {
	client domain.RepoClient

	// name is the resolved repository name or domain.DefaultApplicationName.
	name string

	params domain.BuildParameters
}

type detectFunc func(ctx context.Context, client domain.RepoClient) (bool, error)

type assembleFunc func(ctx context.Context, in buildInput) (recipe, error)

// Variant is a stateless PipelineBuilder for one ecosystem.
type Variant struct {
	ecosystem   domain.Ecosystem
	displayName string
	testReport  string
	detect      detectFunc
	assemble    assembleFunc
}

var _ domain.PipelineBuilder = (*Variant)(nil)

// Ecosystem identifies the builder.
func (v *Variant) Ecosystem() domain.Ecosystem {
	return v.ecosystem
}

// String returns the ecosystem name.
func (v *Variant) String() string {
	return v.ecosystem.String()
}

// CanBuild applies the variant's detection rule.
func (v *Variant) CanBuild(ctx context.Context, client domain.RepoClient) (bool, error) {
	return v.detect(ctx, client)
}

// Build assembles the pipeline for a repository already accepted by CanBuild.
func (v *Variant) Build(
	ctx context.Context,
	client domain.RepoClient,
	params domain.BuildParameters,
) (*domain.Pipeline, error) {
	name := RepoNameOrDefault(ctx, client)
	in := buildInput{
		client: client,
		name:   name,
		params: params.WithDefaults(domain.BuildParameters{
			TestReportPath: v.testReport,
			OctopusProject: name,
			ReleaseChannel: DefaultChannel,
			PackageGlob:    ArtifactFile(name),
		}),
	}

	r, err := v.assemble(ctx, in)
	if err != nil {
		return nil, fmt.Errorf("assembling %s pipeline: %w", v.ecosystem, err)
	}

	var all []domain.Step
	all = append(all, steps.Checkout())
	all = append(all, r.setup...)
	all = append(all, r.install...)
	all = append(all, r.build...)
	all = append(all, r.test...)
	all = append(all, steps.GitVersionInstall(), steps.DetermineVersion())
	all = append(all, r.pkg...)
	all = append(all, publish(in)...)

	return &domain.Pipeline{
		Name:      v.displayName,
		Ecosystem: v.ecosystem,
		Triggers:  append([]string(nil), DefaultTriggers...),
		Jobs: []domain.Job{{
			ID:     JobID,
			Name:   "Build",
			RunsOn: RunnerImage,
			Steps:  all,
		}},
	}, nil
}

// publish returns the release and deployment steps shared by every variant.
func publish(in buildInput) []domain.Step {
	return []domain.Step{
		steps.FindArtifact(in.params.PackageGlob),
		steps.FindArtifactName(),
		steps.CreateGitHubRelease(),
		steps.UploadToGitHubRelease(),
		steps.InstallOctopusCli(),
		steps.PushToOctopus(in.params.PackageGlob),
		steps.UploadOctopusBuildInfo(in.params.OctopusProject, in.name),
		steps.CreateOctopusRelease(in.params.OctopusProject, in.params.ReleaseChannel),
	}
}

// RepoNameOrDefault resolves the repository name, falling back to
// domain.DefaultApplicationName so generation never fails on a missing name.
func RepoNameOrDefault(ctx context.Context, client domain.RepoClient) string {
	if name, ok := client.GetRepoName(ctx); ok && strings.TrimSpace(name) != "" {
		return strings.TrimSpace(name)
	}
	return domain.DefaultApplicationName
}

// ArtifactFile is the package produced by the packaging phase.
func ArtifactFile(name string) string {
	return name + "." + steps.SemVer + ".zip"
}

// packageDir zips dir into the versioned artifact at the workspace root.
func packageDir(name, dir string) domain.Step {
	return steps.Run("Create Package",
		fmt.Sprintf(`cd %s && zip -r "$GITHUB_WORKSPACE/%s" . -x ".git/*"`, dir, ArtifactFile(name)))
}

// anyFile reports whether any of paths exists. Probe failures are returned as-is.
func anyFile(ctx context.Context, client domain.RepoClient, paths ...string) (bool, error) {
	for _, p := range paths {
		ok, err := client.TestFile(ctx, p)
		if err != nil {
			return false, err
		}
		if ok {
			return true, nil
		}
	}
	return false, nil
}

// markerFiles builds a detection rule matching any of paths.
func markerFiles(paths ...string) detectFunc {
	return func(ctx context.Context, client domain.RepoClient) (bool, error) {
		return anyFile(ctx, client, paths...)
	}
}

// readOptional returns the file content, or nil when the file is absent.
func readOptional(ctx context.Context, client domain.RepoClient, path string) ([]byte, error) {
	data, err := client.GetFileContents(ctx, path)
	if errors.Is(err, domain.ErrFileNotFound) {
		return nil, nil
	}
	return data, err
}
