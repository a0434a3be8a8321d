package builders

import (
	"context"
	"encoding/xml"
	"regexp"
	"strings"

	"github.com/MyCarrier-DevOps/pipeline-builder/internal/domain"
	"github.com/MyCarrier-DevOps/pipeline-builder/internal/steps"
)

const (
	defaultDotNetVersion = "6.0.x"
	netSdkPrefix         = "Microsoft.NET.Sdk"
	projectPattern       = "**/*.csproj"
)

var targetFrameworkPattern = regexp.MustCompile(`^net(?:coreapp)?(\d+\.\d+)`)

// csproj is the subset of an SDK-style project file the builder reads.
type csproj struct {
	XMLName        xml.Name `xml:"Project"`
	Sdk            string   `xml:"Sdk,attr"`
	PropertyGroups []struct {
		TargetFramework  string `xml:"TargetFramework"`
		TargetFrameworks string `xml:"TargetFrameworks"`
	} `xml:"PropertyGroup"`
}

// sdkVersion maps the first target framework to a setup-dotnet version,
// e.g. net8.0 -> 8.0.x and netcoreapp3.1 -> 3.1.x.
func (p *csproj) sdkVersion() string {
	for _, group := range p.PropertyGroups {
		tfm := group.TargetFramework
		if tfm == "" {
			tfm, _, _ = strings.Cut(group.TargetFrameworks, ";")
		}
		if m := targetFrameworkPattern.FindStringSubmatch(strings.TrimSpace(tfm)); m != nil {
			return m[1] + ".x"
		}
	}
	return defaultDotNetVersion
}

// NewDotNetCore returns the builder for SDK-style .NET projects.
func NewDotNetCore() *Variant {
	return &Variant{
		ecosystem:   domain.EcosystemDotNetCore,
		displayName: "DotNET Core Build",
		testReport:  "**/TestResults/*.trx",
		detect:      detectDotNetCore,
		assemble:    assembleDotNetCore,
	}
}

// sdkProject returns the first project file whose root element uses the
// .NET SDK, or nil. Files that fail to parse are skipped.
func sdkProject(ctx context.Context, client domain.RepoClient) (*csproj, error) {
	paths, err := client.FindFiles(ctx, projectPattern)
	if err != nil {
		return nil, err
	}
	for _, path := range paths {
		data, err := readOptional(ctx, client, path)
		if err != nil {
			return nil, err
		}
		var project csproj
		if xml.Unmarshal(data, &project) != nil {
			continue
		}
		if strings.HasPrefix(project.Sdk, netSdkPrefix) {
			return &project, nil
		}
	}
	return nil, nil
}

func detectDotNetCore(ctx context.Context, client domain.RepoClient) (bool, error) {
	project, err := sdkProject(ctx, client)
	return project != nil, err
}

func assembleDotNetCore(ctx context.Context, in buildInput) (recipe, error) {
	project, err := sdkProject(ctx, in.client)
	if err != nil {
		return recipe{}, err
	}
	version := defaultDotNetVersion
	if project != nil {
		version = project.sdkVersion()
	}

	return recipe{
		setup: []domain.Step{steps.SetupDotNet(version)},
		install: []domain.Step{
			steps.Run("Install Dependencies", "dotnet restore"),
			steps.Run("List Dependencies", "dotnet list package --include-transitive > dependencies.txt"),
			steps.CollectDependencies(),
			steps.Run("List Dependency Updates", "dotnet list package --outdated > dependencyUpdates.txt"),
			steps.CollectDependencyUpdates(),
		},
		build: []domain.Step{
			steps.Run("Build", "dotnet build --configuration Release --no-restore"),
		},
		test: []domain.Step{
			steps.Run("Test", `dotnet test --configuration Release --no-build --logger "trx"`),
			steps.JUnitReport("DotNET Tests", in.params.TestReportPath, "dotnet-trx"),
		},
		pkg: []domain.Step{
			steps.Run("Publish", "dotnet publish --configuration Release --no-build --output publish"),
			packageDir(in.name, "publish"),
		},
	}, nil
}
