package domain

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParams_SetKeepsOrderAndUniqueness(t *testing.T) {
	p := NewParams("b", "1", "a", "2")
	p = p.Set("c", "3")
	p = p.Set("b", "replaced")

	assert.Equal(t, []string{"b", "a", "c"}, p.Keys())
	v, ok := p.Get("b")
	require.True(t, ok)
	assert.Equal(t, "replaced", v)
	assert.Equal(t, 3, p.Len())
}

func TestParams_SetDoesNotModifyReceiver(t *testing.T) {
	original := NewParams("key", "value")
	updated := original.Set("key", "other")

	v, _ := original.Get("key")
	assert.Equal(t, "value", v)
	v, _ = updated.Get("key")
	assert.Equal(t, "other", v)
}

func TestNewParams_IgnoresDanglingKey(t *testing.T) {
	p := NewParams("a", "1", "b")
	assert.Equal(t, []string{"a"}, p.Keys())
}

func TestStep_DisplayName(t *testing.T) {
	tests := []struct {
		name string
		step Step
		want string
	}{
		{name: "explicit name", step: Step{Name: "Build", Uses: "x/y@v1"}, want: "Build"},
		{name: "derived from uses", step: Step{Uses: "actions/checkout@v4"}, want: "actions/checkout"},
		{name: "derived from run", step: Step{Run: "make build\nmake test"}, want: "make build"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.step.DisplayName())
		})
	}
}

func TestEcosystem_StringAndParse(t *testing.T) {
	for eco := EcosystemMaven; eco <= EcosystemGeneric; eco++ {
		parsed, err := ParseEcosystem(eco.String())
		require.NoError(t, err)
		assert.Equal(t, eco, parsed)
	}

	parsed, err := ParseEcosystem(" Maven ")
	require.NoError(t, err)
	assert.Equal(t, EcosystemMaven, parsed)

	_, err = ParseEcosystem("cobol")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrPrecondition)
	assert.Equal(t, "ecosystem(42)", Ecosystem(42).String())
}

func TestPipeline_Validate(t *testing.T) {
	checkout := Step{Uses: "actions/checkout@v4"}

	tests := []struct {
		name    string
		steps   []Step
		wantErr bool
	}{
		{
			name:  "valid pipeline",
			steps: []Step{checkout, {Run: "make", ID: "build"}, {Uses: "x/y@v1", ID: "other"}},
		},
		{
			name:    "empty pipeline",
			steps:   nil,
			wantErr: true,
		},
		{
			name:    "checkout not first",
			steps:   []Step{{Run: "make"}, checkout},
			wantErr: true,
		},
		{
			name:    "duplicate id",
			steps:   []Step{checkout, {Run: "a", ID: "dup"}, {Run: "b", ID: "dup"}},
			wantErr: true,
		},
		{
			name:    "both uses and run",
			steps:   []Step{checkout, {Run: "a", Uses: "x/y@v1"}},
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := &Pipeline{Jobs: []Job{{ID: "build", Steps: tt.steps}}}
			err := p.Validate()
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, ErrInvalidPipeline)
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestBuildParameters_WithDefaults(t *testing.T) {
	got := BuildParameters{OctopusProject: "mine"}.WithDefaults(BuildParameters{
		TestReportPath: "report.xml",
		OctopusProject: "theirs",
		ReleaseChannel: "Development",
		PackageGlob:    "*.zip",
	})

	assert.Equal(t, BuildParameters{
		TestReportPath: "report.xml",
		OctopusProject: "mine",
		ReleaseChannel: "Development",
		PackageGlob:    "*.zip",
	}, got)
}

func TestBuildParameters_WithDefaultsBlankValues(t *testing.T) {
	got := BuildParameters{
		TestReportPath: " ",
		OctopusProject: "\t",
		ReleaseChannel: "  Staging ",
		PackageGlob:    "\n",
	}.WithDefaults(BuildParameters{
		TestReportPath: "report.xml",
		OctopusProject: "theirs",
		ReleaseChannel: "Development",
		PackageGlob:    "*.zip",
	})

	assert.Equal(t, BuildParameters{
		TestReportPath: "report.xml",
		OctopusProject: "theirs",
		ReleaseChannel: "Staging",
		PackageGlob:    "*.zip",
	}, got)
}

func TestRepoAccessError(t *testing.T) {
	cause := errors.New("connection reset")
	err := NewRepoAccessError("TestFile", "pom.xml", cause)

	assert.ErrorIs(t, err, ErrRepoAccess)
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "TestFile pom.xml")

	var target *RepoAccessError
	require.ErrorAs(t, err, &target)
	assert.Equal(t, "pom.xml", target.Path)
}

func TestPreconditionError(t *testing.T) {
	err := &PreconditionError{Op: "JUnitReport", Reason: "path is empty"}
	assert.ErrorIs(t, err, ErrPrecondition)
	assert.Equal(t, "JUnitReport: precondition violated: path is empty", err.Error())
}
