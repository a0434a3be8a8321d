package steps

import "github.com/MyCarrier-DevOps/pipeline-builder/internal/domain"

// InstallJava installs JDK 17.
func InstallJava() domain.Step {
	return domain.Step{
		Name: "Set up JDK 17",
		Uses: "actions/setup-java@v2",
		With: domain.NewParams(
			"java-version", "17",
			"distribution", "adopt",
		),
	}
}

// SetupNode installs the given Node.js version.
func SetupNode(version string) domain.Step {
	mustNotBeEmpty("SetupNode", "version", version)
	return domain.Step{
		Name: "Set up Node.js",
		Uses: "actions/setup-node@v2",
		With: domain.NewParams("node-version", version),
	}
}

// SetupPython installs the given Python version.
func SetupPython(version string) domain.Step {
	mustNotBeEmpty("SetupPython", "version", version)
	return domain.Step{
		Name: "Set up Python",
		Uses: "actions/setup-python@v2",
		With: domain.NewParams("python-version", version),
	}
}

// SetupGo installs the given Go version.
func SetupGo(version string) domain.Step {
	mustNotBeEmpty("SetupGo", "version", version)
	return domain.Step{
		Name: "Set up Go",
		Uses: "actions/setup-go@v2",
		With: domain.NewParams("go-version", version),
	}
}

// SetupRuby installs the given Ruby version.
func SetupRuby(version string) domain.Step {
	mustNotBeEmpty("SetupRuby", "version", version)
	return domain.Step{
		Name: "Set up Ruby",
		Uses: "ruby/setup-ruby@v1",
		With: domain.NewParams("ruby-version", version),
	}
}

// SetupPHP installs the given PHP version.
func SetupPHP(version string) domain.Step {
	mustNotBeEmpty("SetupPHP", "version", version)
	return domain.Step{
		Name: "Set up PHP",
		Uses: "shivammathur/setup-php@v2",
		With: domain.NewParams("php-version", version),
	}
}

// SetupDotNet installs the given .NET SDK version.
func SetupDotNet(version string) domain.Step {
	mustNotBeEmpty("SetupDotNet", "version", version)
	return domain.Step{
		Name: "Set up .NET Core",
		Uses: "actions/setup-dotnet@v1",
		With: domain.NewParams("dotnet-version", version),
	}
}
