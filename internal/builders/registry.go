package builders

import "github.com/MyCarrier-DevOps/pipeline-builder/internal/domain"

// Default returns every builder in priority order. More specific manifests
// come first and the generic fallback is always last, so resolution over this
// list never fails for a reachable repository.
func Default() []domain.PipelineBuilder {
	return []domain.PipelineBuilder{
		NewMaven(),
		NewGradle(),
		NewNodeJS(),
		NewPHP(),
		NewPython(),
		NewGo(),
		NewRuby(),
		NewDotNetCore(),
		NewGeneric(),
	}
}

// ByEcosystem returns the builder registered for eco in Default.
func ByEcosystem(eco domain.Ecosystem) (domain.PipelineBuilder, bool) {
	for _, b := range Default() {
		if b.Ecosystem() == eco {
			return b, true
		}
	}
	return nil, false
}
