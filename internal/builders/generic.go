package builders

import (
	"context"

	"github.com/MyCarrier-DevOps/pipeline-builder/internal/domain"
)

// NewGeneric returns the fallback builder. It accepts every repository and
// only versions, packages and publishes the checkout.
func NewGeneric() *Variant {
	return &Variant{
		ecosystem:   domain.EcosystemGeneric,
		displayName: "Generic Build",
		detect: func(context.Context, domain.RepoClient) (bool, error) {
			return true, nil
		},
		assemble: func(_ context.Context, in buildInput) (recipe, error) {
			return recipe{pkg: []domain.Step{packageDir(in.name, ".")}}, nil
		},
	}
}
