package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

// newDetectCmd creates the detect subcommand. It shares the repository
// flags of the root command but builds nothing and records no audit entry.
func newDetectCmd(deps *Dependencies, opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "detect [repository]",
		Short: "Print the ecosystem pipeline-builder would select",
		Long: `detect runs builder detection against a repository and prints the name of
the first matching ecosystem, for example "maven" or "nodejs".`,
		Args:         cobra.MaximumNArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDetect(cmd, args, deps, opts)
		},
	}
}

func runDetect(cmd *cobra.Command, args []string, deps *Dependencies, opts *options) error {
	s, err := openSession(cmd, args, deps, opts)
	if err != nil {
		return err
	}
	defer s.close()

	resolver, err := s.resolver(deps, opts, nil)
	if err != nil {
		return describeError(err, s.location, s.cfg.RequestTimeout)
	}

	builder, err := resolver.Resolve(s.ctx, s.client)
	if err != nil {
		s.log.Error(s.ctx, "failed to detect ecosystem", err, map[string]interface{}{
			"location": s.location,
		})
		return describeError(err, s.location, s.cfg.RequestTimeout)
	}

	writer := deps.OutputWriterFactory(stdout(deps))
	if err := writer.WriteEcosystem(builder.Ecosystem()); err != nil {
		s.log.Error(s.ctx, "failed to write output", err, nil)
		return fmt.Errorf("output error: %w", err)
	}

	s.log.Info(s.ctx, "ecosystem detection complete", map[string]interface{}{
		"location":  s.location,
		"ecosystem": builder.Ecosystem().String(),
	})
	return nil
}
