package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// PruneResult reports how many stale artifacts were removed.
type PruneResult struct {
	Removed int `json:"removed" yaml:"removed"`
}

func (r PruneResult) String() string {
	if r.Removed == 0 {
		return "Nothing to prune"
	}
	return fmt.Sprintf("✓ Removed %d stale artifact(s)", r.Removed)
}

// NewPruneCommand creates the prune command.
func NewPruneCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "prune",
		Short: "Remove build artifacts no manifest entry produces",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(rootOpts, cmd)
			if err != nil {
				return err
			}
			defer s.close()

			removed, err := s.pipeline.Prune()
			if err != nil {
				return s.formatter.Fail(ExitCommandError, ErrCodeBuild, err, nil)
			}
			return s.formatter.Success(PruneResult{Removed: removed})
		},
	}
}
