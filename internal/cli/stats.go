package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/gophersatwork/assetpipe"
)

// StatsResult summarizes the manifest and the build directory.
type StatsResult struct {
	References     map[string]int `json:"references" yaml:"references"`
	Total          int            `json:"total" yaml:"total"`
	Artifacts      int            `json:"artifacts" yaml:"artifacts"`
	TotalSize      int64          `json:"totalSize" yaml:"totalSize"`
	OldestArtifact string         `json:"oldestArtifact,omitempty" yaml:"oldestArtifact,omitempty"`
	NewestArtifact string         `json:"newestArtifact,omitempty" yaml:"newestArtifact,omitempty"`
}

func (r StatsResult) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "References: %d\n", r.Total)
	for _, t := range assetpipe.Types() {
		if n := r.References[t.String()]; n > 0 {
			fmt.Fprintf(&b, "  %-10s %d\n", t, n)
		}
	}
	fmt.Fprintf(&b, "Artifacts:  %d (%d bytes)", r.Artifacts, r.TotalSize)
	if r.Artifacts > 0 {
		fmt.Fprintf(&b, "\nOldest:     %s\nNewest:     %s", r.OldestArtifact, r.NewestArtifact)
	}
	return b.String()
}

// NewStatsCommand creates the stats command.
func NewStatsCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show manifest and build directory statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStats(rootOpts, cmd)
		},
	}
}

func runStats(opts *RootOptions, cmd *cobra.Command) error {
	s, err := openSession(opts, cmd)
	if err != nil {
		return err
	}
	defer s.close()

	stats, err := s.pipeline.Stats()
	if err != nil {
		return s.formatter.Fail(ExitCommandError, ErrCodeBuild, err, nil)
	}

	result := StatsResult{
		References: make(map[string]int, len(stats.References)),
		Total:      stats.ReferenceCount(),
		Artifacts:  stats.Artifacts,
		TotalSize:  stats.TotalSize,
	}
	for t, n := range stats.References {
		result.References[t.String()] = n
	}
	if stats.Artifacts > 0 {
		result.OldestArtifact = stats.OldestArtifact.Round(time.Second).String()
		result.NewestArtifact = stats.NewestArtifact.Round(time.Second).String()
	}
	return s.formatter.Success(result)
}
