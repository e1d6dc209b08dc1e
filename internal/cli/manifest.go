package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/gophersatwork/assetpipe"
)

// ManifestOptions holds flags for the manifest command.
type ManifestOptions struct {
	*RootOptions
	Types []string
}

// ManifestResult lists manifest entries.
type ManifestResult struct {
	Revision   string                `json:"revision,omitempty" yaml:"revision,omitempty"`
	References []assetpipe.Reference `json:"references" yaml:"references"`
}

func (r ManifestResult) String() string {
	if len(r.References) == 0 {
		return "No assets registered"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%d asset(s)", len(r.References))
	if r.Revision != "" {
		fmt.Fprintf(&b, " at revision %s", r.Revision)
	}
	for _, ref := range r.References {
		fmt.Fprintf(&b, "\n  %-30s %s", ref.Name, ref.PublicURL)
		for _, src := range ref.SourcePaths() {
			fmt.Fprintf(&b, "\n      %s", src)
		}
	}
	return b.String()
}

// NewManifestCommand creates the manifest command.
func NewManifestCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ManifestOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "manifest",
		Short: "List the registered assets",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runManifest(opts, cmd)
		},
	}

	cmd.Flags().StringSliceVarP(&opts.Types, "type", "t", nil, "only list these types")

	return cmd
}

func runManifest(opts *ManifestOptions, cmd *cobra.Command) error {
	s, err := openSession(opts.RootOptions, cmd)
	if err != nil {
		return err
	}
	defer s.close()

	types, err := parseTypes(opts.Types)
	if err != nil {
		return s.formatter.Fail(ExitCommandError, ErrCodeManifest, err, nil)
	}

	result := ManifestResult{
		Revision:   s.pipeline.Manifest().Revision(),
		References: []assetpipe.Reference{},
	}
	for _, ref := range s.pipeline.Manifest().References() {
		if len(types) > 0 && !containsType(types, ref.Type) {
			continue
		}
		result.References = append(result.References, ref)
	}
	return s.formatter.Success(result)
}

func containsType(types []assetpipe.Type, t assetpipe.Type) bool {
	for _, candidate := range types {
		if candidate == t {
			return true
		}
	}
	return false
}
