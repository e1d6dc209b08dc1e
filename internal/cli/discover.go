package cli

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/gophersatwork/assetpipe"
)

// DiscoverOptions holds flags for the discover command.
type DiscoverOptions struct {
	*RootOptions
	Prepare bool // create missing asset directories first
}

// DiscoverResult is the outcome of a discovery run.
type DiscoverResult struct {
	Types      []string `json:"types" yaml:"types"`
	Found      int      `json:"found" yaml:"found"`
	References int      `json:"references" yaml:"references"`
	Saved      bool     `json:"saved" yaml:"saved"` // written by this run
	Revision   string   `json:"revision,omitempty" yaml:"revision,omitempty"`
	Skipped    []string `json:"skipped,omitempty" yaml:"skipped,omitempty"`
}

func (r DiscoverResult) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "✓ Found %d asset(s) in %s, manifest holds %d", r.Found, strings.Join(r.Types, ", "), r.References)
	if r.Saved {
		fmt.Fprintf(&b, " (saved revision %s)", r.Revision)
	}
	for _, s := range r.Skipped {
		fmt.Fprintf(&b, "\n  skipped: %s", s)
	}
	return b.String()
}

// NewDiscoverCommand creates the discover command.
func NewDiscoverCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &DiscoverOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "discover [types...]",
		Short: "Scan asset directories and update the manifest",
		Long: `Scan the asset directories and register every asset found in the manifest.

Without arguments all types are scanned. Types can be given by name (script),
directory (scripts) or extension (.js). Files that cannot be registered are
reported and skipped.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDiscover(opts, args, cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.Prepare, "prepare", true, "create missing asset directories")

	return cmd
}

func runDiscover(opts *DiscoverOptions, args []string, cmd *cobra.Command) error {
	s, err := openSession(opts.RootOptions, cmd)
	if err != nil {
		return err
	}
	defer s.close()

	types, err := parseTypes(args)
	if err != nil {
		return s.formatter.Fail(ExitCommandError, ErrCodeDiscovery, err, nil)
	}

	if opts.Prepare {
		if err := s.pipeline.PrepareDirectories(); err != nil {
			return s.formatter.Fail(ExitCommandError, ErrCodeDiscovery, err, nil)
		}
	}

	found, discoverErr := s.pipeline.Discover(types...)
	saved, err := s.commit(cmd)
	if err != nil {
		return err
	}

	result := DiscoverResult{
		Types:      typeNames(types),
		Found:      found,
		References: s.pipeline.Manifest().Len(),
		Saved:      saved,
		Revision:   s.pipeline.Manifest().Revision(),
		Skipped:    errorMessages(discoverErr),
	}
	if err := s.formatter.Success(result); err != nil {
		return err
	}

	if discoverErr != nil {
		exitErr := WrapExitError(ExitFailure, fmt.Sprintf("%d file(s) skipped", len(result.Skipped)), discoverErr)
		exitErr.Reported = true
		return exitErr
	}
	return nil
}

func parseTypes(args []string) ([]assetpipe.Type, error) {
	types := make([]assetpipe.Type, 0, len(args))
	for _, arg := range args {
		t, err := assetpipe.ParseType(arg)
		if err != nil {
			return nil, err
		}
		types = append(types, t)
	}
	return types, nil
}

func typeNames(types []assetpipe.Type) []string {
	if len(types) == 0 {
		types = assetpipe.Types()
	}
	names := make([]string, len(types))
	for i, t := range types {
		names[i] = t.String()
	}
	return names
}

// errorMessages flattens joined and validation errors into messages.
func errorMessages(err error) []string {
	if err == nil {
		return nil
	}
	var ve *assetpipe.ValidationError
	if errors.As(err, &ve) {
		msgs := make([]string, len(ve.Errors))
		for i, e := range ve.Errors {
			msgs[i] = e.Error()
		}
		return msgs
	}
	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		var msgs []string
		for _, e := range joined.Unwrap() {
			msgs = append(msgs, errorMessages(e)...)
		}
		return msgs
	}
	return []string{err.Error()}
}
