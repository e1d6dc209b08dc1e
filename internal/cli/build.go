package cli

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/gophersatwork/assetpipe"
)

// ArtifactInfo describes one compiled artifact.
type ArtifactInfo struct {
	Name   string `json:"name" yaml:"name"`
	Path   string `json:"path" yaml:"path"`
	Bytes  int    `json:"bytes" yaml:"bytes"`
	Hash   string `json:"hash" yaml:"hash"`
	Reused bool   `json:"reused" yaml:"reused"`
}

// BuildResult lists the artifacts of a build.
type BuildResult struct {
	Artifacts []ArtifactInfo `json:"artifacts" yaml:"artifacts"`
	Errors    []string       `json:"errors,omitempty" yaml:"errors,omitempty"`
}

func (r BuildResult) String() string {
	var b strings.Builder
	compiled := 0
	for _, a := range r.Artifacts {
		if !a.Reused {
			compiled++
		}
	}
	fmt.Fprintf(&b, "✓ %d artifact(s), %d compiled, %d fresh", len(r.Artifacts), compiled, len(r.Artifacts)-compiled)
	for _, a := range r.Artifacts {
		state := "compiled"
		if a.Reused {
			state = "fresh"
		}
		fmt.Fprintf(&b, "\n  %-30s %-8s %7d B  %s", a.Name, state, a.Bytes, a.Path)
	}
	for _, e := range r.Errors {
		fmt.Fprintf(&b, "\n  error: %s", e)
	}
	return b.String()
}

// NewBuildCommand creates the build command.
func NewBuildCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "build [names...]",
		Short: "Compile assets into the build directory",
		Long: `Compile the named assets, or every asset in the manifest, into the build
directory. Artifacts newer than all of their sources are reused.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBuild(rootOpts, args, cmd)
		},
	}
}

func runBuild(opts *RootOptions, names []string, cmd *cobra.Command) error {
	s, err := openSession(opts, cmd)
	if err != nil {
		return err
	}
	defer s.close()

	artifacts, buildErr := s.pipeline.Build(cmd.Context(), names...)
	if _, err := s.commit(cmd); err != nil {
		return err
	}

	result := BuildResult{Artifacts: make([]ArtifactInfo, 0, len(artifacts))}
	for _, a := range artifacts {
		s.formatter.VerboseLog("%s -> %s", a.Name, a.Path)
		result.Artifacts = append(result.Artifacts, ArtifactInfo{
			Name:   a.Name,
			Path:   a.Path,
			Bytes:  len(a.Content),
			Hash:   a.Hash,
			Reused: a.Reused,
		})
	}

	if buildErr != nil && len(result.Artifacts) == 0 {
		return failAsset(s.formatter, ErrCodeBuild, buildErr)
	}

	result.Errors = errorMessages(buildErr)
	if err := s.formatter.Success(result); err != nil {
		return err
	}
	if buildErr != nil {
		exitErr := WrapExitError(ExitFailure, ErrCodeBuild, buildErr)
		exitErr.Reported = true
		return exitErr
	}
	return nil
}

// failAsset reports an asset level error, picking the code from its kind.
func failAsset(f *OutputFormatter, fallback string, err error) error {
	var undefined *assetpipe.UndefinedReferenceError
	switch {
	case errors.As(err, &undefined):
		var details any
		if len(undefined.Suggestions) > 0 {
			details = map[string][]string{"suggestions": undefined.Suggestions}
		}
		return f.Fail(ExitFailure, ErrCodeUndefined, err, details)
	case errors.Is(err, assetpipe.ErrEmptyAsset), errors.Is(err, assetpipe.ErrInvalidType):
		return f.Fail(ExitFailure, fallback, err, nil)
	default:
		return f.Fail(ExitCommandError, fallback, err, nil)
	}
}
