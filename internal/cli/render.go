package cli

import (
	"github.com/spf13/cobra"

	"github.com/gophersatwork/assetpipe"
)

// RenderOptions holds flags for the render command.
type RenderOptions struct {
	*RootOptions
	Inline  bool
	Attrs   map[string]string
	AssetID string
	Before  []string
	After   []string
}

// RenderResult is a rendered tag.
type RenderResult struct {
	Name    string `json:"name" yaml:"name"`
	Type    string `json:"type" yaml:"type"`
	AssetID string `json:"assetId" yaml:"assetId"`
	HTML    string `json:"html" yaml:"html"`
}

func (r RenderResult) String() string {
	return r.HTML
}

// NewRenderCommand creates the render command.
func NewRenderCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RenderOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "render <name>",
		Short: "Publish an asset and print its HTML tag",
		Long: `Compile and publish the named asset, then print the tag that references it.

A name missing from the manifest triggers discovery of its type first.`,
		Example: `  assetpipe render script.app --attr defer=
  assetpipe render style.main --inline
  assetpipe render style.main --before vendor/reset.css`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRender(opts, args[0], cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.Inline, "inline", false, "embed style and script content in the tag")
	cmd.Flags().StringToStringVar(&opts.Attrs, "attr", nil, "extra tag attribute key=value (repeatable)")
	cmd.Flags().StringVar(&opts.AssetID, "id", "", "asset id (16 alphanumeric characters)")
	cmd.Flags().StringSliceVar(&opts.Before, "before", nil, "bundle files before the asset sources")
	cmd.Flags().StringSliceVar(&opts.After, "after", nil, "bundle files after the asset sources")

	return cmd
}

func runRender(opts *RenderOptions, name string, cmd *cobra.Command) error {
	s, err := openSession(opts.RootOptions, cmd)
	if err != nil {
		return err
	}
	defer s.close()

	var renderOpts []assetpipe.RenderOption
	if opts.Inline {
		renderOpts = append(renderOpts, assetpipe.RenderInline())
	}
	if opts.AssetID != "" {
		renderOpts = append(renderOpts, assetpipe.RenderID(opts.AssetID))
	}
	if len(opts.Before) > 0 {
		renderOpts = append(renderOpts, assetpipe.RenderBundle(true, opts.Before...))
	}
	if len(opts.After) > 0 {
		renderOpts = append(renderOpts, assetpipe.RenderBundle(false, opts.After...))
	}

	tag, renderErr := s.pipeline.HTML(cmd.Context(), name, opts.Attrs, renderOpts...)
	if _, err := s.commit(cmd); err != nil {
		return err
	}
	if renderErr != nil {
		return failAsset(s.formatter, ErrCodeRender, renderErr)
	}

	return s.formatter.Success(RenderResult{
		Name:    tag.Name(),
		Type:    tag.Type().String(),
		AssetID: tag.AssetID(),
		HTML:    tag.String(),
	})
}
