package assetpipe_test

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/spf13/afero"

	"github.com/gophersatwork/assetpipe"
)

func exampleNow() time.Time {
	return time.Date(2020, 3, 1, 0, 0, 0, 0, time.UTC)
}

func Example() {
	ctx := context.Background()
	memFs := afero.NewMemMapFs()

	if err := afero.WriteFile(memFs, "/site/assets/scripts/app.js", []byte("function app() {\n  return 1;\n}\n"), 0o644); err != nil {
		log.Fatal(err)
	}

	p, err := assetpipe.Open(ctx, assetpipe.DefaultLayout("/site"),
		assetpipe.WithFs(memFs),
		assetpipe.WithNowFunc(exampleNow),
	)
	if err != nil {
		log.Fatal(err)
	}
	defer p.Close()

	if _, err := p.Discover(); err != nil {
		log.Fatal(err)
	}

	tag, err := p.HTML(ctx, "script.app", map[string]string{"defer": ""}, assetpipe.RenderID("0123456789abcdef"))
	if err != nil {
		log.Fatal(err)
	}
	fmt.Println(tag)

	if _, err := p.Commit(ctx); err != nil {
		log.Fatal(err)
	}
	fmt.Println(p.Manifest().Names())

	// Output:
	// <script asset-id="0123456789abcdef" asset-name="script.app" defer="" src="/assets/scripts/app.js?v=1583020800"></script>
	// [script.app]
}

func ExampleGenerateName() {
	fmt.Println(assetpipe.GenerateName(assetpipe.TypeScript, "assets/scripts/admin/Dashboard.js"))
	fmt.Println(assetpipe.GenerateName(assetpipe.TypeStyle, "main"))

	// Output:
	// script.admin.dashboard
	// style.main
}

func ExamplePipeline_Resolve() {
	p := assetpipe.OpenTemp("/site")
	defer p.Close()

	_, err := p.Resolve("script.missing")
	fmt.Println(errors.Is(err, assetpipe.ErrUndefinedReference))

	// Output:
	// true
}
