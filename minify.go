package assetpipe

import (
	"fmt"

	"github.com/tdewolff/minify/v2"
	"github.com/tdewolff/minify/v2/css"
	"github.com/tdewolff/minify/v2/js"
)

// Minifier shrinks source text of a given media type.
type Minifier interface {
	Minify(mediaType string, src []byte) ([]byte, error)
}

// MinifierFunc adapts a function to the Minifier interface.
type MinifierFunc func(mediaType string, src []byte) ([]byte, error)

// Minify implements Minifier.
func (f MinifierFunc) Minify(mediaType string, src []byte) ([]byte, error) {
	return f(mediaType, src)
}

// NewMinifier returns the default CSS and JavaScript minifier.
func NewMinifier() Minifier {
	m := minify.New()
	m.AddFunc(TypeStyle.MediaType(), css.Minify)
	m.AddFunc(TypeScript.MediaType(), js.Minify)
	return &tdewolffMinifier{m: m}
}

type tdewolffMinifier struct {
	m *minify.M
}

func (t *tdewolffMinifier) Minify(mediaType string, src []byte) ([]byte, error) {
	out, err := t.m.Bytes(mediaType, src)
	if err != nil {
		return nil, fmt.Errorf("minify %s: %w", mediaType, err)
	}
	return out, nil
}

// PassthroughMinifier returns sources unchanged.
var PassthroughMinifier = MinifierFunc(func(_ string, src []byte) ([]byte, error) {
	return src, nil
})
