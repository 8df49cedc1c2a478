// Package compress estimates gzip sizes and negotiates gzip responses.
package compress

import (
	"net/http"

	"github.com/klauspost/compress/gzhttp"
	"github.com/klauspost/compress/gzip"

	"github.com/vango-dev/devgate/internal/errors"
)

type countingWriter struct {
	n int
}

func (c *countingWriter) Write(p []byte) (int, error) {
	c.n += len(p)
	return len(p), nil
}

// Size returns the length of buf after gzip compression at the highest
// level. Failures are reported as E230.
func Size(buf []byte) (int, error) {
	var cw countingWriter
	zw, err := gzip.NewWriterLevel(&cw, gzip.BestCompression)
	if err != nil {
		return 0, errors.New("E230").Wrap(err)
	}
	if _, err := zw.Write(buf); err != nil {
		return 0, errors.New("E230").Wrap(err)
	}
	if err := zw.Close(); err != nil {
		return 0, errors.New("E230").Wrap(err)
	}
	return cw.n, nil
}

// SizeOrRaw returns Size(buf), or len(buf) when compression fails.
func SizeOrRaw(buf []byte) int {
	n, err := Size(buf)
	if err != nil {
		return len(buf)
	}
	return n
}

// Middleware wraps handlers so responses are gzipped when the request's
// Accept-Encoding allows it. Every response, however small, is eligible.
type Middleware func(http.Handler) http.HandlerFunc

// NewMiddleware builds the negotiating wrapper.
func NewMiddleware() (Middleware, error) {
	wrap, err := gzhttp.NewWrapper(gzhttp.MinSize(0), gzhttp.CompressionLevel(gzip.DefaultCompression))
	if err != nil {
		return nil, errors.New("E230").Wrap(err)
	}
	return wrap, nil
}
