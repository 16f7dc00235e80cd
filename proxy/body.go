package proxy

import (
	"bytes"
	"compress/flate"
	"compress/gzip"
	"fmt"
	"io"
	"strings"

	"github.com/andybalholm/brotli"
	"github.com/klauspost/compress/zstd"
)

// AnalyzedBody holds a decoded body for display.
type AnalyzedBody struct {
	Text     string
	RawBytes []byte // set when the decoded data is binary
	IsBinary bool
}

// decodeBody undoes Content-Encoding on a shadow copy. The proxied stream
// itself is never modified. Undecodable input is returned as is.
func decodeBody(data []byte, encoding string) []byte {
	encoding = strings.ToLower(encoding)
	var r io.Reader
	switch {
	case strings.Contains(encoding, "gzip"):
		gr, err := gzip.NewReader(bytes.NewReader(data))
		if err != nil {
			return data
		}
		defer gr.Close()
		r = gr
	case strings.Contains(encoding, "br"):
		r = brotli.NewReader(bytes.NewReader(data))
	case strings.Contains(encoding, "zstd"):
		zr, err := zstd.NewReader(bytes.NewReader(data))
		if err != nil {
			return data
		}
		defer zr.Close()
		r = zr
	case strings.Contains(encoding, "deflate"):
		fr := flate.NewReader(bytes.NewReader(data))
		defer fr.Close()
		r = fr
	default:
		return data
	}

	decoded, err := io.ReadAll(r)
	if err != nil {
		return data
	}
	return decoded
}

// AnalyzeBody decodes data and classifies it as text or binary.
func AnalyzeBody(data []byte, encoding string) AnalyzedBody {
	if len(data) == 0 {
		return AnalyzedBody{}
	}

	raw := decodeBody(data, encoding)

	limit := len(raw)
	if limit > 512 {
		limit = 512
	}
	if bytes.IndexByte(raw[:limit], 0) >= 0 {
		return AnalyzedBody{
			Text:     fmt.Sprintf("[Binary Data: %d bytes]", len(raw)),
			RawBytes: append([]byte(nil), raw...),
			IsBinary: true,
		}
	}
	return AnalyzedBody{Text: string(raw)}
}
