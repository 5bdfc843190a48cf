// Package format converts payload mappings between JSON, XML parameter
// documents and CBOR, selected by content type.
package format

import (
	"mime"
	"strings"

	"github.com/goliatone/go-rpcsession/core"
)

type Format string

const (
	FormatJSON Format = "json"
	FormatXML  Format = "xml"
	FormatCBOR Format = "cbor"
)

// Codec is the decode/encode pair registered for a format.
type Codec struct {
	ContentType string
	Decode      func(body []byte) (map[string]any, error)
	Encode      func(data any) ([]byte, error)
}

var codecs = map[Format]Codec{
	FormatJSON: {ContentType: "application/json", Decode: decodeJSON, Encode: encodeJSON},
	FormatXML:  {ContentType: "application/xml", Decode: decodeXML, Encode: encodeXML},
	FormatCBOR: {ContentType: "application/cbor", Decode: decodeCBOR, Encode: encodeCBOR},
}

// CodecFor returns the codec registered for f.
func CodecFor(f Format) (Codec, bool) {
	codec, ok := codecs[f]
	return codec, ok
}

// Parse maps a format name (json, xml, cbor) to a Format.
func Parse(name string) (Format, error) {
	f := Format(strings.ToLower(strings.TrimSpace(name)))
	if _, ok := codecs[f]; !ok {
		return "", core.UnsupportedFormatError(name)
	}
	return f, nil
}

// FromContentType resolves a Content-Type header to a Format. Parameters
// are ignored and structured suffixes (application/soap+xml) count as their
// base format.
func FromContentType(contentType string) (Format, error) {
	mediaType, _, err := mime.ParseMediaType(strings.TrimSpace(contentType))
	if err != nil {
		return "", core.UnsupportedFormatError(contentType)
	}
	subtype := mediaType
	if idx := strings.LastIndex(subtype, "/"); idx >= 0 {
		subtype = subtype[idx+1:]
	}
	if idx := strings.LastIndex(subtype, "+"); idx >= 0 {
		subtype = subtype[idx+1:]
	}
	f := Format(subtype)
	if _, ok := codecs[f]; !ok {
		return "", core.UnsupportedFormatError(contentType)
	}
	return f, nil
}
