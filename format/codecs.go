package format

import (
	"bytes"
	"encoding/json"
	"encoding/xml"
	"fmt"
	"net/http"
	"reflect"
	"sort"
	"strings"

	"github.com/fxamacker/cbor/v2"
	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-rpcsession/core"
)

var (
	cborEncMode cbor.EncMode
	cborDecMode cbor.DecMode
)

func init() {
	var err error
	encOpts := cbor.EncOptions{
		Sort:          cbor.SortCanonical,
		IndefLength:   cbor.IndefLengthForbidden,
		NilContainers: cbor.NilContainerAsNull,
		Time:          cbor.TimeRFC3339Nano,
	}
	cborEncMode, err = encOpts.EncMode()
	if err != nil {
		panic(fmt.Sprintf("failed to create CBOR encoder mode: %v", err))
	}

	decOpts := cbor.DecOptions{
		DupMapKey:      cbor.DupMapKeyQuiet,
		IndefLength:    cbor.IndefLengthAllowed,
		DefaultMapType: reflect.TypeOf(map[string]any(nil)),
	}
	cborDecMode, err = decOpts.DecMode()
	if err != nil {
		panic(fmt.Sprintf("failed to create CBOR decoder mode: %v", err))
	}
}

func decodeJSON(body []byte) (map[string]any, error) {
	values := map[string]any{}
	if err := json.Unmarshal(body, &values); err != nil {
		return nil, decodeError(FormatJSON, err)
	}
	return values, nil
}

func encodeJSON(data any) ([]byte, error) {
	return json.Marshal(data)
}

func decodeCBOR(body []byte) (map[string]any, error) {
	values := map[string]any{}
	if err := cborDecMode.Unmarshal(body, &values); err != nil {
		return nil, decodeError(FormatCBOR, err)
	}
	return values, nil
}

func encodeCBOR(data any) ([]byte, error) {
	return cborEncMode.Marshal(data)
}

type xmlParameter struct {
	Name  string `xml:"name,attr"`
	Value string `xml:",chardata"`
}

type xmlParameters struct {
	XMLName    xml.Name
	Parameters []xmlParameter `xml:"parameter"`
}

// decodeXML reads the parameter children of the root element; other
// children are ignored.
func decodeXML(body []byte) (map[string]any, error) {
	var doc xmlParameters
	if err := xml.Unmarshal(body, &doc); err != nil {
		return nil, decodeError(FormatXML, err)
	}
	values := make(map[string]any, len(doc.Parameters))
	for _, parameter := range doc.Parameters {
		values[parameter.Name] = parameter.Value
	}
	return values, nil
}

// encodeXML writes a mapping as a <response> of parameter elements. Any
// other value is written as its text form.
func encodeXML(data any) ([]byte, error) {
	values, ok := toStringMap(data)
	if !ok {
		return []byte(fmt.Sprint(data)), nil
	}
	keys := make([]string, 0, len(values))
	for key := range values {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	doc := xmlParameters{XMLName: xml.Name{Local: "response"}}
	for _, key := range keys {
		doc.Parameters = append(doc.Parameters, xmlParameter{Name: key, Value: values[key]})
	}
	var buf bytes.Buffer
	buf.WriteString(strings.TrimSpace(xml.Header))
	if err := xml.NewEncoder(&buf).Encode(doc); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func toStringMap(data any) (map[string]string, bool) {
	switch typed := data.(type) {
	case map[string]string:
		return typed, true
	case map[string]any:
		out := make(map[string]string, len(typed))
		for key, value := range typed {
			if value == nil {
				out[key] = ""
				continue
			}
			out[key] = fmt.Sprint(value)
		}
		return out, true
	default:
		return nil, false
	}
}

func decodeError(f Format, source error) error {
	return goerrors.Wrap(source, goerrors.CategoryBadInput, fmt.Sprintf("format: decode %s payload", f)).
		WithCode(http.StatusBadRequest).
		WithTextCode(core.ErrorTextBadInput).
		WithMetadata(map[string]any{"format": string(f)})
}
