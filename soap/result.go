package soap

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"strings"

	"github.com/goliatone/go-rpcsession/core"
)

// Result is a decoded SOAP response body element.
type Result struct {
	// Operation is the local name of the body element, e.g. queryResponse.
	Operation string
	// Raw is the inner XML of the body element.
	Raw []byte
	// Fields holds the leaf values of the first result element, or of the
	// body element when it has no result child.
	Fields map[string]string
	// Records holds the leaf values of each records element under the
	// result.
	Records []map[string]string
}

// SessionToken returns the session field of a login response.
func (r *Result) SessionToken() string {
	if r == nil {
		return ""
	}
	for _, key := range []string{"Session", "session"} {
		if value := strings.TrimSpace(r.Fields[key]); value != "" {
			return value
		}
	}
	return ""
}

// Field returns a first-level result field.
func (r *Result) Field(name string) (string, bool) {
	if r == nil {
		return "", false
	}
	value, ok := r.Fields[name]
	return value, ok
}

// Decode unmarshals the body element into v.
func (r *Result) Decode(v any) error {
	if r == nil {
		return fmt.Errorf("soap: result is nil")
	}
	local := r.Operation
	if local == "" {
		local = "result"
	}
	var buf bytes.Buffer
	buf.WriteString("<" + local + ">")
	buf.Write(r.Raw)
	buf.WriteString("</" + local + ">")
	return xml.Unmarshal(buf.Bytes(), v)
}

type xmlNode struct {
	XMLName xml.Name
	Inner   []byte    `xml:",innerxml"`
	Text    string    `xml:",chardata"`
	Nodes   []xmlNode `xml:",any"`
}

func (n xmlNode) leaves() map[string]string {
	fields := map[string]string{}
	for _, child := range n.Nodes {
		if len(child.Nodes) > 0 {
			continue
		}
		if _, exists := fields[child.XMLName.Local]; exists {
			continue
		}
		fields[child.XMLName.Local] = strings.TrimSpace(child.Text)
	}
	return fields
}

func (n xmlNode) child(local string) (xmlNode, bool) {
	for _, child := range n.Nodes {
		if child.XMLName.Local == local {
			return child, true
		}
	}
	return xmlNode{}, false
}

type envelopeFault struct {
	Code   string `xml:"faultcode"`
	String string `xml:"faultstring"`
	Detail struct {
		Inner string `xml:",innerxml"`
	} `xml:"detail"`
}

type responseBody struct {
	Fault    *envelopeFault `xml:"Fault"`
	Elements []xmlNode      `xml:",any"`
}

type responseEnvelope struct {
	XMLName xml.Name     `xml:"Envelope"`
	Body    responseBody `xml:"Body"`
}

type decoded struct {
	result *Result
	fault  *core.Fault
}

// decodeEnvelope returns ok=false for anything that is not a SOAP envelope
// carrying either a fault or a body element.
func decodeEnvelope(body []byte) (decoded, bool) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || trimmed[0] != '<' {
		return decoded{}, false
	}
	var envelope responseEnvelope
	if err := xml.Unmarshal(trimmed, &envelope); err != nil {
		return decoded{}, false
	}
	if envelope.XMLName.Space != "" && envelope.XMLName.Space != EnvelopeNamespace {
		return decoded{}, false
	}
	if fault := envelope.Body.Fault; fault != nil {
		return decoded{fault: &core.Fault{
			Code:    strings.TrimSpace(fault.Code),
			Message: strings.TrimSpace(fault.String),
			Detail:  strings.TrimSpace(fault.Detail.Inner),
		}}, true
	}
	if len(envelope.Body.Elements) == 0 {
		return decoded{}, false
	}
	element := envelope.Body.Elements[0]
	scope := element
	if result, ok := element.child("result"); ok {
		scope = result
	}
	out := &Result{
		Operation: element.XMLName.Local,
		Raw:       bytes.TrimSpace(element.Inner),
		Fields:    scope.leaves(),
	}
	for _, child := range scope.Nodes {
		if child.XMLName.Local == "records" {
			out.Records = append(out.Records, child.leaves())
		}
	}
	return decoded{result: out}, true
}
