package soap

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"sort"
	"strings"

	"github.com/goliatone/go-rpcsession/core"
)

const (
	EnvelopeNamespace = "http://schemas.xmlsoap.org/soap/envelope/"

	envelopePrefix = "soapenv"
	servicePrefix  = "ns1"
)

// EncodeEnvelope renders inv as a SOAP request envelope. Operation elements
// and arguments are qualified with namespace.
func EncodeEnvelope(namespace string, inv core.Invocation) ([]byte, error) {
	operation := strings.TrimSpace(inv.Operation)
	if operation == "" {
		return nil, fmt.Errorf("soap: operation is required")
	}

	var buf bytes.Buffer
	buf.WriteString(xml.Header)
	enc := xml.NewEncoder(&buf)

	envelope := xml.StartElement{
		Name: envelopeName("Envelope"),
		Attr: []xml.Attr{
			{Name: xml.Name{Local: "xmlns:" + envelopePrefix}, Value: EnvelopeNamespace},
			{Name: xml.Name{Local: "xmlns:" + servicePrefix}, Value: strings.TrimSpace(namespace)},
		},
	}
	if err := enc.EncodeToken(envelope); err != nil {
		return nil, err
	}
	if err := encodeHeader(enc, inv.Decoration); err != nil {
		return nil, err
	}

	body := xml.StartElement{Name: envelopeName("Body")}
	if err := enc.EncodeToken(body); err != nil {
		return nil, err
	}
	call := xml.StartElement{Name: serviceName(operation)}
	if err := enc.EncodeToken(call); err != nil {
		return nil, err
	}
	for _, arg := range inv.Args {
		name := strings.TrimSpace(arg.Name)
		if name == "" {
			return nil, fmt.Errorf("soap: argument name is required for %s", operation)
		}
		if err := encodeValue(enc, serviceName(name), arg.Value); err != nil {
			return nil, fmt.Errorf("soap: encode argument %s: %w", name, err)
		}
	}
	if err := enc.EncodeToken(call.End()); err != nil {
		return nil, err
	}
	if err := enc.EncodeToken(body.End()); err != nil {
		return nil, err
	}
	if err := enc.EncodeToken(envelope.End()); err != nil {
		return nil, err
	}
	if err := enc.Flush(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func encodeHeader(enc *xml.Encoder, decoration core.CallDecoration) error {
	if decoration.IsEmpty() {
		return nil
	}
	header := xml.StartElement{Name: envelopeName("Header")}
	if err := enc.EncodeToken(header); err != nil {
		return err
	}
	if token := strings.TrimSpace(decoration.SessionToken); token != "" {
		session := xml.StartElement{Name: serviceName("SessionHeader")}
		if err := enc.EncodeToken(session); err != nil {
			return err
		}
		if err := enc.EncodeElement(token, xml.StartElement{Name: serviceName("session")}); err != nil {
			return err
		}
		if err := enc.EncodeToken(session.End()); err != nil {
			return err
		}
	}
	if len(decoration.Options) > 0 {
		options := xml.StartElement{Name: serviceName("CallOptions")}
		if err := enc.EncodeToken(options); err != nil {
			return err
		}
		for _, option := range decoration.Options {
			name := strings.TrimSpace(option.Name)
			if name == "" {
				continue
			}
			value := option.Value
			if value == nil {
				value = true
			}
			if err := encodeValue(enc, serviceName(name), value); err != nil {
				return err
			}
		}
		if err := enc.EncodeToken(options.End()); err != nil {
			return err
		}
	}
	return enc.EncodeToken(header.End())
}

// encodeValue writes value under name. Maps become nested elements in key
// order, slices repeat the element once per item.
func encodeValue(enc *xml.Encoder, name xml.Name, value any) error {
	start := xml.StartElement{Name: name}
	switch typed := value.(type) {
	case nil:
		if err := enc.EncodeToken(start); err != nil {
			return err
		}
		return enc.EncodeToken(start.End())
	case map[string]any:
		if err := enc.EncodeToken(start); err != nil {
			return err
		}
		for _, key := range sortedKeys(typed) {
			if err := encodeValue(enc, serviceName(key), typed[key]); err != nil {
				return err
			}
		}
		return enc.EncodeToken(start.End())
	case map[string]string:
		if err := enc.EncodeToken(start); err != nil {
			return err
		}
		keys := make([]string, 0, len(typed))
		for key := range typed {
			keys = append(keys, key)
		}
		sort.Strings(keys)
		for _, key := range keys {
			if err := enc.EncodeElement(typed[key], xml.StartElement{Name: serviceName(key)}); err != nil {
				return err
			}
		}
		return enc.EncodeToken(start.End())
	case []any:
		for _, item := range typed {
			if err := encodeValue(enc, name, item); err != nil {
				return err
			}
		}
		return nil
	case []map[string]any:
		for _, item := range typed {
			if err := encodeValue(enc, name, item); err != nil {
				return err
			}
		}
		return nil
	default:
		return enc.EncodeElement(value, start)
	}
}

func sortedKeys(values map[string]any) []string {
	keys := make([]string, 0, len(values))
	for key := range values {
		if strings.TrimSpace(key) == "" {
			continue
		}
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

func envelopeName(local string) xml.Name {
	return xml.Name{Local: envelopePrefix + ":" + local}
}

func serviceName(local string) xml.Name {
	return xml.Name{Local: servicePrefix + ":" + local}
}
