package soap

import (
	"strings"
	"testing"

	"github.com/goliatone/go-rpcsession/core"
)

func TestEncodeEnvelope_SessionHeaderAndCallOptions(t *testing.T) {
	payload, err := EncodeEnvelope("http://api.zuora.com/", core.Invocation{
		Operation: core.OperationQuery,
		Args:      []core.Arg{core.NamedArg("queryString", "select Id from Account")},
		Decoration: core.CallDecoration{
			SessionToken: "tok-1",
			Options:      []core.CallOption{{Name: core.CallOptionSingleTransaction, Value: true}},
		},
	})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	body := string(payload)
	for _, want := range []string{
		`<soapenv:Envelope xmlns:soapenv="http://schemas.xmlsoap.org/soap/envelope/" xmlns:ns1="http://api.zuora.com/">`,
		`<soapenv:Header><ns1:SessionHeader><ns1:session>tok-1</ns1:session></ns1:SessionHeader>`,
		`<ns1:CallOptions><ns1:useSingleTransaction>true</ns1:useSingleTransaction></ns1:CallOptions></soapenv:Header>`,
		`<soapenv:Body><ns1:query><ns1:queryString>select Id from Account</ns1:queryString></ns1:query></soapenv:Body>`,
	} {
		if !strings.Contains(body, want) {
			t.Fatalf("expected envelope to contain %q\n%s", want, body)
		}
	}
}

func TestEncodeEnvelope_OmitsHeaderWithoutDecoration(t *testing.T) {
	payload, err := EncodeEnvelope("urn:test", core.Invocation{
		Operation: core.OperationLogin,
		Args: []core.Arg{
			core.NamedArg("username", "user"),
			core.NamedArg("password", "a<b"),
		},
	})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	body := string(payload)
	if strings.Contains(body, "Header") {
		t.Fatalf("expected no header for an empty decoration\n%s", body)
	}
	if !strings.Contains(body, "<ns1:password>a&lt;b</ns1:password>") {
		t.Fatalf("expected escaped argument\n%s", body)
	}
}

func TestEncodeEnvelope_NestedObjectsAndRepeatedValues(t *testing.T) {
	payload, err := EncodeEnvelope("urn:test", core.Invocation{
		Operation: core.OperationDelete,
		Args: []core.Arg{
			core.NamedArg("type", "Account"),
			core.NamedArg("ids", []string{"a1", "a2"}),
			core.NamedArg("zObjects", []map[string]any{
				{"Name": "Acme", "Id": "x1"},
			}),
		},
	})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	body := string(payload)
	if !strings.Contains(body, "<ns1:ids>a1</ns1:ids><ns1:ids>a2</ns1:ids>") {
		t.Fatalf("expected repeated ids\n%s", body)
	}
	if !strings.Contains(body, "<ns1:zObjects><ns1:Id>x1</ns1:Id><ns1:Name>Acme</ns1:Name></ns1:zObjects>") {
		t.Fatalf("expected nested object with sorted fields\n%s", body)
	}
}

func TestEncodeEnvelope_RejectsMissingNames(t *testing.T) {
	if _, err := EncodeEnvelope("urn:test", core.Invocation{}); err == nil {
		t.Fatalf("expected missing operation error")
	}
	if _, err := EncodeEnvelope("urn:test", core.Invocation{
		Operation: core.OperationQuery,
		Args:      []core.Arg{{Value: "x"}},
	}); err == nil {
		t.Fatalf("expected missing argument name error")
	}
}
