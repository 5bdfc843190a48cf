package format

import (
	"sync"

	"github.com/goliatone/go-rpcsession/core"
)

// Negotiator remembers the format of the last decoded payload and encodes
// replies in it. It starts out as JSON.
type Negotiator struct {
	mu      sync.RWMutex
	current Format
}

func NewNegotiator() *Negotiator {
	return &Negotiator{current: FormatJSON}
}

// Decode parses body according to contentType. On success the format
// becomes the one used by Encode; an unsupported content type leaves it
// unchanged.
func (n *Negotiator) Decode(contentType string, body []byte) (map[string]any, error) {
	f, err := FromContentType(contentType)
	if err != nil {
		return nil, err
	}
	values, err := codecs[f].Decode(body)
	if err != nil {
		return nil, err
	}
	n.mu.Lock()
	n.current = f
	n.mu.Unlock()
	return values, nil
}

func (n *Negotiator) Encode(data any) ([]byte, error) {
	return codecs[n.Format()].Encode(data)
}

// Use switches the reply format explicitly.
func (n *Negotiator) Use(f Format) error {
	if _, ok := codecs[f]; !ok {
		return core.UnsupportedFormatError(string(f))
	}
	n.mu.Lock()
	n.current = f
	n.mu.Unlock()
	return nil
}

func (n *Negotiator) Format() Format {
	n.mu.RLock()
	defer n.mu.RUnlock()
	if n.current == "" {
		return FormatJSON
	}
	return n.current
}

// Headers returns the response headers for the current format.
func (n *Negotiator) Headers() map[string]string {
	return map[string]string{"Content-Type": codecs[n.Format()].ContentType}
}
