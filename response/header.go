package response

import (
	"net/http"
	"net/textproto"
	"sort"
)

// Header is a multi-valued header map that remembers the order in which names
// were first added. Names are stored in canonical MIME form.
type Header struct {
	names  []string
	values map[string][]string
}

// NewHeader creates an empty header.
func NewHeader() Header {
	return Header{values: make(map[string][]string)}
}

// FromHTTP converts an http.Header. Go maps carry no order, so names are
// added in sorted order to keep the result deterministic.
func FromHTTP(h http.Header) Header {
	out := NewHeader()
	names := make([]string, 0, len(h))
	for k := range h {
		names = append(names, k)
	}
	sort.Strings(names)
	for _, k := range names {
		for _, v := range h[k] {
			out.Add(k, v)
		}
	}
	return out
}

// Add appends value to the values of name.
func (h *Header) Add(name, value string) {
	if h.values == nil {
		h.values = make(map[string][]string)
	}
	key := textproto.CanonicalMIMEHeaderKey(name)
	if _, ok := h.values[key]; !ok {
		h.names = append(h.names, key)
	}
	h.values[key] = append(h.values[key], value)
}

// Get returns the first value of name, or "".
func (h Header) Get(name string) string {
	if v := h.values[textproto.CanonicalMIMEHeaderKey(name)]; len(v) > 0 {
		return v[0]
	}
	return ""
}

// Values returns every value of name in arrival order.
func (h Header) Values(name string) []string {
	return h.values[textproto.CanonicalMIMEHeaderKey(name)]
}

// Names returns header names in first-seen order.
func (h Header) Names() []string {
	return append([]string(nil), h.names...)
}

// Len returns the number of distinct names.
func (h Header) Len() int {
	return len(h.names)
}

// Clone returns a deep copy.
func (h Header) Clone() Header {
	out := Header{
		names:  append([]string(nil), h.names...),
		values: make(map[string][]string, len(h.values)),
	}
	for k, v := range h.values {
		out.values[k] = append([]string(nil), v...)
	}
	return out
}

// HTTP converts the header back to an http.Header.
func (h Header) HTTP() http.Header {
	out := make(http.Header, len(h.values))
	for k, v := range h.values {
		out[k] = append([]string(nil), v...)
	}
	return out
}
