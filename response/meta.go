package response

// Meta is the status line and headers of a response. It is immutable once the
// assembler has accepted it.
type Meta struct {
	StatusCode int
	Header     Header
}

// IsSuccess returns true if the status code is 2xx.
func (m Meta) IsSuccess() bool {
	return m.StatusCode >= 200 && m.StatusCode < 300
}

// IsError returns true if the status code is 4xx or 5xx.
func (m Meta) IsError() bool {
	return m.StatusCode >= 400
}

// Response is handed to extraction once headers have arrived. Body streams the
// content as it arrives and must be read by a single goroutine.
type Response struct {
	Meta
	Body *Body
}
