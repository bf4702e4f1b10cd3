// Package dapproto is the wire codec and message-model layer (spec
// §4.1/§4.2). It wraps github.com/google/go-dap, which already implements
// the Content-Length-prefixed JSON framing and the full set of typed
// request/response/event structs this spec needs — exactly the library
// other_examples/168bcbad_qingjiuzys-shode__pkg-debugger-dap_server.go.go
// hand-rolls from scratch and go-delve-mcp-dap-server/tools.go drives
// directly, so there is no reason to reimplement framing by hand here.
package dapproto

import (
	"bufio"
	"io"

	"github.com/google/go-dap"
)

// ReadMessage decodes one DAP protocol message from r, blocking until a
// full header+body has arrived (spec §4.1: "streams header bytes until
// the blank line, then reads the body by length"). Errors from reading or
// decoding are returned unchanged, so a clean close yields io.EOF.
func ReadMessage(r *bufio.Reader) (dap.Message, error) {
	raw, err := dap.ReadBaseMessage(r)
	if err != nil {
		return nil, err
	}
	return dap.DecodeProtocolMessage(raw)
}

// WriteMessage serializes m as `Content-Length: N\r\n\r\n<body>` in one
// logical write (spec §4.1).
func WriteMessage(w io.Writer, m dap.Message) error {
	return dap.WriteProtocolMessage(w, m)
}

// Capabilities returns the conservative capability set spec §6 requires:
// only the features this debugger actually implements are advertised.
// Stack traces, scopes, variables, pause, and stepping are core DAP
// commands with no corresponding capability flag; the breakpoint model
// (spec §3) does support conditions and hit counts, so those two flags
// are set true, along with configurationDone support. Everything else is left at its zero value
// (false / nil), matching "all advanced features false".
func Capabilities() dap.Capabilities {
	return dap.Capabilities{
		SupportsConfigurationDoneRequest: true,
		SupportsConditionalBreakpoints:   true,
		SupportsHitConditionalBreakpoints: true,
	}
}

// NewResponse builds the common Response envelope replying to a request
// with the given seq/command, defaulting Success to true. Callers set
// Body and, on failure, flip Success and set Message.
func NewResponse(requestSeq int, command string, body interface{}) *dap.Response {
	return &dap.Response{
		ProtocolMessage: dap.ProtocolMessage{Type: "response"},
		RequestSeq:      requestSeq,
		Success:         true,
		Command:         command,
		Body:            body,
	}
}

// NewErrorResponse builds an error response for the given request
// seq/command, per spec §7's dispatch-error and unknown-command taxonomy
// (message is either "Error" or "NotImplemented").
func NewErrorResponse(requestSeq int, command string, message string) *dap.ErrorResponse {
	return &dap.ErrorResponse{
		Response: dap.Response{
			ProtocolMessage: dap.ProtocolMessage{Type: "response"},
			RequestSeq:      requestSeq,
			Success:         false,
			Command:         command,
			Message:         message,
		},
		Body: dap.ErrorResponseBody{},
	}
}

// NewEvent builds an Event message with the given name and body.
func NewEvent(event string, body interface{}) *dap.Event {
	return &dap.Event{
		ProtocolMessage: dap.ProtocolMessage{Type: "event"},
		Event:           event,
		Body:            body,
	}
}
