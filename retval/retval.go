// Package retval holds the outcome of a request to an external service:
// whether it succeeded, a status message, and the response body as text
// and as raw bytes.
package retval

import (
	"encoding/json"
	"errors"
	"fmt"
)

const (
	// MessageOK is the default message of a successful Value.
	MessageOK = "ok"
	// MessageFailed is the default message of a failed Value.
	MessageFailed = "failed"
)

// ErrNotOK is returned by Decode and Err on a failed Value.
var ErrNotOK = errors.New("retval: request failed")

// Value is the outcome of a request. A new Value (see New) is a failure
// with the message "failed" until SetSuccess is called.
type Value struct {
	OK      bool   `json:"ok"`
	Message string `json:"message"`
	Text    string `json:"text,omitempty"`
	Bytes   []byte `json:"-"`
}

// New returns a failed Value with the default message.
func New() Value {
	return Value{Message: MessageFailed}
}

// Success returns a successful Value holding text and raw.
func Success(text string, raw []byte) Value {
	var v Value
	v.SetSuccess(text, raw)
	return v
}

// Failure returns a failed Value with the given message.
func Failure(message string) Value {
	var v Value
	v.SetFailed(message)
	return v
}

// SetSuccess marks v successful with the default message.
func (v *Value) SetSuccess(text string, raw []byte) {
	v.OK = true
	v.Message = MessageOK
	v.Text = text
	v.Bytes = raw
}

// SetFailed marks v failed and clears its body. An empty message becomes
// the default one.
func (v *Value) SetFailed(message string) {
	if message == "" {
		message = MessageFailed
	}
	v.OK = false
	v.Message = message
	v.Text = ""
	v.Bytes = nil
}

// Err returns nil for a successful Value and an error carrying the
// message otherwise.
func (v Value) Err() error {
	if v.OK {
		return nil
	}
	return fmt.Errorf("%w: %s", ErrNotOK, v.Message)
}

// Decode unmarshals the JSON in Text into out.
func (v Value) Decode(out any) error {
	if !v.OK {
		return v.Err()
	}
	if err := json.Unmarshal([]byte(v.Text), out); err != nil {
		return fmt.Errorf("retval: decode: %w", err)
	}
	return nil
}

// String returns a short human-readable form.
func (v Value) String() string {
	if v.OK {
		return fmt.Sprintf("ok (%d bytes)", len(v.Bytes))
	}
	return "failed: " + v.Message
}
