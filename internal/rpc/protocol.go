// Package rpc implements the peer-to-peer queue transport. Each logical call
// opens one TCP stream, negotiates the protocol identifier, writes exactly
// one JSON request line and reads exactly one JSON response line.
package rpc

import (
	"bufio"
	"encoding/json"
	"errors"
	"strings"
)

// ProtocolID pins the wire protocol version. Both ends exchange it at stream
// open; a peer speaking anything else is disconnected.
const ProtocolID = "/peertasks/queue/1.0.0"

// Supported operations.
const (
	OpSubmit = "submit"
	OpGet    = "get"
	OpWait   = "wait"
)

// Protocol-level error strings returned in {"ok": false, "error": ...}.
const (
	ErrStrUnauthorized   = "unauthorized"
	ErrStrInvalidJSON    = "invalid_json"
	ErrStrInvalidMessage = "invalid_message"
	ErrStrUnknownOp      = "unknown_op"
)

// maxLineBytes bounds a single protocol line. Payloads are handler
// arguments, not bulk data.
const maxLineBytes = 4 << 20

var errLineTooLong = errors.New("protocol line too long")

type Request struct {
	Op        string          `json:"op"`
	Token     string          `json:"token,omitempty"`
	TaskID    string          `json:"task_id,omitempty"`
	TaskType  string          `json:"task_type,omitempty"`
	ModelName string          `json:"model_name,omitempty"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	TimeoutS  float64         `json:"timeout_s,omitempty"`
}

// readLine reads one newline-terminated protocol line.
func readLine(r *bufio.Reader) (string, error) {
	line, err := r.ReadString('\n')
	if err != nil {
		return "", err
	}
	if len(line) > maxLineBytes {
		return "", errLineTooLong
	}
	return strings.TrimRight(line, "\r\n"), nil
}

// isJSONObject reports whether raw starts a JSON object document.
func isJSONObject(raw []byte) bool {
	for _, c := range raw {
		switch c {
		case ' ', '\t', '\n', '\r':
			continue
		default:
			return c == '{'
		}
	}
	return false
}
