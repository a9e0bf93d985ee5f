package apiclient

import (
	"bytes"
	"encoding/json"
	"net/http"
	"strings"
)

// unwrap returns the data member of a {status, message, data} envelope,
// or body unchanged when it is not an envelope.
func unwrap(body []byte) []byte {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return body
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &fields); err != nil {
		return body
	}
	data, ok := fields["data"]
	if !ok {
		return body
	}
	if _, hasStatus := fields["status"]; !hasStatus {
		if _, hasMessage := fields["message"]; !hasMessage {
			return body
		}
	}
	return data
}

// errorMessage extracts a human readable message from an error body,
// falling back to the HTTP status text.
func errorMessage(status int, body []byte) string {
	var payload struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if json.Unmarshal(body, &payload) == nil {
		if msg := strings.TrimSpace(payload.Message); msg != "" {
			return msg
		}
		if msg := strings.TrimSpace(payload.Error); msg != "" {
			return msg
		}
	}
	if text := http.StatusText(status); text != "" {
		return text
	}
	return "unexpected response"
}
