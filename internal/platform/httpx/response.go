package httpx

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
)

const maxBodyBytes int64 = 64 * 1024

// ErrBodyTooLarge is returned by DecodeJSON when the body exceeds the configured limit.
var ErrBodyTooLarge = errors.New("httpx: request body too large")

type successPayload struct {
	Success  bool     `json:"success"`
	Message  string   `json:"message,omitempty"`
	Data     any      `json:"data"`
	Warnings []string `json:"warnings,omitempty"`
}

// Response is the success envelope. Warnings carry partial failures that did not abort the request.
type Response struct {
	Status   int
	Message  string
	Data     any
	Warnings []string
}

// WriteSuccess writes the success envelope.
func WriteSuccess(w http.ResponseWriter, resp Response) {
	status := resp.Status
	if status == 0 {
		status = http.StatusOK
	}
	writeJSON(w, status, successPayload{
		Success:  true,
		Message:  resp.Message,
		Data:     resp.Data,
		Warnings: resp.Warnings,
	})
}

// DecodeJSON reads a bounded JSON body into dst. Unknown fields are rejected.
func DecodeJSON(r *http.Request, dst any) error {
	if r == nil || r.Body == nil {
		return errors.New("httpx: request body is required")
	}
	limited := io.LimitReader(r.Body, maxBodyBytes+1)
	body, err := io.ReadAll(limited)
	if err != nil {
		return fmt.Errorf("httpx: read body: %w", err)
	}
	if int64(len(body)) > maxBodyBytes {
		return ErrBodyTooLarge
	}
	if len(strings.TrimSpace(string(body))) == 0 {
		return errors.New("httpx: request body is required")
	}

	dec := json.NewDecoder(strings.NewReader(string(body)))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("httpx: invalid json: %w", err)
	}
	if dec.More() {
		return errors.New("httpx: request body must contain a single json object")
	}
	return nil
}
