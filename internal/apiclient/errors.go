package apiclient

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
)

const maxErrorBody = 1 << 20

// APIError is a non-2xx response decoded into a human-readable message.
type APIError struct {
	Status  int
	Message string
	// Fields holds field-level validation messages keyed by field name.
	Fields map[string][]string
}

func (e *APIError) Error() string {
	return e.Message
}

// DecodeError consumes and closes resp.Body and returns an *APIError. The
// message is taken from the "error" field, then "detail", then the first
// message of the first field-level error (fields in name order), and finally
// fallback.
func DecodeError(resp *http.Response, fallback string) error {
	defer resp.Body.Close()
	apiErr := &APIError{Status: resp.StatusCode, Message: fallback}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	if err != nil || len(data) == 0 {
		return apiErr
	}
	var body map[string]json.RawMessage
	if err := json.Unmarshal(data, &body); err != nil {
		return apiErr
	}

	for _, key := range []string{"error", "detail"} {
		var msg string
		if raw, ok := body[key]; ok && json.Unmarshal(raw, &msg) == nil && msg != "" {
			apiErr.Message = msg
			return apiErr
		}
	}

	names := make([]string, 0, len(body))
	for name, raw := range body {
		var msgs []string
		if json.Unmarshal(raw, &msgs) != nil || len(msgs) == 0 {
			continue
		}
		if apiErr.Fields == nil {
			apiErr.Fields = make(map[string][]string)
		}
		apiErr.Fields[name] = msgs
		names = append(names, name)
	}
	if len(names) > 0 {
		sort.Strings(names)
		apiErr.Message = apiErr.Fields[names[0]][0]
	}
	return apiErr
}

// DecodeJSON consumes and closes resp.Body, decoding it into dst.
func DecodeJSON(resp *http.Response, dst any) error {
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
