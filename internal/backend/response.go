package backend

import (
	"encoding/json"
	"fmt"

	"resumefit/internal/errors"

	"github.com/tidwall/gjson"
)

// interpret checks a raw backend response before any field of it is trusted.
// A string "error" field wins over the HTTP status so that backend messages
// reach the user verbatim.
func interpret(endpoint Endpoint, status int, body []byte) error {
	if !gjson.ValidBytes(body) {
		if status < 200 || status > 299 {
			return statusError(endpoint, status)
		}
		return malformed(endpoint, "response is not valid JSON")
	}

	parsed := gjson.ParseBytes(body)
	if msg := parsed.Get("error"); msg.Type == gjson.String && msg.String() != "" {
		return errors.NewTransportError(errors.ErrCodeBackendRejected, msg.String(), nil).
			WithContext("endpoint", string(endpoint)).
			WithContext("status", status)
	}

	if status < 200 || status > 299 {
		return statusError(endpoint, status)
	}

	if !parsed.IsObject() {
		return malformed(endpoint, "response is not a JSON object")
	}

	switch endpoint {
	case EndpointUpload, EndpointAnalyze:
		if !parsed.Get("success").Bool() {
			return errors.NewTransportError(errors.ErrCodeBackendRejected, "request was not successful", nil).
				WithContext("endpoint", string(endpoint))
		}
	case EndpointSampleJobs:
		if !parsed.Get("jobs").IsArray() {
			return malformed(endpoint, "missing jobs list")
		}
	case EndpointHistory:
		if !parsed.Get("history").IsArray() {
			return malformed(endpoint, "missing history list")
		}
	}

	return nil
}

// decode interprets the response and unmarshals it into out
func decode(endpoint Endpoint, status int, body []byte, out any) error {
	if err := interpret(endpoint, status, body); err != nil {
		return err
	}
	if err := json.Unmarshal(body, out); err != nil {
		return errors.NewTransportError(errors.ErrCodeMalformedResponse, "invalid response from server", err).
			WithContext("endpoint", string(endpoint))
	}
	return nil
}

func statusError(endpoint Endpoint, status int) error {
	return errors.NewTransportError(errors.ErrCodeBackendStatus,
		fmt.Sprintf("server responded with HTTP %d", status), nil).
		WithContext("endpoint", string(endpoint)).
		WithContext("status", status)
}

func malformed(endpoint Endpoint, detail string) error {
	return errors.NewTransportError(errors.ErrCodeMalformedResponse, "invalid response from server",
		fmt.Errorf("%s", detail)).
		WithContext("endpoint", string(endpoint))
}
