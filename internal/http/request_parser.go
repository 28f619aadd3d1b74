package http

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"expensetracker/internal/core"
)

// maxBodyBytes caps expense request bodies.
const maxBodyBytes = 1 << 20

// errInvalidBody covers every body that is not a single JSON object.
var errInvalidBody = errors.New("invalid request body")

// DecodeExpenseInput reads the request body as one JSON object. Unknown keys
// are ignored; an empty body, a non-object, trailing data or an oversized body
// is errInvalidBody.
func DecodeExpenseInput(w http.ResponseWriter, r *http.Request) (core.Input, error) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		return core.Input{}, fmt.Errorf("%w: %v", errInvalidBody, err)
	}

	body = bytes.TrimSpace(body)
	if len(body) == 0 || body[0] != '{' {
		return core.Input{}, errInvalidBody
	}

	var in core.Input
	dec := json.NewDecoder(bytes.NewReader(body))
	if err := dec.Decode(&in); err != nil {
		return core.Input{}, fmt.Errorf("%w: %v", errInvalidBody, err)
	}
	if dec.More() {
		return core.Input{}, fmt.Errorf("%w: trailing data", errInvalidBody)
	}
	return in, nil
}
