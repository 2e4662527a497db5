// Package http provides HTTP server and handler implementations.
//
// This file implements utilities for parsing and validating HTTP request
// data shared by the onboarding handlers.

package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/devintruefi/91825truefi-sub000/internal/services"
)

// maxBodyBytes bounds submit bodies; step payloads are small forms.
const maxBodyBytes = 64 << 10

// SessionParams identifies one onboarding session.
type SessionParams struct {
	UserID    string
	SessionID string
}

// ParseSessionParams extracts userId and sessionId from query parameters.
// sessionId falls back to the default session.
func ParseSessionParams(query url.Values) (SessionParams, error) {
	params := SessionParams{
		UserID:    sanitizeInput(query.Get("userId")),
		SessionID: sanitizeInput(query.Get("sessionId")),
	}
	if params.UserID == "" {
		return params, errors.New("userId is required")
	}
	if params.SessionID == "" {
		params.SessionID = services.DefaultSessionID
	}
	return params, nil
}

// DecodeJSONBody decodes a single JSON object from r into dst. The body is
// capped at maxBodyBytes and trailing data is rejected.
func DecodeJSONBody(w http.ResponseWriter, r *http.Request, dst any) error {
	if ct := r.Header.Get("Content-Type"); ct != "" && !strings.HasPrefix(strings.ToLower(ct), "application/json") {
		return fmt.Errorf("unsupported content type %q", ct)
	}

	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		var maxErr *http.MaxBytesError
		switch {
		case errors.Is(err, io.EOF):
			return errors.New("request body is empty")
		case errors.As(err, &maxErr):
			return fmt.Errorf("request body exceeds %d bytes", maxErr.Limit)
		default:
			return fmt.Errorf("invalid JSON body: %w", err)
		}
	}
	if dec.More() {
		return errors.New("request body must contain a single JSON object")
	}
	return nil
}

// ParseSubmitRequest decodes and normalizes a submit body.
func ParseSubmitRequest(w http.ResponseWriter, r *http.Request) (services.SubmitRequest, error) {
	var req services.SubmitRequest
	if err := DecodeJSONBody(w, r, &req); err != nil {
		return req, err
	}
	req.Action = strings.ToLower(sanitizeInput(req.Action))
	req.UserID = sanitizeInput(req.UserID)
	req.SessionID = sanitizeInput(req.SessionID)
	req.StepID = sanitizeInput(req.StepID)
	req.InstanceID = sanitizeInput(req.InstanceID)
	req.Nonce = sanitizeInput(req.Nonce)
	return req, nil
}
