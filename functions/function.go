// Package functions implements the two auxiliary HTTP functions, rating
// aggregation and review export, independent of how they are hosted. Adapters
// serve them from gin or from AWS Lambda behind API Gateway.
package functions

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"

	"github.com/yeremiapane/diner-app/services"
)

type Request struct {
	Method string
	Header http.Header
	Query  url.Values
	Body   []byte
}

type Response struct {
	Status int
	Header map[string]string
	Body   []byte
}

type Handler func(ctx context.Context, req Request) Response

func jsonResponse(status int, v interface{}) Response {
	body, err := json.Marshal(v)
	if err != nil {
		return textResponse(http.StatusInternalServerError, "encode response")
	}
	return Response{
		Status: status,
		Header: map[string]string{"Content-Type": "application/json"},
		Body:   body,
	}
}

func textResponse(status int, msg string) Response {
	return Response{
		Status: status,
		Header: map[string]string{"Content-Type": "text/plain; charset=utf-8"},
		Body:   []byte(msg),
	}
}

func errorResponse(status int, msg string) Response {
	return jsonResponse(status, map[string]string{"error": msg})
}

// Authorized checks the shared secret from X-Internal-Token or a bearer
// Authorization header. An empty configured token disables the check.
func Authorized(token string, h http.Header) bool {
	if token == "" {
		return true
	}
	got := h.Get(services.InternalTokenHeader)
	if got == "" {
		if auth := h.Get("Authorization"); strings.HasPrefix(auth, "Bearer ") {
			got = strings.TrimPrefix(auth, "Bearer ")
		}
	}
	return subtle.ConstantTimeCompare([]byte(got), []byte(token)) == 1
}

// RequireToken wraps h with the shared-secret check.
func RequireToken(token string, h Handler) Handler {
	return func(ctx context.Context, req Request) Response {
		if !Authorized(token, req.Header) {
			return textResponse(http.StatusUnauthorized, "Unauthorized")
		}
		return h(ctx, req)
	}
}
