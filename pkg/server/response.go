package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/germanamz/relnotes/pkg/engine"
	"github.com/germanamz/relnotes/pkg/jira"
	"github.com/germanamz/relnotes/pkg/modeladapter"
	"github.com/germanamz/relnotes/pkg/providers/openai"
)

type errorResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, errorResponse{Status: "error", Message: msg})
}

// statusFor maps a run error to the HTTP status and the message shown to the
// caller. Unknown errors never leak their text.
func statusFor(err error) (int, string) {
	var (
		ve        *engine.ValidationError
		te        *jira.TrackerError
		cfgErr    *modeladapter.ConfigurationError
		transport *modeladapter.TransportError
		rle       *modeladapter.RateLimitError
	)

	switch {
	case errors.As(err, &ve):
		return http.StatusBadRequest, strings.Join(ve.Problems, " ")
	case errors.Is(err, jira.ErrUnauthorized), errors.Is(err, openai.ErrUnauthorized):
		return http.StatusUnauthorized, "Unauthorized"
	case errors.Is(err, engine.ErrTimeout):
		return http.StatusGatewayTimeout, err.Error()
	case errors.As(err, &te) && te.QueryRejected():
		return te.StatusCode, "Jira rejected the query: " + te.Err.Error()
	case errors.As(err, &te):
		return http.StatusBadGateway, "Jira API error: " + te.Error()
	case errors.As(err, &cfgErr):
		return http.StatusInternalServerError, cfgErr.Error()
	case errors.As(err, &transport), errors.As(err, &rle):
		return http.StatusBadGateway, "Model provider error: " + err.Error()
	default:
		return http.StatusInternalServerError, "Internal Server Error"
	}
}
