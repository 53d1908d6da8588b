package jira

import (
	"errors"
	"fmt"
	"maps"
	"net/http"
	"slices"
	"strings"

	"github.com/germanamz/relnotes/pkg/restclient"
)

// ErrUnauthorized is wrapped by a TrackerError when Jira rejects the credentials.
var ErrUnauthorized = errors.New("jira: unauthorized, check ATLASSIAN_USERNAME and ATLASSIAN_API_KEY")

// TrackerError reports a failed Jira read or write.
type TrackerError struct {
	Op         string
	Key        string
	StatusCode int
	Err        error
}

func (e *TrackerError) Error() string {
	var b strings.Builder
	b.WriteString("jira: ")
	b.WriteString(e.Op)

	if e.Key != "" {
		b.WriteString(" " + e.Key)
	}

	if e.StatusCode > 0 {
		fmt.Fprintf(&b, " (status %d)", e.StatusCode)
	}

	b.WriteString(": ")
	b.WriteString(e.Err.Error())

	return b.String()
}

func (e *TrackerError) Unwrap() error { return e.Err }

// QueryRejected reports whether Jira refused a search because of its input,
// such as an unknown project or fix version.
func (e *TrackerError) QueryRejected() bool {
	return e.Op == opSearch && (e.StatusCode == http.StatusBadRequest || e.StatusCode == http.StatusNotFound)
}

// wrapErr converts a restclient error into a *TrackerError, replacing the
// raw body with Jira's error messages when present.
func wrapErr(op, key string, err error) error {
	if err == nil {
		return nil
	}

	te := &TrackerError{Op: op, Key: key, Err: err}

	var se *restclient.StatusError
	if !errors.As(err, &se) {
		return te
	}

	te.StatusCode = se.StatusCode

	if se.StatusCode == http.StatusUnauthorized {
		te.Err = ErrUnauthorized
		return te
	}

	var body ErrorResponse
	if se.DecodeBody(&body) == nil && (len(body.ErrorMessages) > 0 || len(body.Errors) > 0) {
		msgs := slices.Clone(body.ErrorMessages)
		for _, field := range slices.Sorted(maps.Keys(body.Errors)) {
			msgs = append(msgs, field+": "+body.Errors[field])
		}

		te.Err = errors.New(strings.Join(msgs, "; "))
	}

	return te
}
