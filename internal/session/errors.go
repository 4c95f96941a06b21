package session

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

var (
	// ErrAuthExpired means the session ended after a failed refresh-and-retry
	// cycle. Callers should sign the user out.
	ErrAuthExpired = errors.New("session expired: please log in again")

	// ErrInvalidRequest marks a malformed call (bad method, endpoint or body).
	// It is never retried.
	ErrInvalidRequest = errors.New("invalid request")
)

// HTTPError is a non-2xx API response decoded from the error envelope
// {success:false, error, code, details}.
type HTTPError struct {
	Status  int
	Code    string
	Message string
	Details map[string]any
}

func (e *HTTPError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("api error: status %d (%s): %s", e.Status, e.Code, e.Message)
	}
	return fmt.Sprintf("api error: status %d: %s", e.Status, e.Message)
}

// IsStatus reports whether err is an *HTTPError with the given status.
func IsStatus(err error, status int) bool {
	var herr *HTTPError
	return errors.As(err, &herr) && herr.Status == status
}

type errorEnvelope struct {
	Success bool           `json:"success"`
	Error   string         `json:"error"`
	Code    string         `json:"code"`
	Details map[string]any `json:"details"`
	Detail  any            `json:"detail"`
}

const maxErrorBody = 1 << 20

func decodeError(resp *http.Response) *HTTPError {
	herr := &HTTPError{Status: resp.StatusCode}
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))

	var env errorEnvelope
	if err := json.Unmarshal(body, &env); err == nil {
		herr.Code = env.Code
		herr.Message = env.Error
		herr.Details = env.Details
		if herr.Message == "" {
			if detail, ok := env.Detail.(string); ok {
				herr.Message = detail
			}
		}
	} else if isHTML(resp, body) {
		herr.Message = htmlErrorMessage(body)
	}

	if herr.Message == "" {
		herr.Message = fmt.Sprintf("HTTP %d", resp.StatusCode)
	}
	return herr
}

func isHTML(resp *http.Response, body []byte) bool {
	if strings.Contains(resp.Header.Get("Content-Type"), "text/html") {
		return true
	}
	trimmed := bytes.TrimSpace(body)
	return bytes.HasPrefix(bytes.ToLower(trimmed), []byte("<!doctype html")) ||
		bytes.HasPrefix(bytes.ToLower(trimmed), []byte("<html"))
}

// htmlErrorMessage pulls a readable message out of proxy or gateway error
// pages, which are HTML rather than the API envelope.
func htmlErrorMessage(body []byte) string {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return ""
	}
	for _, sel := range []string{"title", "h1", "h2"} {
		if text := strings.TrimSpace(doc.Find(sel).First().Text()); text != "" {
			return strings.Join(strings.Fields(text), " ")
		}
	}
	return ""
}
