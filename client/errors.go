package client

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"

	"github.com/pkg/errors"
)

// Error is a non-2xx answer of the API.
type Error struct {
	Status  int
	Code    string            // stable machine code, e.g. "invalid_credentials"; may be empty
	Message string            // set for non-field errors
	Fields  map[string]string // validation errors by JSON field name
}

func (e *Error) Error() string {
	if len(e.Fields) == 0 {
		return fmt.Sprintf("%d: %s", e.Status, e.Message)
	}
	flds := make([]string, 0, len(e.Fields))
	for fld, msg := range e.Fields {
		flds = append(flds, fld+": "+msg)
	}
	sort.Strings(flds)
	return fmt.Sprintf("%d: %s", e.Status, strings.Join(flds, "; "))
}

// decodeError reads `{"error": msg, "code": code}` or a `{"field": msg}` map.
func decodeError(res *http.Response) error {
	apiErr := &Error{Status: res.StatusCode}
	data, err := io.ReadAll(io.LimitReader(res.Body, 1<<20))
	if err != nil {
		apiErr.Message = http.StatusText(res.StatusCode)
		return apiErr
	}

	var body map[string]interface{}
	if err = json.Unmarshal(data, &body); err != nil {
		apiErr.Message = strings.TrimSpace(string(data))
		if apiErr.Message == "" {
			apiErr.Message = http.StatusText(res.StatusCode)
		}
		return apiErr
	}

	if msg, ok := body["error"].(string); ok {
		apiErr.Message = msg
		apiErr.Code, _ = body["code"].(string)
		return apiErr
	}
	if msg, ok := body["message"].(string); ok { // echo's own errors
		apiErr.Message = msg
		return apiErr
	}
	apiErr.Fields = make(map[string]string, len(body))
	for fld, val := range body {
		apiErr.Fields[fld] = fmt.Sprint(val)
	}
	return apiErr
}

// AsError unwraps err into an *Error.
func AsError(err error) (*Error, bool) {
	var apiErr *Error
	ok := errors.As(err, &apiErr)
	return apiErr, ok
}

func IsNotFound(err error) bool {
	apiErr, ok := AsError(err)
	return ok && apiErr.Status == http.StatusNotFound
}

func IsUnauthorized(err error) bool {
	apiErr, ok := AsError(err)
	return ok && apiErr.Status == http.StatusUnauthorized
}

// ErrorCode returns the stable code of an API error, or "".
func ErrorCode(err error) string {
	if apiErr, ok := AsError(err); ok {
		return apiErr.Code
	}
	return ""
}
