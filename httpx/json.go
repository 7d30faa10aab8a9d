package httpx

import (
	"encoding/json"
	"errors"
	"net/http"
)

// DoJSONInto performs the request, treats non-2xx as *Error and decodes the body into dst.
// The response body is always closed.
func (c *Client) DoJSONInto(req *http.Request, dst any) (*http.Response, error) {
	resp, err := c.DoStatus(req)
	if err != nil {
		return resp, err
	}
	if resp.Body == nil {
		return resp, errors.New("httpx: nil response body")
	}
	defer resp.Body.Close()

	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		return resp, err
	}
	return resp, nil
}

// DoJSON is a generic helper around DoJSONInto.
func DoJSON[T any](c *Client, req *http.Request) (T, *http.Response, error) {
	var out T
	resp, err := c.DoJSONInto(req, &out)
	if err != nil {
		var zero T
		return zero, resp, err
	}
	return out, resp, nil
}
