package types

import (
	"errors"
	"net/http"
)

// Response defines the interface for HTTP response wrappers.
type Response interface {
	GetStatusCode() int
	SetStatusCode(int)
	GetError() error
	SetError(error)
	GetHeader() http.Header
	SetHeader(http.Header)
}

// BaseResponse is the envelope of all API responses. OK is false if the
// request failed, in which case Code and Error describe the failure.
type BaseResponse struct {
	OK    bool   `json:"ok"`
	Code  string `json:"code,omitempty"`
	Error string `json:"error,omitempty"`

	statusCode int
	err        error
	header     http.Header
}

var _ Response = (*BaseResponse)(nil)

// NewBaseResponse returns a new response with the specified status code and
// optional error.
func NewBaseResponse(statusCode int, err error) BaseResponse {
	resp := BaseResponse{OK: true, statusCode: statusCode}
	if err != nil {
		resp.SetError(err)
	}
	return resp
}

// GetStatusCode returns the HTTP status code for the response. It defaults to
// 200 OK.
func (r *BaseResponse) GetStatusCode() int {
	if r.statusCode == 0 {
		return http.StatusOK
	}
	return r.statusCode
}

// SetStatusCode sets the HTTP status code for the response.
func (r *BaseResponse) SetStatusCode(code int) {
	r.statusCode = code
}

// GetError returns the error of the response, if any.
func (r *BaseResponse) GetError() error {
	return r.err
}

// SetError marks the response as failed. The code is taken from the error if
// it's an *Error.
func (r *BaseResponse) SetError(err error) {
	r.err = err
	if err == nil {
		r.OK, r.Code, r.Error = true, "", ""
		return
	}

	r.OK = false
	r.Error = err.Error()
	var terr *Error
	if errors.As(err, &terr) {
		r.Code = terr.Code
	}
}

// GetHeader returns the response headers.
func (r *BaseResponse) GetHeader() http.Header {
	if r.header == nil {
		r.header = http.Header{}
	}
	return r.header
}

// SetHeader sets the response headers.
func (r *BaseResponse) SetHeader(h http.Header) {
	r.header = h
}
