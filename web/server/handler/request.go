package handler

import (
	"context"
	"net/http"

	"go.hackfix.me/sqlmgr/web/server/types"
)

// RequestProcessor processes incoming requests and can modify the request or context.
type RequestProcessor func(ctx context.Context, req types.Request) (context.Context, error)

// validator is implemented by requests that can check their own fields after
// deserialization.
type validator interface {
	Validate() error
}

// Validate rejects requests whose Validate method returns an error with a 400
// Bad Request response. Requests without a Validate method are passed through.
func Validate(ctx context.Context, req types.Request) (context.Context, error) {
	v, ok := req.(validator)
	if !ok {
		return ctx, nil
	}
	if err := v.Validate(); err != nil {
		return ctx, types.NewError(http.StatusBadRequest, "invalid_request", err.Error())
	}

	return ctx, nil
}
