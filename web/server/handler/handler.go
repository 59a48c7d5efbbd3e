package handler

import (
	"context"
	"log/slog"
	"net/http"
	"reflect"

	"go.hackfix.me/sqlmgr/web/server/types"
)

// Handle creates an HTTP handler function that processes requests through a
// configurable pipeline. It supports generic request/response types and handles
// request/response processing and error handling automatically.
//
// It relies on reflection to create the request and response values, so the
// type parameters must be pointers to concrete types.
func Handle[Req types.Request, Resp types.Response](
	handlerFn func(context.Context, Req) (Resp, error),
	p *Pipeline,
) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var (
			ctx = r.Context()
			req = createInstance[Req]()
			err error
		)
		var resp types.Response = createInstance[Resp]()

		req.SetHTTPRequest(r)

		// Response handling is deferred, since it should happen in both success and
		// error scenarios.
		defer func() {
			handleErr := errorHandler(resp)

			// Allow response handlers to modify headers.
			resp.SetHeader(w.Header())

			// 4. Response serialization (optional)
			if p.serializer != nil {
				ctx, err = p.serializer.Serialize(ctx, resp)
				handleErr(err)
			}

			// 5. Response processing
			for _, process := range p.responseProcessors {
				ctx, err = process(ctx, resp)
				if handleErr(err) {
					break
				}
			}

			// 6. Write the response
			if err = writeResponse(ctx, w, resp); err != nil {
				slog.Error("failed writing response", "error", err.Error())
			}
		}()

		handleErr := errorHandler(resp)

		// 1. Request deserialization (optional)
		if p.serializer != nil {
			if ctx, err = p.serializer.Deserialize(ctx, req); handleErr(err) {
				return
			}
		}

		// 2. Request processing
		for _, process := range p.requestProcessors {
			if ctx, err = process(ctx, req); handleErr(err) {
				return
			}
		}

		// 3. Run the handler
		handlerResp, handlerErr := handlerFn(ctx, req)
		if !isNilResponse(handlerResp) {
			resp = handlerResp
		}
		errorHandler(resp)(handlerErr)
	}
}

// createInstance returns a new instance of type T.
//
//nolint:ireturn,nolintlint // Required for generic functionality.
func createInstance[T any]() T {
	var zero T
	tType := reflect.TypeOf(zero)

	if tType == nil {
		panic("cannot create instance of nil interface type")
	}

	switch tType.Kind() {
	case reflect.Ptr:
		// Create new instance of the underlying type
		return reflect.New(tType.Elem()).Interface().(T) //nolint:errcheck,forcetypeassert // It's fine.
	case reflect.Interface:
		panic("cannot create instance of interface type - need concrete type")
	default:
		// For value types, return zero value directly
		return zero
	}
}

func isNilResponse(resp types.Response) bool {
	return resp == nil || reflect.ValueOf(resp).IsNil()
}

// errorHandler returns a function that records err on resp, and reports
// whether there was an error.
func errorHandler(resp types.Response) func(error) bool {
	return func(err error) bool {
		if err == nil {
			return false
		}

		terr := types.FromMigrationError(err)
		if terr.StatusCode == 0 {
			terr.StatusCode = http.StatusInternalServerError
		}

		resp.SetStatusCode(terr.StatusCode)
		resp.SetError(terr)
		return true
	}
}
