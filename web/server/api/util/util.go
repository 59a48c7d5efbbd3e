// Package util contains helpers shared by API handlers.
package util

import (
	"encoding/json"
	"fmt"
	"net/http"
)

// WriteJSON writes resp as the JSON body of the response. The status code is
// taken from resp if it implements GetStatusCode, otherwise it's 200 OK.
func WriteJSON(w http.ResponseWriter, resp any) error {
	status := http.StatusOK
	if r, ok := resp.(interface{ GetStatusCode() int }); ok {
		status = r.GetStatusCode()
	}

	data, err := json.Marshal(resp)
	if err != nil {
		return fmt.Errorf("failed marshalling response into JSON: %w", err)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, err = w.Write(append(data, '\n'))

	return err //nolint:wrapcheck // Wrapped by caller.
}
