// Package backend implements the HTTP contract with the chat server:
// the streaming /chat endpoint, the /history read/write pair, and the
// /settings read endpoint.
package backend

import "fmt"

// APIError is a non-2xx chat response. The server reports the reason
// as a JSON body of the form {"detail": "..."}.
type APIError struct {
	StatusCode int
	Detail     string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("backend: HTTP %d: %s", e.StatusCode, e.Detail)
}
