package crpt

import (
	"errors"
	"fmt"
)

// APIError é retornado quando a API responde com status diferente de 200.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("crpt: failed to create document: status %d: %s", e.StatusCode, e.Body)
}

// StatusCode devolve o status HTTP de um *APIError na cadeia de err (0 se não houver).
func StatusCode(err error) int {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode
	}
	return 0
}
