package reasoner

import (
	"errors"
	"fmt"
)

// BadRequestError reports an upstream reasoner failure the caller cannot
// retry into success: malformed request, bad credentials, rate limiting.
// The controller aborts the run and reports it to the operator.
type BadRequestError struct {
	StatusCode int
	Body       string
}

func (e *BadRequestError) Error() string {
	return fmt.Sprintf("reasoner bad request (status %d): %s", e.StatusCode, e.Body)
}

// IsBadRequest reports whether err wraps a BadRequestError.
func IsBadRequest(err error) bool {
	var bre *BadRequestError
	return errors.As(err, &bre)
}
