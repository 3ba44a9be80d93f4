package pipeline

import "github.com/pkg/errors"

// FlattenErrors joins the non-nil errors into one, e.g. the results of closing several buffers.
func FlattenErrors(errs ...error) error {
	var finalErr error
	for _, err := range errs {
		if err == nil {
			continue
		}

		if finalErr != nil {
			finalErr = errors.Errorf("%v, %v", finalErr, err)
		} else {
			finalErr = err
		}
	}
	return finalErr
}
