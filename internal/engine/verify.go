package engine

import "go.uber.org/zap"

// Verify fails with a CountMismatchError when storage affected a different
// number of records than were submitted.
func Verify(expected int, actual int64, operation string) error {
	if int64(expected) == actual {
		return nil
	}
	return &CountMismatchError{Operation: operation, Expected: expected, Actual: actual}
}

func (e *Engine) verify(expected int, actual int64, operation string) error {
	err := Verify(expected, actual, operation)
	if err != nil {
		e.log.Error("consistency fault",
			zap.String("operation", operation),
			zap.Int("expected", expected),
			zap.Int64("actual", actual),
		)
		e.metrics.observeMismatch(operation)
	}
	return err
}
