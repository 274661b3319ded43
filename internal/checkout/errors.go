package checkout

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrEmptyCart         = errors.New("cart is empty, nothing to checkout")
	ErrInvalidTransition = errors.New("illegal transition of checkout step")
)

// ValidationError names the first required field missing from the active
// step. It never crosses the local/remote boundary.
type ValidationError struct {
	Field string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s%s is required", strings.ToUpper(e.Field[:1]), e.Field[1:])
}

// PartialSubmissionError reports an order submission that created durable
// records for some cart lines before failing. The created lines are not
// rolled back; retrying must not re-submit them.
type PartialSubmissionError struct {
	CreatedOrderIDs []int64
	FailedProductID int64
	Cause           error
}

func (e *PartialSubmissionError) Error() string {
	return fmt.Sprintf("order submission failed at product %d after %d orders were created: %v",
		e.FailedProductID, len(e.CreatedOrderIDs), e.Cause)
}

func (e *PartialSubmissionError) Unwrap() error { return e.Cause }
