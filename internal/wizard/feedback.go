package wizard

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"tomgalvin.uk/labelle/internal/calibration"
)

var (
	ErrFeedbackNotInteger  = errors.New("Both rows must be whole numbers")
	ErrFeedbackNotPositive = errors.New("Rows are numbered from 1")
	ErrFeedbackNotOrdered  = errors.New("The lowest row must be below the highest row")
	ErrFeedbackRange       = fmt.Errorf("The visible area must be between %d and %d rows high", calibration.MinCanvasHeightPx, calibration.MaxCanvasHeightPx)
	ErrFeedbackBeyondHead  = errors.New("The highest row is beyond the print head")
)

// FeedbackError is a rejected pair of rows. The user is asked again.
type FeedbackError struct {
	Low, High string
	Err       error
}

func (e *FeedbackError) Error() string {
	return fmt.Sprintf("Can't use rows %q and %q: %v", e.Low, e.High, e.Err)
}

func (e *FeedbackError) Unwrap() error {
	return e.Err
}

// ParseFeedback turns the lowest and highest visible rows of the test
// pattern into an offset and canvas height.
func ParseFeedback(low, high string, headHeightPx int) (offsetPx, canvasHeightPx int, err error) {
	fail := func(err error) (int, int, error) {
		return 0, 0, &FeedbackError{Low: low, High: high, Err: err}
	}

	l, lerr := strconv.Atoi(strings.TrimSpace(low))
	h, herr := strconv.Atoi(strings.TrimSpace(high))
	switch {
	case lerr != nil || herr != nil:
		return fail(ErrFeedbackNotInteger)
	case l <= 0 || h <= 0:
		return fail(ErrFeedbackNotPositive)
	case l >= h:
		return fail(ErrFeedbackNotOrdered)
	case h-l < calibration.MinCanvasHeightPx || h-l > calibration.MaxCanvasHeightPx:
		return fail(ErrFeedbackRange)
	case h-1 > headHeightPx:
		return fail(fmt.Errorf("%w of %d rows", ErrFeedbackBeyondHead, headHeightPx))
	}
	return l - 1, h - l, nil
}
