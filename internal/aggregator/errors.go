package aggregator

import "errors"

// ErrInvalidInput marks caller mistakes (bad date, empty ticker, bad limit).
var ErrInvalidInput = errors.New("invalid input")
