package domain

import "fmt"

// InsufficientDataError is returned when no aligned historical data exists
// for the requested window. Fatal to the run; not retried.
type InsufficientDataError struct {
	Pairs []string
	Start int64 // Unix seconds
	End   int64 // Unix seconds
}

func (e *InsufficientDataError) Error() string {
	return fmt.Sprintf("insufficient data: no candles for %v in [%d, %d]", e.Pairs, e.Start, e.End)
}

// ExternalFetchError wraps a failure of a candle or price source.
type ExternalFetchError struct {
	Source string
	Pair   string
	Err    error
}

func (e *ExternalFetchError) Error() string {
	return fmt.Sprintf("fetch %s from %s: %v", e.Pair, e.Source, e.Err)
}

func (e *ExternalFetchError) Unwrap() error {
	return e.Err
}

// InvalidParameterError reports an out-of-range parameter, caught before a run starts.
type InvalidParameterError struct {
	Field  string
	Reason string
}

func (e *InvalidParameterError) Error() string {
	return fmt.Sprintf("invalid parameter %s: %s", e.Field, e.Reason)
}
