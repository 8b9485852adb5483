package errs

import (
	"errors"
	"fmt"
)

// The recipe treats every failure as fatal for the current build step.
// The sentinels only classify what went wrong so callers and tests can
// distinguish a bad configuration from a failing external process or an
// unparseable report.
var (
	ErrConfig  = errors.New("configuration error")
	ErrProcess = errors.New("external process error")
	ErrParse   = errors.New("parse error")
)

// Config returns a formatted error classified as ErrConfig.
func Config(format string, args ...any) error {
	return classify(ErrConfig, format, args...)
}

// Process returns a formatted error classified as ErrProcess.
func Process(format string, args ...any) error {
	return classify(ErrProcess, format, args...)
}

// Parse returns a formatted error classified as ErrParse.
func Parse(format string, args ...any) error {
	return classify(ErrParse, format, args...)
}

func classify(kind error, format string, args ...any) error {
	return fmt.Errorf("%w: %s", kind, fmt.Sprintf(format, args...))
}
