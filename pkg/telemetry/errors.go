package telemetry

import "errors"

var (
	ErrCreateLogFile = errors.New("telemetry: create log file")
	ErrWriteEvent    = errors.New("telemetry: write event")
	ErrMarshalData   = errors.New("telemetry: marshal event data")
	ErrCloseWriter   = errors.New("telemetry: close writer")
)
