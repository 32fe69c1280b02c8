// Package errs defines the runtime's error taxonomy. Every recoverable
// failure path in the runtime raises one of these kinds instead of an ad hoc
// error string, so callers can switch on Kind without parsing messages.
package errs

import "fmt"

// Kind identifies which class of failure an Error represents.
type Kind string

const (
	KindConfigParse          Kind = "config_parse"
	KindCameraOpen           Kind = "camera_open"
	KindBadIndex             Kind = "bad_index"
	KindPipelineBusy         Kind = "pipeline_busy"
	KindNoPipeline           Kind = "no_pipeline"
	KindUnknownSetting       Kind = "unknown_setting"
	KindInvalidSetting       Kind = "invalid_setting"
	KindVideoModeUnsupported Kind = "video_mode_unsupported"
	KindSensorMissing        Kind = "sensor_missing"
	KindPipelineLoad         Kind = "pipeline_load"
)

// Error is the concrete error type raised across the runtime. It carries a
// Kind so callers can branch on failure class, plus an optional wrapped
// cause for %w-style chains.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %s", e.Kind, e.Msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is an *Error with the same Kind, so callers can
// write errors.Is(err, errs.New(errs.KindBadIndex, "")).
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// New builds an Error of the given kind with no wrapped cause.
func New(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Msg: msg}
}

// Wrap builds an Error of the given kind wrapping a lower-level cause.
func Wrap(kind Kind, msg string, err error) *Error {
	return &Error{Kind: kind, Msg: msg, Err: err}
}

// Sentinel values usable with errors.Is where no message/cause is needed.
var (
	ErrBadIndex       = New(KindBadIndex, "unknown camera or pipeline index")
	ErrPipelineBusy   = New(KindPipelineBusy, "pipeline already bound to another camera")
	ErrNoPipeline     = New(KindNoPipeline, "bound pipeline instance missing")
	ErrUnknownSetting = New(KindUnknownSetting, "unknown setting key")
	ErrSensorMissing  = New(KindSensorMissing, "metrics sensor unavailable")
)
