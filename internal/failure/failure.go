// Package failure defines the error kinds a generation request can fail with.
package failure

import (
	"errors"
	"fmt"
)

type Kind int

const (
	KindUnknown Kind = iota
	KindEmptyInput
	KindInvalidScene
	KindAssetMissing
	KindUnsupportedFormat
	KindScriptFormat
	KindSynthesis
)

func (k Kind) String() string {
	switch k {
	case KindEmptyInput:
		return "empty_input"
	case KindInvalidScene:
		return "invalid_scene"
	case KindAssetMissing:
		return "asset_missing"
	case KindUnsupportedFormat:
		return "unsupported_format"
	case KindScriptFormat:
		return "script_format"
	case KindSynthesis:
		return "synthesis"
	default:
		return "unknown"
	}
}

// Error is a structured pipeline error: a kind plus a human message.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error of the same kind, so errors.Is(err, ErrAssetMissing)
// works regardless of message.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Kind == e.Kind
}

// Sentinels for errors.Is.
var (
	ErrEmptyInput        = &Error{Kind: KindEmptyInput, Msg: "empty input"}
	ErrInvalidScene      = &Error{Kind: KindInvalidScene, Msg: "invalid scene"}
	ErrAssetMissing      = &Error{Kind: KindAssetMissing, Msg: "asset missing"}
	ErrUnsupportedFormat = &Error{Kind: KindUnsupportedFormat, Msg: "unsupported format"}
	ErrScriptFormat      = &Error{Kind: KindScriptFormat, Msg: "script format"}
	ErrSynthesis         = &Error{Kind: KindSynthesis, Msg: "synthesis failed"}
)

func EmptyInput(format string, args ...any) error {
	return &Error{Kind: KindEmptyInput, Msg: fmt.Sprintf(format, args...)}
}

func InvalidScene(format string, args ...any) error {
	return &Error{Kind: KindInvalidScene, Msg: fmt.Sprintf(format, args...)}
}

func AssetMissing(path string) error {
	return &Error{Kind: KindAssetMissing, Msg: fmt.Sprintf("file not found: %s", path)}
}

func UnsupportedFormat(path, ext string) error {
	return &Error{Kind: KindUnsupportedFormat, Msg: fmt.Sprintf("unsupported format %q: %s", ext, path)}
}

func ScriptFormat(err error, format string, args ...any) error {
	return &Error{Kind: KindScriptFormat, Msg: fmt.Sprintf(format, args...), Err: err}
}

func Synthesis(err error, format string, args ...any) error {
	return &Error{Kind: KindSynthesis, Msg: fmt.Sprintf(format, args...), Err: err}
}

// KindOf returns the kind of the first *Error in err's chain.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}
