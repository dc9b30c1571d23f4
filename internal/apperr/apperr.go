// Package apperr defines the failure kinds surfaced by the audio, analysis,
// transcription and recognition pipelines.
//
// Orchestrators never let a fault escape as a panic; every failure reaches the
// caller as an *Error carrying one of the kinds below so front-ends can render
// a uniform failure state.
package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies a failure.
type Kind int

const (
	Unknown Kind = iota
	NotFound
	DecodeError
	InvalidAudio
	ModelError
	RecognitionUnintelligible
	RecognitionRequestError
	PersistError
)

var kindNames = map[Kind]string{
	Unknown:                   "unknown",
	NotFound:                  "not_found",
	DecodeError:               "decode_error",
	InvalidAudio:              "invalid_audio",
	ModelError:                "model_error",
	RecognitionUnintelligible: "recognition_unintelligible",
	RecognitionRequestError:   "recognition_request_error",
	PersistError:              "persist_error",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Error is a classified failure. Msg, when set, replaces the generated
// message entirely; callers rely on a few exact strings.
type Error struct {
	Kind Kind
	Op   string
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Msg != "" {
		return e.Msg
	}
	switch {
	case e.Op != "" && e.Err != nil:
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	case e.Op != "":
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	default:
		return e.Kind.String()
	}
}

func (e *Error) Unwrap() error { return e.Err }

// New returns an *Error of the given kind wrapping err.
func New(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// Message returns an *Error whose Error() is exactly msg.
func Message(kind Kind, msg string, err error) *Error {
	return &Error{Kind: kind, Msg: msg, Err: err}
}

// KindOf reports the kind of the first *Error in err's chain, or Unknown.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Unknown
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// Ensure classifies err as kind unless it already carries a kind.
func Ensure(kind Kind, op string, err error) error {
	if err == nil {
		return nil
	}
	if KindOf(err) != Unknown {
		return err
	}
	return New(kind, op, err)
}
