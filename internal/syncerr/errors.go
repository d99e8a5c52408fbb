// Package syncerr defines the error taxonomy shared by the PIM client and the import engine.
//
// Every component returns *Error values (possibly wrapped). Callers branch on the kind with
// errors.Is against the exported sentinels:
//
//	if errors.Is(err, syncerr.ErrBusy) { ... }
package syncerr

import (
	"errors"
	"fmt"
)

type Kind string

const (
	KindAuth         Kind = "auth"
	KindNotVerified  Kind = "not_verified"
	KindBusy         Kind = "busy"
	KindNetwork      Kind = "network"
	KindTypeMismatch Kind = "type_mismatch"
	KindStore        Kind = "store"
	KindAsset        Kind = "asset"
	KindInvalid      Kind = "invalid"
)

var (
	ErrAuth         = &Error{Kind: KindAuth}
	ErrNotVerified  = &Error{Kind: KindNotVerified}
	ErrBusy         = &Error{Kind: KindBusy}
	ErrNetwork      = &Error{Kind: KindNetwork}
	ErrTypeMismatch = &Error{Kind: KindTypeMismatch}
	ErrStore        = &Error{Kind: KindStore}
	ErrAsset        = &Error{Kind: KindAsset}
	ErrInvalid      = &Error{Kind: KindInvalid}
)

type Error struct {
	Kind    Kind
	Code    string
	Message string
	Err     error
}

func New(kind Kind, code, message string, err error) *Error {
	return &Error{Kind: kind, Code: code, Message: message, Err: err}
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = string(e.Kind)
	}
	if e.Code != "" {
		msg = fmt.Sprintf("%s: %s", e.Code, msg)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches on Kind, and on Code when the target carries one.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Kind != e.Kind {
		return false
	}
	return t.Code == "" || t.Code == e.Code
}

func Auth(code, message string, err error) *Error {
	return New(KindAuth, code, message, err)
}

func NotVerified(code, message string, err error) *Error {
	return New(KindNotVerified, code, message, err)
}

func Busy(code, message string) *Error {
	return New(KindBusy, code, message, nil)
}

func Network(code, message string, err error) *Error {
	return New(KindNetwork, code, message, err)
}

func TypeMismatch(code, message string, err error) *Error {
	return New(KindTypeMismatch, code, message, err)
}

func Store(code, message string, err error) *Error {
	return New(KindStore, code, message, err)
}

func Asset(code, message string, err error) *Error {
	return New(KindAsset, code, message, err)
}

func Invalid(code, message string, err error) *Error {
	return New(KindInvalid, code, message, err)
}

// KindOf returns the kind of the first *Error in err's chain, or "" if there is none.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// CodeOf returns the code of the first *Error in err's chain, falling back to "error".
func CodeOf(err error) string {
	var e *Error
	if errors.As(err, &e) && e.Code != "" {
		return e.Code
	}
	if err == nil {
		return ""
	}
	return "error"
}
