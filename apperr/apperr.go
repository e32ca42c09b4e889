package apperr

import (
	"errors"
	"net/http"
)

// Kind is the closed set of failures every surface maps from.
type Kind int

const (
	InternalFault Kind = iota
	Unauthenticated
	InvalidToken
	TitleRequired
	TaskNotFound

	// Credential-flow kinds, raised only by register/login.
	InvalidInput
	UserExists
	InvalidCredentials
)

var codes = map[Kind]string{
	InternalFault:      "INTERNAL",
	Unauthenticated:    "UNAUTHENTICATED",
	InvalidToken:       "INVALID_TOKEN",
	TitleRequired:      "TITLE_REQUIRED",
	TaskNotFound:       "TASK_NOT_FOUND",
	InvalidInput:       "INVALID_INPUT",
	UserExists:         "USER_EXISTS",
	InvalidCredentials: "INVALID_CREDENTIALS",
}

var messages = map[Kind]string{
	InternalFault:      "internal server error",
	Unauthenticated:    "authentication required",
	InvalidToken:       "invalid or expired token",
	TitleRequired:      "task title is required",
	TaskNotFound:       "task not found",
	InvalidInput:       "invalid input",
	UserExists:         "a user with this username already exists",
	InvalidCredentials: "invalid username or password",
}

// Code returns the wire code used by the graph and session surfaces.
func (k Kind) Code() string {
	if c, ok := codes[k]; ok {
		return c
	}
	return codes[InternalFault]
}

func (k Kind) String() string { return k.Code() }

// HTTPStatus returns the status code the request/response surface uses.
func (k Kind) HTTPStatus() int {
	switch k {
	case Unauthenticated, InvalidToken, InvalidCredentials:
		return http.StatusUnauthorized
	case TitleRequired, InvalidInput:
		return http.StatusBadRequest
	case TaskNotFound:
		return http.StatusNotFound
	case UserExists:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// Error is a failure tagged with its Kind. Err, when set, carries the cause.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = messages[e.Kind]
	}
	if e.Err != nil {
		return msg + ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error of the same Kind, so sentinels work with errors.Is.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

var (
	ErrUnauthenticated    = &Error{Kind: Unauthenticated}
	ErrInvalidToken       = &Error{Kind: InvalidToken}
	ErrTitleRequired      = &Error{Kind: TitleRequired}
	ErrTaskNotFound       = &Error{Kind: TaskNotFound}
	ErrUserExists         = &Error{Kind: UserExists}
	ErrInvalidCredentials = &Error{Kind: InvalidCredentials}
)

// New builds an error of the given kind with a custom message.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap tags cause with kind.
func Wrap(kind Kind, cause error) *Error {
	return &Error{Kind: kind, Err: cause}
}

// KindOf reports the Kind of err. Anything outside the taxonomy is an InternalFault.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return InternalFault
}

// PublicMessage is the text safe to show a client. Internal causes are never exposed.
func PublicMessage(err error) string {
	var e *Error
	if !errors.As(err, &e) || e.Kind == InternalFault {
		return messages[InternalFault]
	}
	if e.Message != "" {
		return e.Message
	}
	return messages[e.Kind]
}
