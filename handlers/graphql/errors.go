package graphHandler

import (
	"task-server/apperr"
)

// fieldError is what resolvers hand back to graphql-go. The message is the
// bare code so clients can switch on it; extensions repeat it with detail.
type fieldError struct {
	kind   apperr.Kind
	detail string
}

func (e fieldError) Error() string { return e.kind.Code() }

func (e fieldError) Extensions() map[string]interface{} {
	ext := map[string]interface{}{"code": e.kind.Code()}
	if e.detail != "" {
		ext["detail"] = e.detail
	}
	return ext
}

func toFieldError(err error) fieldError {
	kind := apperr.KindOf(err)
	fe := fieldError{kind: kind}
	if kind == apperr.InvalidInput {
		fe.detail = apperr.PublicMessage(err)
	}
	return fe
}
