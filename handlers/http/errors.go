package httpHandler

import (
	"task-server/apperr"
	"task-server/metrics"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

const surface = "rest"

// writeError maps err onto its kind's status and aborts the request.
func writeError(c *gin.Context, log zerolog.Logger, err error) {
	kind := apperr.KindOf(err)
	if kind == apperr.InternalFault {
		log.Error().Err(err).Str("path", c.FullPath()).Msg("internal fault")
	}
	c.AbortWithStatusJSON(kind.HTTPStatus(), gin.H{
		"error": apperr.PublicMessage(err),
		"code":  kind.Code(),
	})
}

func recordOp(op string, err error) {
	code := "OK"
	if err != nil {
		code = apperr.KindOf(err).Code()
	}
	metrics.RecordTaskOp(surface, op, code)
}
