package graphHandler

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"task-server/apperr"
	"task-server/auth"
	"task-server/entities"
	"task-server/repositories"
	"task-server/usecases"

	"github.com/gin-gonic/gin"
	"github.com/graphql-go/graphql"
	"github.com/graphql-go/graphql/language/ast"
	"github.com/graphql-go/graphql/language/parser"
	"github.com/rs/zerolog"
)

type Handler struct {
	schema graphql.Schema
	authn  *auth.Authenticator
	cookie auth.CookieOptions
	log    zerolog.Logger
}

func NewHandler(repo repositories.TaskRepository, uc *usecases.AuthUseCase, authn *auth.Authenticator, cookie auth.CookieOptions, log zerolog.Logger) (*Handler, error) {
	schema, err := NewSchema(repo, uc, cookie, log)
	if err != nil {
		return nil, err
	}
	return &Handler{schema: schema, authn: authn, cookie: cookie, log: log}, nil
}

type queryReq struct {
	Query         string                 `json:"query"`
	OperationName string                 `json:"operationName"`
	Variables     map[string]interface{} `json:"variables"`
}

// requestState is resolved once per request, before execution starts.
type requestState struct {
	principal entities.Principal
	authErr   error
	w         http.ResponseWriter
}

type stateKey struct{}

func principalFrom(ctx context.Context) (entities.Principal, error) {
	st, ok := ctx.Value(stateKey{}).(*requestState)
	if !ok {
		return entities.Principal{}, apperr.ErrUnauthenticated
	}
	return st.principal, st.authErr
}

func writerFrom(ctx context.Context) http.ResponseWriter {
	st, ok := ctx.Value(stateKey{}).(*requestState)
	if !ok {
		return nil
	}
	return st.w
}

// Serve handles GET and POST /graphql
func (h *Handler) Serve(c *gin.Context) {
	var req queryReq
	if c.Request.Method == http.MethodGet {
		req.Query = c.Query("query")
		req.OperationName = c.Query("operationName")
		if vars := c.Query("variables"); vars != "" {
			if err := json.Unmarshal([]byte(vars), &req.Variables); err != nil {
				badRequest(c, "variables must be a JSON object")
				return
			}
		}
	} else if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		badRequest(c, "query is required")
		return
	}
	if c.Request.Method == http.MethodGet && !readOnly(req.Query) {
		badRequest(c, "only query operations are allowed over GET")
		return
	}

	token, _ := auth.CookieCarrier{Request: c.Request, Name: h.cookie.Name}.Token()
	ctx := auth.WithCookieToken(c.Request.Context(), token)
	p, authErr := h.authn.Authenticate(auth.QueryContextCarrier{Ctx: ctx})
	ctx = context.WithValue(ctx, stateKey{}, &requestState{principal: p, authErr: authErr, w: c.Writer})

	result := graphql.Do(graphql.Params{
		Schema:         h.schema,
		RequestString:  req.Query,
		VariableValues: req.Variables,
		OperationName:  req.OperationName,
		Context:        ctx,
	})
	if result.HasErrors() {
		h.log.Debug().Int("errors", len(result.Errors)).Msg("graph request finished with errors")
	}
	c.JSON(http.StatusOK, result)
}

// readOnly reports whether every operation in the document is a query.
// Documents that fail to parse are left for graphql.Do to report.
func readOnly(query string) bool {
	doc, err := parser.Parse(parser.ParseParams{Source: query})
	if err != nil {
		return true
	}
	for _, def := range doc.Definitions {
		if op, ok := def.(*ast.OperationDefinition); ok && op.Operation != ast.OperationTypeQuery {
			return false
		}
	}
	return true
}

func badRequest(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
		"errors": []gin.H{{"message": "INVALID_INPUT", "extensions": gin.H{"code": "INVALID_INPUT", "detail": msg}}},
	})
}
