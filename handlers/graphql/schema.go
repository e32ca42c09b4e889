package graphHandler

import (
	"errors"
	"time"

	"task-server/apperr"
	"task-server/auth"
	"task-server/entities"
	"task-server/metrics"
	"task-server/repositories"
	"task-server/usecases"

	"github.com/graphql-go/graphql"
	"github.com/rs/zerolog"
)

const surface = "graph"

type schemaBuilder struct {
	repo   repositories.TaskRepository
	uc     *usecases.AuthUseCase
	cookie auth.CookieOptions
	log    zerolog.Logger
}

var userType = graphql.NewObject(graphql.ObjectConfig{
	Name: "User",
	Fields: graphql.Fields{
		"id":        &graphql.Field{Type: graphql.NewNonNull(graphql.ID)},
		"username":  &graphql.Field{Type: graphql.NewNonNull(graphql.String)},
		"createdAt": &graphql.Field{Type: graphql.String},
	},
})

var taskType = graphql.NewObject(graphql.ObjectConfig{
	Name: "Task",
	Fields: graphql.Fields{
		"id":         &graphql.Field{Type: graphql.NewNonNull(graphql.ID)},
		"title":      &graphql.Field{Type: graphql.NewNonNull(graphql.String)},
		"dueDate":    &graphql.Field{Type: graphql.String},
		"attachment": &graphql.Field{Type: graphql.String},
		"completed":  &graphql.Field{Type: graphql.NewNonNull(graphql.Boolean)},
		"createdAt":  &graphql.Field{Type: graphql.NewNonNull(graphql.String)},
		"userId":     &graphql.Field{Type: graphql.NewNonNull(graphql.ID)},
	},
})

var authPayloadType = graphql.NewObject(graphql.ObjectConfig{
	Name: "AuthPayload",
	Fields: graphql.Fields{
		"user":    &graphql.Field{Type: graphql.NewNonNull(userType)},
		"message": &graphql.Field{Type: graphql.String},
	},
})

// NewSchema builds the query/mutation schema over the task store and the auth flows.
func NewSchema(repo repositories.TaskRepository, uc *usecases.AuthUseCase, cookie auth.CookieOptions, log zerolog.Logger) (graphql.Schema, error) {
	b := &schemaBuilder{repo: repo, uc: uc, cookie: cookie, log: log}

	credentials := graphql.FieldConfigArgument{
		"username": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
		"password": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
	}
	byID := graphql.FieldConfigArgument{
		"id": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.ID)},
	}

	query := graphql.NewObject(graphql.ObjectConfig{
		Name: "Query",
		Fields: graphql.Fields{
			"me":    &graphql.Field{Type: userType, Resolve: b.guard(b.me)},
			"tasks": &graphql.Field{Type: graphql.NewNonNull(graphql.NewList(graphql.NewNonNull(taskType))), Resolve: b.guard(b.tasks)},
			"task":  &graphql.Field{Type: taskType, Args: byID, Resolve: b.guard(b.task)},
		},
	})

	mutation := graphql.NewObject(graphql.ObjectConfig{
		Name: "Mutation",
		Fields: graphql.Fields{
			"register": &graphql.Field{Type: graphql.NewNonNull(authPayloadType), Args: credentials, Resolve: b.guard(b.register)},
			"login":    &graphql.Field{Type: graphql.NewNonNull(authPayloadType), Args: credentials, Resolve: b.guard(b.login)},
			"logout":   &graphql.Field{Type: graphql.NewNonNull(graphql.Boolean), Resolve: b.guard(b.logout)},
			"createTask": &graphql.Field{
				Type: graphql.NewNonNull(taskType),
				Args: graphql.FieldConfigArgument{
					"title":   &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
					"dueDate": &graphql.ArgumentConfig{Type: graphql.String},
				},
				Resolve: b.guard(b.createTask),
			},
			"toggleTask": &graphql.Field{Type: graphql.NewNonNull(taskType), Args: byID, Resolve: b.guard(b.toggleTask)},
			"deleteTask": &graphql.Field{Type: graphql.NewNonNull(graphql.Boolean), Args: byID, Resolve: b.guard(b.deleteTask)},
		},
	})

	return graphql.NewSchema(graphql.SchemaConfig{Query: query, Mutation: mutation})
}

// guard converts resolver failures and panics into coded field errors.
func (b *schemaBuilder) guard(fn graphql.FieldResolveFn) graphql.FieldResolveFn {
	return func(p graphql.ResolveParams) (out interface{}, err error) {
		defer func() {
			if r := recover(); r != nil {
				b.log.Error().Interface("panic", r).Str("field", p.Info.FieldName).Msg("resolver panic")
				out, err = nil, fieldError{kind: apperr.InternalFault}
			}
		}()
		out, err = fn(p)
		if err != nil {
			if apperr.KindOf(err) == apperr.InternalFault {
				b.log.Error().Err(err).Str("field", p.Info.FieldName).Msg("internal fault")
			}
			return nil, toFieldError(err)
		}
		return out, nil
	}
}

func record(op string, err error) {
	code := "OK"
	if err != nil {
		code = apperr.KindOf(err).Code()
	}
	metrics.RecordTaskOp(surface, op, code)
}

func (b *schemaBuilder) me(p graphql.ResolveParams) (interface{}, error) {
	principal, err := principalFrom(p.Context)
	if err != nil {
		return nil, err
	}
	user, err := b.uc.Me(principal)
	if err != nil || user == nil {
		return nil, err
	}
	return userView(user), nil
}

func (b *schemaBuilder) tasks(p graphql.ResolveParams) (interface{}, error) {
	principal, err := principalFrom(p.Context)
	if err != nil {
		return nil, err
	}
	tasks, err := b.repo.List(principal)
	record("list", err)
	if err != nil {
		return nil, err
	}
	out := make([]map[string]interface{}, 0, len(tasks))
	for _, t := range tasks {
		out = append(out, taskView(t))
	}
	return out, nil
}

func (b *schemaBuilder) task(p graphql.ResolveParams) (interface{}, error) {
	principal, err := principalFrom(p.Context)
	if err != nil {
		return nil, err
	}
	id, _ := p.Args["id"].(string)
	t, err := b.repo.Get(principal, id)
	record("get", err)
	if errors.Is(err, apperr.ErrTaskNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return taskView(t), nil
}

func (b *schemaBuilder) createTask(p graphql.ResolveParams) (interface{}, error) {
	principal, err := principalFrom(p.Context)
	if err != nil {
		return nil, err
	}
	in := entities.TaskInput{}
	in.Title, _ = p.Args["title"].(string)
	if due, ok := p.Args["dueDate"].(string); ok {
		in.DueDate = &due
	}
	t, err := b.repo.Create(principal, in)
	record("create", err)
	if err != nil {
		return nil, err
	}
	return taskView(t), nil
}

func (b *schemaBuilder) toggleTask(p graphql.ResolveParams) (interface{}, error) {
	principal, err := principalFrom(p.Context)
	if err != nil {
		return nil, err
	}
	id, _ := p.Args["id"].(string)
	t, err := b.repo.Toggle(principal, id)
	record("toggle", err)
	if err != nil {
		return nil, err
	}
	return taskView(t), nil
}

func (b *schemaBuilder) deleteTask(p graphql.ResolveParams) (interface{}, error) {
	principal, err := principalFrom(p.Context)
	if err != nil {
		return nil, err
	}
	id, _ := p.Args["id"].(string)
	err = b.repo.Delete(principal, id)
	record("delete", err)
	if err != nil {
		return nil, err
	}
	return true, nil
}

func (b *schemaBuilder) register(p graphql.ResolveParams) (interface{}, error) {
	username, _ := p.Args["username"].(string)
	password, _ := p.Args["password"].(string)
	user, token, err := b.uc.Register(username, password)
	metrics.RecordAuthAttempt("register", err == nil)
	if err != nil {
		return nil, err
	}
	if w := writerFrom(p.Context); w != nil {
		b.cookie.Set(w, token)
	}
	return map[string]interface{}{"user": userView(user), "message": "registration successful"}, nil
}

func (b *schemaBuilder) login(p graphql.ResolveParams) (interface{}, error) {
	username, _ := p.Args["username"].(string)
	password, _ := p.Args["password"].(string)
	user, token, err := b.uc.Login(username, password)
	metrics.RecordAuthAttempt("login", err == nil)
	if err != nil {
		return nil, err
	}
	if w := writerFrom(p.Context); w != nil {
		b.cookie.Set(w, token)
	}
	return map[string]interface{}{"user": userView(user), "message": "login successful"}, nil
}

func (b *schemaBuilder) logout(p graphql.ResolveParams) (interface{}, error) {
	if w := writerFrom(p.Context); w != nil {
		b.cookie.Clear(w)
	}
	return true, nil
}

func userView(u *entities.User) map[string]interface{} {
	return map[string]interface{}{
		"id":        u.ID,
		"username":  u.Username,
		"createdAt": u.CreatedAt.UTC().Format(time.RFC3339Nano),
	}
}

func taskView(t entities.Task) map[string]interface{} {
	v := map[string]interface{}{
		"id":         t.ID,
		"title":      t.Title,
		"dueDate":    nil,
		"attachment": nil,
		"completed":  t.Completed,
		"createdAt":  t.CreatedAt.UTC().Format(time.RFC3339Nano),
		"userId":     t.UserID,
	}
	if t.DueDate != nil {
		v["dueDate"] = *t.DueDate
	}
	if t.Attachment != nil {
		v["attachment"] = *t.Attachment
	}
	return v
}
