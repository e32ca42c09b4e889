package graphHandler

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"task-server/auth"
	"task-server/db"
	"task-server/entities"
	"task-server/repositories"
	"task-server/usecases"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"
)

const cookieName = "jwt"

type fixture struct {
	router *gin.Engine
	repo   repositories.TaskRepository
	authn  *auth.Authenticator
}

type gqlResponse struct {
	Data   map[string]json.RawMessage `json:"data"`
	Errors []struct {
		Message    string                 `json:"message"`
		Extensions map[string]interface{} `json:"extensions"`
	} `json:"errors"`
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	database, err := db.Connect(db.MemoryDSN, zerolog.Nop())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { database.Close() })

	f := &fixture{
		repo:  repositories.NewMemTaskRepository(),
		authn: auth.NewAuthenticator(auth.NewJWTCodec("test-secret"), auth.DefaultTTL),
	}
	uc := usecases.NewAuthUseCase(repositories.NewUserSqliteRepository(database), auth.NewBcryptHasher(bcrypt.MinCost), f.authn)
	h, err := NewHandler(f.repo, uc, f.authn, auth.CookieOptions{Name: cookieName, TTL: 24 * time.Hour}, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewHandler() error = %v", err)
	}
	f.router = gin.New()
	f.router.POST("/graphql", h.Serve)
	f.router.GET("/graphql", h.Serve)
	return f
}

func (f *fixture) token(t *testing.T, id, name string) string {
	t.Helper()
	tok, err := f.authn.Issue(entities.User{ID: id, Username: name})
	if err != nil {
		t.Fatal(err)
	}
	return tok
}

func (f *fixture) exec(t *testing.T, token, query string, vars map[string]interface{}) (*httptest.ResponseRecorder, gqlResponse) {
	t.Helper()
	b, _ := json.Marshal(map[string]interface{}{"query": query, "variables": vars})
	req := httptest.NewRequest(http.MethodPost, "/graphql", bytes.NewReader(b))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.AddCookie(&http.Cookie{Name: cookieName, Value: token})
	}
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)

	var resp gqlResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode %s: %v", w.Body.String(), err)
	}
	return w, resp
}

func firstCode(resp gqlResponse) string {
	if len(resp.Errors) == 0 {
		return ""
	}
	return resp.Errors[0].Message
}

const createMutation = `mutation($title: String!, $due: String) {
	createTask(title: $title, dueDate: $due) { id title dueDate completed userId createdAt }
}`

func TestCreateListToggleDelete(t *testing.T) {
	f := newFixture(t)
	tok := f.token(t, "u-a", "alice")

	w, resp := f.exec(t, tok, createMutation, map[string]interface{}{"title": "  Pay rent ", "due": "2025-02-01"})
	if w.Code != http.StatusOK || len(resp.Errors) != 0 {
		t.Fatalf("create: %d %s", w.Code, w.Body.String())
	}
	var task struct {
		ID        string  `json:"id"`
		Title     string  `json:"title"`
		DueDate   *string `json:"dueDate"`
		Completed bool    `json:"completed"`
		UserID    string  `json:"userId"`
		CreatedAt string  `json:"createdAt"`
	}
	json.Unmarshal(resp.Data["createTask"], &task)
	if task.Title != "Pay rent" || task.UserID != "u-a" || task.DueDate == nil || *task.DueDate != "2025-02-01" {
		t.Errorf("created = %+v", task)
	}
	if _, err := time.Parse(time.RFC3339, task.CreatedAt); err != nil {
		t.Errorf("createdAt %q: %v", task.CreatedAt, err)
	}

	_, resp = f.exec(t, tok, `mutation($id: ID!) { toggleTask(id: $id) { id completed } }`, map[string]interface{}{"id": task.ID})
	if !bytes.Contains(resp.Data["toggleTask"], []byte(`"completed":true`)) {
		t.Errorf("toggle = %s", resp.Data["toggleTask"])
	}

	_, resp = f.exec(t, tok, `{ tasks { id completed } task(id: "`+task.ID+`") { title } }`, nil)
	if !bytes.Contains(resp.Data["tasks"], []byte(`"completed":true`)) {
		t.Errorf("tasks = %s", resp.Data["tasks"])
	}
	if !bytes.Contains(resp.Data["task"], []byte(`"Pay rent"`)) {
		t.Errorf("task = %s", resp.Data["task"])
	}

	_, resp = f.exec(t, tok, `mutation($id: ID!) { deleteTask(id: $id) }`, map[string]interface{}{"id": task.ID})
	if string(resp.Data["deleteTask"]) != "true" {
		t.Errorf("deleteTask = %s", resp.Data["deleteTask"])
	}
	_, resp = f.exec(t, tok, `mutation($id: ID!) { deleteTask(id: $id) }`, map[string]interface{}{"id": task.ID})
	if firstCode(resp) != "TASK_NOT_FOUND" {
		t.Errorf("second delete errors = %+v", resp.Errors)
	}
}

func TestUnauthenticatedLeavesStoreUnchanged(t *testing.T) {
	f := newFixture(t)

	for _, tok := range []string{"", "garbage"} {
		w, resp := f.exec(t, tok, createMutation, map[string]interface{}{"title": "sneaky"})
		if w.Code != http.StatusOK {
			t.Errorf("status = %d", w.Code)
		}
		want := "UNAUTHENTICATED"
		if tok != "" {
			want = "INVALID_TOKEN"
		}
		if firstCode(resp) != want {
			t.Errorf("token %q: errors = %+v, want %s", tok, resp.Errors, want)
		}
		if resp.Errors[0].Extensions["code"] != want {
			t.Errorf("extensions = %v", resp.Errors[0].Extensions)
		}
	}

	_, resp := f.exec(t, "", `{ tasks { id } }`, nil)
	if firstCode(resp) != "UNAUTHENTICATED" {
		t.Errorf("tasks errors = %+v", resp.Errors)
	}
}

func TestEmptyTitleRejected(t *testing.T) {
	f := newFixture(t)
	tok := f.token(t, "u-a", "alice")

	_, resp := f.exec(t, tok, createMutation, map[string]interface{}{"title": "   "})
	if firstCode(resp) != "TITLE_REQUIRED" {
		t.Errorf("errors = %+v", resp.Errors)
	}
	tasks, _ := f.repo.List(entities.Principal{UserID: "u-a"})
	if len(tasks) != 0 {
		t.Errorf("store has %d tasks", len(tasks))
	}
}

func TestForeignTaskInvisible(t *testing.T) {
	f := newFixture(t)
	owned, _ := f.repo.Create(entities.Principal{UserID: "u-b"}, entities.TaskInput{Title: "bob's"})
	tok := f.token(t, "u-a", "alice")

	_, resp := f.exec(t, tok, `{ task(id: "`+owned.ID+`") { id } }`, nil)
	if len(resp.Errors) != 0 || string(resp.Data["task"]) != "null" {
		t.Errorf("task = %s, errors = %+v", resp.Data["task"], resp.Errors)
	}

	_, resp = f.exec(t, tok, `mutation($id: ID!) { toggleTask(id: $id) { id } }`, map[string]interface{}{"id": owned.ID})
	if firstCode(resp) != "TASK_NOT_FOUND" {
		t.Errorf("errors = %+v", resp.Errors)
	}
	got, _ := f.repo.Get(entities.Principal{UserID: "u-b"}, owned.ID)
	if got.Completed {
		t.Error("foreign toggle changed the task")
	}
}

func TestRegisterLoginSetsCookie(t *testing.T) {
	f := newFixture(t)

	w, resp := f.exec(t, "", `mutation { register(username: "carol", password: "secret1") { message user { id username } } }`, nil)
	if len(resp.Errors) != 0 {
		t.Fatalf("register errors = %+v", resp.Errors)
	}
	var cookie *http.Cookie
	for _, c := range w.Result().Cookies() {
		if c.Name == cookieName {
			cookie = c
		}
	}
	if cookie == nil || !cookie.HttpOnly {
		t.Fatalf("session cookie = %+v", cookie)
	}

	_, resp = f.exec(t, cookie.Value, `{ me { username } }`, nil)
	if !bytes.Contains(resp.Data["me"], []byte(`"carol"`)) {
		t.Errorf("me = %s", resp.Data["me"])
	}

	_, resp = f.exec(t, "", `mutation { register(username: "carol", password: "secret1") { message } }`, nil)
	if firstCode(resp) != "USER_EXISTS" {
		t.Errorf("duplicate register errors = %+v", resp.Errors)
	}

	_, resp = f.exec(t, "", `mutation { register(username: "ab", password: "secret1") { message } }`, nil)
	if firstCode(resp) != "INVALID_INPUT" || resp.Errors[0].Extensions["detail"] == nil {
		t.Errorf("short username errors = %+v", resp.Errors)
	}

	_, resp = f.exec(t, "", `mutation { login(username: "carol", password: "wrong!!") { message } }`, nil)
	if firstCode(resp) != "INVALID_CREDENTIALS" {
		t.Errorf("bad login errors = %+v", resp.Errors)
	}

	_, resp = f.exec(t, "", `mutation { logout }`, nil)
	if string(resp.Data["logout"]) != "true" {
		t.Errorf("logout = %s", resp.Data["logout"])
	}
}

func TestGetQuery(t *testing.T) {
	f := newFixture(t)
	f.repo.Create(entities.Principal{UserID: "u-a"}, entities.TaskInput{Title: "via get"})

	req := httptest.NewRequest(http.MethodGet, "/graphql?query="+url.QueryEscape(`{ tasks { title } }`), nil)
	req.AddCookie(&http.Cookie{Name: cookieName, Value: f.token(t, "u-a", "alice")})
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	if w.Code != http.StatusOK || !bytes.Contains(w.Body.Bytes(), []byte("via get")) {
		t.Errorf("GET /graphql = %d %s", w.Code, w.Body.String())
	}
}

func TestGetRejectsMutations(t *testing.T) {
	f := newFixture(t)
	tok := f.token(t, "u-a", "alice")

	for _, q := range []string{
		`mutation { createTask(title: "via get") { id } }`,
		`query q { tasks { id } } mutation m { createTask(title: "via get") { id } }`,
	} {
		req := httptest.NewRequest(http.MethodGet, "/graphql?query="+url.QueryEscape(q)+"&operationName=m", nil)
		req.AddCookie(&http.Cookie{Name: cookieName, Value: tok})
		w := httptest.NewRecorder()
		f.router.ServeHTTP(w, req)

		if w.Code != http.StatusBadRequest || !bytes.Contains(w.Body.Bytes(), []byte("INVALID_INPUT")) {
			t.Errorf("GET %q = %d %s", q, w.Code, w.Body.String())
		}
	}

	tasks, _ := f.repo.List(entities.Principal{UserID: "u-a"})
	if len(tasks) != 0 {
		t.Errorf("GET mutation created %d tasks", len(tasks))
	}

	// the same mutation over POST still works
	_, resp := f.exec(t, tok, `mutation { createTask(title: "via post") { id } }`, nil)
	if len(resp.Errors) != 0 {
		t.Errorf("POST mutation errors = %+v", resp.Errors)
	}
}

func TestMissingQueryIsBadRequest(t *testing.T) {
	f := newFixture(t)
	w, _ := f.exec(t, "", "  ", nil)
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d", w.Code)
	}
}
