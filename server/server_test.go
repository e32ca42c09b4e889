package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"task-server/confs"
	"task-server/db"
	"task-server/entities"
	"task-server/ws"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

func newTestServer(t *testing.T, rate string) *httptest.Server {
	t.Helper()
	gin.SetMode(gin.TestMode)

	database, err := db.Connect(db.MemoryDSN, zerolog.Nop())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { database.Close() })

	cfg := &confs.Config{
		Port:          "0",
		Env:           "test",
		JWTSecret:     "test-secret",
		TokenTTL:      24 * time.Hour,
		CookieName:    "jwt",
		UploadsDir:    t.TempDir(),
		AuthRateLimit: rate,
		BcryptCost:    4,
	}
	s, err := NewServer(cfg, database, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewServer() error = %v", err)
	}
	srv := httptest.NewServer(s.Handler())
	t.Cleanup(srv.Close)
	return srv
}

func call(t *testing.T, method, url, token string, body interface{}) *http.Response {
	t.Helper()
	var b []byte
	if body != nil {
		b, _ = json.Marshal(body)
	}
	req, err := http.NewRequest(method, url, bytes.NewReader(b))
	if err != nil {
		t.Fatal(err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.AddCookie(&http.Cookie{Name: "jwt", Value: token})
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func register(t *testing.T, base, username string) string {
	t.Helper()
	resp := call(t, http.MethodPost, base+"/api/auth/register", "", map[string]string{"username": username, "password": "secret1"})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("register status = %d", resp.StatusCode)
	}
	for _, c := range resp.Cookies() {
		if c.Name == "jwt" {
			return c.Value
		}
	}
	t.Fatal("register set no session cookie")
	return ""
}

func graph(t *testing.T, base, token, query string, vars map[string]interface{}) map[string]interface{} {
	t.Helper()
	resp := call(t, http.MethodPost, base+"/graphql", token, map[string]interface{}{"query": query, "variables": vars})
	var out map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatal(err)
	}
	return out
}

func dialSession(base, token string) (*websocket.Conn, *http.Response, error) {
	url := "ws" + strings.TrimPrefix(base, "http") + "/ws"
	if token != "" {
		url += "?token=" + token
	}
	return websocket.DefaultDialer.Dial(url, nil)
}

func openingList(t *testing.T, c *websocket.Conn) []entities.Task {
	t.Helper()
	c.SetReadDeadline(time.Now().Add(2 * time.Second))
	var env ws.Envelope
	if err := c.ReadJSON(&env); err != nil {
		t.Fatalf("read: %v", err)
	}
	if env.Event != ws.EventList {
		t.Fatalf("first event = %q", env.Event)
	}
	var tasks []entities.Task
	if err := json.Unmarshal(env.Data, &tasks); err != nil {
		t.Fatal(err)
	}
	return tasks
}

func TestCrossSurfaceScenario(t *testing.T) {
	srv := newTestServer(t, "")
	token := register(t, srv.URL, "alice")

	resp := call(t, http.MethodPost, srv.URL+"/api/tasks", token, map[string]string{"title": "Buy milk"})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("REST create status = %d", resp.StatusCode)
	}
	var created entities.Task
	json.NewDecoder(resp.Body).Decode(&created)

	out := graph(t, srv.URL, token, `mutation($id: ID!) { toggleTask(id: $id) { completed } }`, map[string]interface{}{"id": created.ID})
	if out["errors"] != nil {
		t.Fatalf("graph toggle errors = %v", out["errors"])
	}

	conn, _, err := dialSession(srv.URL, token)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	tasks := openingList(t, conn)
	if len(tasks) != 1 || tasks[0].ID != created.ID || !tasks[0].Completed {
		t.Errorf("opening list = %+v", tasks)
	}
}

func TestOpenChannelNotPushedByOtherSurfaces(t *testing.T) {
	srv := newTestServer(t, "")
	token := register(t, srv.URL, "alice")

	conn, _, err := dialSession(srv.URL, token)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	if got := openingList(t, conn); len(got) != 0 {
		t.Fatalf("opening list = %+v", got)
	}

	resp := call(t, http.MethodPost, srv.URL+"/api/tasks", token, map[string]string{"title": "from rest"})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("REST create status = %d", resp.StatusCode)
	}
	var created entities.Task
	json.NewDecoder(resp.Body).Decode(&created)

	out := graph(t, srv.URL, token, `mutation($id: ID!) { toggleTask(id: $id) { completed } }`, map[string]interface{}{"id": created.ID})
	if out["errors"] != nil {
		t.Fatalf("graph toggle errors = %v", out["errors"])
	}

	conn.SetReadDeadline(time.Now().Add(300 * time.Millisecond))
	_, msg, err := conn.ReadMessage()
	if err == nil {
		t.Fatalf("open channel received %s after a REST/graph mutation", msg)
	}
	var ne net.Error
	if !errors.As(err, &ne) || !ne.Timeout() {
		t.Errorf("read error = %v, want a timeout", err)
	}
}

func TestUnauthenticatedEverySurface(t *testing.T) {
	srv := newTestServer(t, "")

	resp := call(t, http.MethodPost, srv.URL+"/api/tasks", "", map[string]string{"title": "x"})
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("REST status = %d", resp.StatusCode)
	}

	out := graph(t, srv.URL, "", `mutation { createTask(title: "x") { id } }`, nil)
	errs, _ := out["errors"].([]interface{})
	if len(errs) == 0 || errs[0].(map[string]interface{})["message"] != "UNAUTHENTICATED" {
		t.Errorf("graph errors = %v", out["errors"])
	}

	_, hs, err := dialSession(srv.URL, "")
	if err == nil || hs == nil || hs.StatusCode != http.StatusUnauthorized {
		t.Errorf("handshake err = %v, resp = %v", err, hs)
	}

	token := register(t, srv.URL, "bob")
	resp = call(t, http.MethodGet, srv.URL+"/api/tasks", token, nil)
	var tasks []entities.Task
	json.NewDecoder(resp.Body).Decode(&tasks)
	if len(tasks) != 0 {
		t.Errorf("store changed by unauthenticated calls: %+v", tasks)
	}
}

func TestOwnersIsolatedAcrossSurfaces(t *testing.T) {
	srv := newTestServer(t, "")
	alice := register(t, srv.URL, "alice")
	bob := register(t, srv.URL, "bob")

	resp := call(t, http.MethodPost, srv.URL+"/api/tasks", alice, map[string]string{"title": "private"})
	var task entities.Task
	json.NewDecoder(resp.Body).Decode(&task)

	resp = call(t, http.MethodPut, srv.URL+"/api/tasks/"+task.ID+"/toggle", bob, nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("bob REST toggle status = %d", resp.StatusCode)
	}

	out := graph(t, srv.URL, bob, `{ tasks { id } }`, nil)
	data, _ := out["data"].(map[string]interface{})
	if list, _ := data["tasks"].([]interface{}); len(list) != 0 {
		t.Errorf("bob sees %v", list)
	}

	conn, _, err := dialSession(srv.URL, bob)
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()
	if got := openingList(t, conn); len(got) != 0 {
		t.Errorf("bob's opening list = %+v", got)
	}
}

func TestHealthAndHeaders(t *testing.T) {
	srv := newTestServer(t, "")

	resp := call(t, http.MethodGet, srv.URL+"/health", "", nil)
	if resp.StatusCode != http.StatusOK {
		t.Errorf("health status = %d", resp.StatusCode)
	}
	if resp.Header.Get("X-Frame-Options") != "DENY" {
		t.Errorf("X-Frame-Options = %q", resp.Header.Get("X-Frame-Options"))
	}
	if resp.Header.Get("X-Content-Type-Options") != "nosniff" {
		t.Errorf("X-Content-Type-Options = %q", resp.Header.Get("X-Content-Type-Options"))
	}

	resp = call(t, http.MethodGet, srv.URL+"/metrics", "", nil)
	if resp.StatusCode != http.StatusOK {
		t.Errorf("metrics status = %d", resp.StatusCode)
	}
}

func TestAuthRateLimit(t *testing.T) {
	srv := newTestServer(t, "2-M")

	creds := map[string]string{"username": "nobody", "password": "whatever"}
	for i := 0; i < 2; i++ {
		resp := call(t, http.MethodPost, srv.URL+"/api/auth/login", "", creds)
		if resp.StatusCode != http.StatusUnauthorized {
			t.Fatalf("attempt %d status = %d", i, resp.StatusCode)
		}
	}
	resp := call(t, http.MethodPost, srv.URL+"/api/auth/login", "", creds)
	if resp.StatusCode != http.StatusTooManyRequests {
		t.Errorf("third attempt status = %d, want 429", resp.StatusCode)
	}
}

func TestProductionRequiresCORSOrigins(t *testing.T) {
	gin.SetMode(gin.TestMode)
	t.Cleanup(func() { gin.SetMode(gin.TestMode) })

	database, err := db.Connect(db.MemoryDSN, zerolog.Nop())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { database.Close() })

	cfg := &confs.Config{
		Env:        "production",
		JWTSecret:  "test-secret",
		TokenTTL:   time.Hour,
		CookieName: "jwt",
		UploadsDir: t.TempDir(),
		BcryptCost: 4,
	}
	if _, err := NewServer(cfg, database, zerolog.Nop()); err == nil {
		t.Fatal("NewServer() in production without CORS_ORIGINS succeeded")
	}

	cfg.CORSOrigins = []string{"https://tasks.example"}
	if _, err := NewServer(cfg, database, zerolog.Nop()); err != nil {
		t.Fatalf("NewServer() with origins error = %v", err)
	}
}
