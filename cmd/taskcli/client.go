package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"task-server/entities"
)

// apiError is the decoded {"error", "code"} body of a failed call.
type apiError struct {
	Status  int
	Code    string
	Message string
}

func (e *apiError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("server returned %d", e.Status)
	}
	return e.Message
}

// apiClient talks to the REST surface, keeping the session cookie in a jar.
type apiClient struct {
	base string
	http *http.Client
}

func newAPIClient(base string) (*apiClient, error) {
	if _, err := url.Parse(base); err != nil {
		return nil, fmt.Errorf("invalid server url: %w", err)
	}
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}
	return &apiClient{
		base: strings.TrimRight(base, "/"),
		http: &http.Client{Timeout: 10 * time.Second, Jar: jar},
	}, nil
}

func (c *apiClient) login(username, password string) error {
	return c.do(http.MethodPost, "/api/auth/login", map[string]string{"username": username, "password": password}, nil, http.StatusOK)
}

func (c *apiClient) register(username, password string) error {
	return c.do(http.MethodPost, "/api/auth/register", map[string]string{"username": username, "password": password}, nil, http.StatusCreated)
}

func (c *apiClient) list() ([]entities.Task, error) {
	var tasks []entities.Task
	err := c.do(http.MethodGet, "/api/tasks", nil, &tasks, http.StatusOK)
	return tasks, err
}

func (c *apiClient) create(title, dueDate string) (entities.Task, error) {
	body := map[string]interface{}{"title": title}
	if dueDate != "" {
		body["dueDate"] = dueDate
	}
	var task entities.Task
	err := c.do(http.MethodPost, "/api/tasks", body, &task, http.StatusCreated)
	return task, err
}

func (c *apiClient) toggle(id string) (entities.Task, error) {
	var task entities.Task
	err := c.do(http.MethodPut, "/api/tasks/"+url.PathEscape(id)+"/toggle", nil, &task, http.StatusOK)
	return task, err
}

func (c *apiClient) remove(id string) error {
	return c.do(http.MethodDelete, "/api/tasks/"+url.PathEscape(id), nil, nil, http.StatusNoContent)
}

func (c *apiClient) do(method, path string, body, out interface{}, want int) error {
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return err
		}
		r = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, c.base+path, r)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("server not reachable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != want {
		apiErr := &apiError{Status: resp.StatusCode}
		var payload struct {
			Error string `json:"error"`
			Code  string `json:"code"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&payload); err == nil {
			apiErr.Code, apiErr.Message = payload.Code, payload.Error
		}
		return apiErr
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
