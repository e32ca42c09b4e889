package httpHandler

import (
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"task-server/apperr"
	"task-server/entities"
	"task-server/repositories"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

type TaskHandler struct {
	repo       repositories.TaskRepository
	uploadsDir string
	log        zerolog.Logger
}

func NewTaskHandler(repo repositories.TaskRepository, uploadsDir string, log zerolog.Logger) *TaskHandler {
	return &TaskHandler{repo: repo, uploadsDir: uploadsDir, log: log}
}

type createTaskReq struct {
	Title   string  `json:"title"`
	DueDate *string `json:"dueDate"`
}

// ListTasks handles GET /api/tasks
func (h *TaskHandler) ListTasks(c *gin.Context) {
	tasks, err := h.repo.List(principal(c))
	recordOp("list", err)
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, tasks)
}

// CreateTask handles POST /api/tasks
// Accepts JSON {title, dueDate} or a multipart form with an optional "attachment" file.
func (h *TaskHandler) CreateTask(c *gin.Context) {
	var in entities.TaskInput
	var savedPath string

	switch c.ContentType() {
	case "multipart/form-data", "application/x-www-form-urlencoded":
		in.Title = c.PostForm("title")
		if due, ok := c.GetPostForm("dueDate"); ok {
			in.DueDate = &due
		}
		if strings.TrimSpace(in.Title) != "" {
			name, path, err := h.saveAttachment(c)
			if err != nil {
				recordOp("create", err)
				writeError(c, h.log, err)
				return
			}
			if name != "" {
				in.Attachment = &name
				savedPath = path
			}
		}
	default:
		var req createTaskReq
		if err := c.ShouldBindJSON(&req); err != nil {
			writeError(c, h.log, apperr.New(apperr.InvalidInput, "invalid request body"))
			return
		}
		in.Title = req.Title
		in.DueDate = req.DueDate
	}

	task, err := h.repo.Create(principal(c), in)
	recordOp("create", err)
	if err != nil {
		if savedPath != "" {
			_ = os.Remove(savedPath)
		}
		writeError(c, h.log, err)
		return
	}

	c.JSON(http.StatusCreated, task)
}

// ToggleTask handles PUT /api/tasks/:id/toggle
func (h *TaskHandler) ToggleTask(c *gin.Context) {
	task, err := h.repo.Toggle(principal(c), c.Param("id"))
	recordOp("toggle", err)
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, task)
}

// DeleteTask handles DELETE /api/tasks/:id
func (h *TaskHandler) DeleteTask(c *gin.Context) {
	err := h.repo.Delete(principal(c), c.Param("id"))
	recordOp("delete", err)
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// saveAttachment stores the optional "attachment" form file under a fresh
// name and returns that name and the full path. No file means no error.
func (h *TaskHandler) saveAttachment(c *gin.Context) (string, string, error) {
	file, err := c.FormFile("attachment")
	if err != nil {
		if err == http.ErrMissingFile {
			return "", "", nil
		}
		return "", "", apperr.New(apperr.InvalidInput, "invalid attachment")
	}

	if err := os.MkdirAll(h.uploadsDir, 0o755); err != nil {
		return "", "", apperr.Wrap(apperr.InternalFault, err)
	}
	name := uuid.NewString() + strings.ToLower(filepath.Ext(file.Filename))
	path := filepath.Join(h.uploadsDir, name)
	if err := c.SaveUploadedFile(file, path); err != nil {
		return "", "", apperr.Wrap(apperr.InternalFault, err)
	}
	return name, path, nil
}
