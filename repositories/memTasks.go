package repositories

import (
	"strings"
	"sync"
	"time"

	"task-server/apperr"
	"task-server/entities"

	"github.com/google/uuid"
)

// memTaskRepository keeps every user's tasks in one slice, in creation order.
// A single mutex guards the whole collection: create/toggle/delete all read
// then write, and requests run on parallel goroutines.
type memTaskRepository struct {
	mu    sync.Mutex
	tasks []entities.Task
	now   func() time.Time
	newID func() string
}

func NewMemTaskRepository() TaskRepository {
	return newMemTaskRepository(func() time.Time { return time.Now().UTC() }, uuid.NewString)
}

func newMemTaskRepository(now func() time.Time, newID func() string) *memTaskRepository {
	return &memTaskRepository{
		tasks: make([]entities.Task, 0),
		now:   now,
		newID: newID,
	}
}

// Create validates and appends a new task owned by p.
func (r *memTaskRepository) Create(p entities.Principal, in entities.TaskInput) (entities.Task, error) {
	if p.IsZero() {
		return entities.Task{}, apperr.ErrUnauthenticated
	}
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return entities.Task{}, apperr.ErrTitleRequired
	}

	task := entities.Task{
		Title:      title,
		DueDate:    optional(in.DueDate),
		Attachment: optional(in.Attachment),
		Completed:  false,
		UserID:     p.UserID,
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	task.ID = r.newID()
	task.CreatedAt = r.now()
	r.tasks = append(r.tasks, task)
	return task, nil
}

// List returns a fresh copy of p's tasks in creation order.
func (r *memTaskRepository) List(p entities.Principal) ([]entities.Task, error) {
	if p.IsZero() {
		return nil, apperr.ErrUnauthenticated
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	owned := make([]entities.Task, 0)
	for _, t := range r.tasks {
		if t.UserID == p.UserID {
			owned = append(owned, t)
		}
	}
	return owned, nil
}

func (r *memTaskRepository) Get(p entities.Principal, id string) (entities.Task, error) {
	if p.IsZero() {
		return entities.Task{}, apperr.ErrUnauthenticated
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	i := r.indexOf(p.UserID, id)
	if i < 0 {
		return entities.Task{}, apperr.ErrTaskNotFound
	}
	return r.tasks[i], nil
}

// Toggle flips Completed on p's task with the given id.
func (r *memTaskRepository) Toggle(p entities.Principal, id string) (entities.Task, error) {
	if p.IsZero() {
		return entities.Task{}, apperr.ErrUnauthenticated
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	i := r.indexOf(p.UserID, id)
	if i < 0 {
		return entities.Task{}, apperr.ErrTaskNotFound
	}
	r.tasks[i].Completed = !r.tasks[i].Completed
	return r.tasks[i], nil
}

// Delete removes p's task with the given id.
func (r *memTaskRepository) Delete(p entities.Principal, id string) error {
	if p.IsZero() {
		return apperr.ErrUnauthenticated
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	i := r.indexOf(p.UserID, id)
	if i < 0 {
		return apperr.ErrTaskNotFound
	}
	r.tasks = append(r.tasks[:i], r.tasks[i+1:]...)
	return nil
}

// indexOf must be called with mu held.
func (r *memTaskRepository) indexOf(ownerID, id string) int {
	for i := range r.tasks {
		if r.tasks[i].ID == id && r.tasks[i].UserID == ownerID {
			return i
		}
	}
	return -1
}

func (r *memTaskRepository) size() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.tasks)
}

func optional(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" {
		return nil
	}
	return &v
}
