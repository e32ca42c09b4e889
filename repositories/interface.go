package repositories

import "task-server/entities"

// TaskRepository is the only way into task data. Every operation is scoped to
// the calling Principal; a task owned by someone else looks exactly like a
// missing one.
type TaskRepository interface {
	Create(p entities.Principal, in entities.TaskInput) (entities.Task, error)
	List(p entities.Principal) ([]entities.Task, error)
	Get(p entities.Principal, id string) (entities.Task, error)
	Toggle(p entities.Principal, id string) (entities.Task, error)
	Delete(p entities.Principal, id string) error
}

type UserRepository interface {
	Create(user *entities.User) error
	GetByID(id string) (*entities.User, error)
	GetByUsername(username string) (*entities.User, error)
}
