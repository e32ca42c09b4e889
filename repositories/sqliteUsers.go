package repositories

import (
	"errors"

	"task-server/apperr"
	"task-server/db"
	"task-server/entities"

	"gorm.io/gorm"
)

type userSqliteRepository struct {
	db db.Database
}

func NewUserSqliteRepository(database db.Database) UserRepository {
	return &userSqliteRepository{db: database}
}

// Create inserts user. A taken username yields apperr.ErrUserExists.
func (r *userSqliteRepository) Create(user *entities.User) error {
	if _, err := r.GetByUsername(user.Username); err == nil {
		return apperr.ErrUserExists
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}

	if err := r.db.GetDB().Create(user).Error; err != nil {
		// lost a race against another registration of the same name
		if _, lookupErr := r.GetByUsername(user.Username); lookupErr == nil {
			return apperr.ErrUserExists
		}
		return err
	}
	return nil
}

func (r *userSqliteRepository) GetByID(id string) (*entities.User, error) {
	var user entities.User
	err := r.db.GetDB().Where("id = ?", id).First(&user).Error
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *userSqliteRepository) GetByUsername(username string) (*entities.User, error) {
	var user entities.User
	err := r.db.GetDB().Where("username = ?", username).First(&user).Error
	if err != nil {
		return nil, err
	}
	return &user, nil
}
