package service

import (
	"errors"
	"fmt"
	"strings"

	"github.com/habitloop/internal/db"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

var (
	// ErrUserExists 在用户名已被占用时返回
	ErrUserExists = errors.New("user already exists")
	// ErrInvalidCredentials 在用户名或密码不匹配时返回
	ErrInvalidCredentials = errors.New("invalid username or password")
)

// UserService 负责注册、认证与账号删除
type UserService struct {
	db *gorm.DB
}

// NewUserService 构造 UserService
func NewUserService(gdb *gorm.DB) *UserService {
	return &UserService{db: gdb}
}

// Register 创建一个 bcrypt 哈希密码的新用户
func (s *UserService) Register(username, password string) (*db.User, error) {
	username = strings.TrimSpace(username)
	password = strings.TrimSpace(password)
	if username == "" || password == "" {
		return nil, fmt.Errorf("%w: username and password are required", ErrInvalidCredentials)
	}

	var existing db.User
	err := s.db.Where("username = ?", username).First(&existing).Error
	if err == nil {
		return nil, ErrUserExists
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("check username: %w", err)
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user := db.User{Username: username, Password: string(hashed)}
	if err := s.db.Create(&user).Error; err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}

	return &user, nil
}

// Authenticate 校验用户名密码，失败统一返回 ErrInvalidCredentials
func (s *UserService) Authenticate(username, password string) (*db.User, error) {
	var user db.User
	if err := s.db.Where("username = ?", strings.TrimSpace(username)).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("find user: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	return &user, nil
}

// Delete 在单个事务内删除用户及其全部习惯数据。
// 账号删除不允许留下半套数据，任一步失败整体回滚。
func (s *UserService) Delete(userID uint) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		var habitIDs []uint
		if err := tx.Model(&db.Habit{}).Where("user_id = ?", userID).Pluck("id", &habitIDs).Error; err != nil {
			return fmt.Errorf("list habit ids: %w", err)
		}

		if len(habitIDs) > 0 {
			for _, model := range []interface{}{
				&db.HabitProgress{},
				&db.HabitInstance{},
				&db.HabitDay{},
				&db.HabitInterval{},
			} {
				if err := tx.Unscoped().Where("habit_id IN ?", habitIDs).Delete(model).Error; err != nil {
					return fmt.Errorf("delete habit dependents: %w", err)
				}
			}
			if err := tx.Unscoped().Where("user_id = ?", userID).Delete(&db.Habit{}).Error; err != nil {
				return fmt.Errorf("delete habits: %w", err)
			}
		}

		if err := tx.Unscoped().Delete(&db.User{}, userID).Error; err != nil {
			return fmt.Errorf("delete user: %w", err)
		}
		return nil
	})
}
