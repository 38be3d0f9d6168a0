package service

import (
	"errors"
	"testing"

	"github.com/habitloop/internal/db"
)

func TestUserServiceRegisterAndAuthenticate(t *testing.T) {
	cleanup := setupTestDB(t)
	defer cleanup()

	svc := NewUserService(db.DB)

	user, err := svc.Register("ada@example.com", "correct horse")
	if err != nil {
		t.Fatalf("Register returned error: %v", err)
	}
	if user.ID == 0 {
		t.Fatal("expected user to have ID")
	}
	if user.Password == "correct horse" {
		t.Fatal("password must not be stored in plain text")
	}

	if _, err := svc.Register("ada@example.com", "other"); !errors.Is(err, ErrUserExists) {
		t.Fatalf("expected ErrUserExists, got %v", err)
	}

	if _, err := svc.Authenticate("ada@example.com", "correct horse"); err != nil {
		t.Fatalf("Authenticate returned error: %v", err)
	}
	if _, err := svc.Authenticate("ada@example.com", "wrong"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
	if _, err := svc.Authenticate("nobody@example.com", "whatever"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
}

func TestUserServiceRegisterRequiresCredentials(t *testing.T) {
	cleanup := setupTestDB(t)
	defer cleanup()

	svc := NewUserService(db.DB)
	if _, err := svc.Register("  ", "pass"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
	if _, err := svc.Register("ada@example.com", ""); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
}

func TestUserServiceDeleteRemovesEverything(t *testing.T) {
	cleanup := setupTestDB(t)
	defer cleanup()

	user := createTestUser(t, "ada@example.com")
	keep := createTestUser(t, "bob@example.com")

	habit := createIntervalHabit(t, user.ID, "晨跑", 2)
	seedInstance(t, habit.ID, date(2023, 6, 20))
	seedProgress(t, habit.ID, date(2023, 6, 13), 1, true, 1)
	keepHabit := createIntervalHabit(t, keep.ID, "读书", 3)

	svc := NewUserService(db.DB)
	if err := svc.Delete(user.ID); err != nil {
		t.Fatalf("Delete returned error: %v", err)
	}

	var userCount int64
	db.DB.Model(&db.User{}).Count(&userCount)
	if userCount != 1 {
		t.Fatalf("expected only one user to remain, got %d", userCount)
	}

	var habitCount int64
	db.DB.Model(&db.Habit{}).Count(&habitCount)
	if habitCount != 1 {
		t.Fatalf("expected only the other user's habit to remain, got %d", habitCount)
	}

	var ruleCount int64
	db.DB.Model(&db.HabitInterval{}).Where("habit_id = ?", keepHabit.ID).Count(&ruleCount)
	if ruleCount != 1 {
		t.Fatalf("expected the other user's rule to survive, got %d", ruleCount)
	}

	for _, model := range []interface{}{&db.HabitInstance{}, &db.HabitProgress{}} {
		var count int64
		db.DB.Model(model).Count(&count)
		if count != 0 {
			t.Fatalf("expected %T rows removed, got %d", model, count)
		}
	}
}
