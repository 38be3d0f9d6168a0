package service

import (
	"testing"
	"time"

	"github.com/habitloop/internal/db"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func setupTestDB(t *testing.T) func() {
	t.Helper()
	gdb, err := gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}

	if err := db.AutoMigrate(gdb); err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}

	db.DB = gdb

	return func() {
		sqlDB, err := db.DB.DB()
		if err == nil {
			sqlDB.Close()
		}
	}
}

func date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.Local)
}

func fixedNow(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func createTestUser(t *testing.T, username string) *db.User {
	t.Helper()
	user, err := NewUserService(db.DB).Register(username, "secret-pass")
	if err != nil {
		t.Fatalf("failed to create test user: %v", err)
	}
	return user
}

func createIntervalHabit(t *testing.T, userID uint, name string, increment int) *db.Habit {
	t.Helper()
	habit, err := NewHabitService(db.DB).Create(userID, HabitInput{
		Name:         name,
		Kind:         db.HabitKindBuild,
		Recurrence:   db.RecurrenceInterval,
		IntervalDays: increment,
	})
	if err != nil {
		t.Fatalf("failed to create interval habit: %v", err)
	}
	return habit
}

func createWeeklyHabit(t *testing.T, userID uint, name string, weekdays ...string) *db.Habit {
	t.Helper()
	habit, err := NewHabitService(db.DB).Create(userID, HabitInput{
		Name:       name,
		Kind:       db.HabitKindBuild,
		Recurrence: db.RecurrenceWeekly,
		Weekdays:   weekdays,
	})
	if err != nil {
		t.Fatalf("failed to create weekly habit: %v", err)
	}
	return habit
}

func seedProgress(t *testing.T, habitID uint, day time.Time, progress float64, completed bool, streak int) {
	t.Helper()
	record := db.HabitProgress{
		HabitID:      habitID,
		ProgressDate: day,
		Progress:     progress,
		Completed:    completed,
		Streak:       streak,
	}
	if err := db.DB.Create(&record).Error; err != nil {
		t.Fatalf("failed to seed progress row: %v", err)
	}
}

func seedInstance(t *testing.T, habitID uint, day time.Time) {
	t.Helper()
	if err := db.DB.Create(&db.HabitInstance{HabitID: habitID, DueDate: day}).Error; err != nil {
		t.Fatalf("failed to seed instance row: %v", err)
	}
}

func instanceDates(t *testing.T, habitID uint) []string {
	t.Helper()
	var rows []db.HabitInstance
	if err := db.DB.Where("habit_id = ?", habitID).Order("due_date ASC").Find(&rows).Error; err != nil {
		t.Fatalf("failed to list instances: %v", err)
	}
	dates := make([]string, 0, len(rows))
	for _, row := range rows {
		dates = append(dates, row.DueDate.Format(DateFormat))
	}
	return dates
}

func progressDates(t *testing.T, habitID uint) []string {
	t.Helper()
	var rows []db.HabitProgress
	if err := db.DB.Where("habit_id = ?", habitID).Order("progress_date ASC").Find(&rows).Error; err != nil {
		t.Fatalf("failed to list progress rows: %v", err)
	}
	dates := make([]string, 0, len(rows))
	for _, row := range rows {
		dates = append(dates, row.ProgressDate.Format(DateFormat))
	}
	return dates
}

func equalDates(got []string, want ...string) bool {
	if len(got) != len(want) {
		return false
	}
	for i := range got {
		if got[i] != want[i] {
			return false
		}
	}
	return true
}
