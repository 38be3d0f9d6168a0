package service

import (
	"errors"
	"fmt"
	"time"

	"github.com/habitloop/internal/db"
	"gorm.io/gorm"
)

// ErrProgressNotFound 在当日打卡行尚未建立时返回，与存储错误区分开
var ErrProgressNotFound = errors.New("progress record not found")

// ProgressService 负责当日打卡与读侧统计
// 打卡是对既有占位行的点更新：行必须先由迁移器或补录器建出，
// 这里只改写 progress/completed/streak 三列。
type ProgressService struct {
	db  *gorm.DB
	now func() time.Time
}

// HabitStatistics 汇总单个习惯的读侧指标
type HabitStatistics struct {
	TotalDays       int
	CompletedDays   int
	CurrentStreak   int
	LongestStreak   int
	CompletionRate  float64
	AverageProgress float64
}

// NewProgressService 构造 ProgressService
func NewProgressService(gdb *gorm.DB) *ProgressService {
	return &ProgressService{db: gdb, now: time.Now}
}

// Record 更新今日进度并重算完成态与连续天数。
// completed 以习惯目标为阈值，未配置目标时按 >= 1 判定；
// 连续天数只看最近一个更早的打卡行：它存在且完成则 +1，否则从 1 重计，
// 当日未完成立即归零，没有宽限。
func (s *ProgressService) Record(userID uint, habitName string, value float64) (*db.HabitProgress, error) {
	habit, err := s.requireHabit(userID, habitName)
	if err != nil {
		return nil, err
	}

	today := normalizeToDate(s.now())

	var record db.HabitProgress
	if err := s.db.Where("habit_id = ? AND progress_date = ?", habit.ID, today).First(&record).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrProgressNotFound
		}
		return nil, fmt.Errorf("find progress record: %w", err)
	}

	goal := 1.0
	if habit.GoalValue != nil {
		goal = *habit.GoalValue
	}
	completed := value >= goal

	streak := 0
	if completed {
		streak = 1
		var prior db.HabitProgress
		err := s.db.Where("habit_id = ? AND progress_date < ?", habit.ID, today).
			Order("progress_date DESC").
			First(&prior).Error
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("find prior progress: %w", err)
		}
		if err == nil && prior.Completed {
			streak = prior.Streak + 1
		}
	}

	if err := s.db.Model(&record).Updates(map[string]interface{}{
		"progress":  value,
		"completed": completed,
		"streak":    streak,
	}).Error; err != nil {
		return nil, fmt.Errorf("update progress record: %w", err)
	}

	record.Progress = value
	record.Completed = completed
	record.Streak = streak
	return &record, nil
}

// ListBetween 返回指定区间内的打卡记录，按日期升序
func (s *ProgressService) ListBetween(userID uint, habitName string, start, end time.Time) ([]db.HabitProgress, error) {
	habit, err := s.requireHabit(userID, habitName)
	if err != nil {
		return nil, err
	}

	var records []db.HabitProgress
	if err := s.db.Where("habit_id = ?", habit.ID).
		Where("progress_date BETWEEN ? AND ?", normalizeToDate(start), normalizeToDate(end)).
		Order("progress_date ASC").
		Find(&records).Error; err != nil {
		return nil, fmt.Errorf("list progress records: %w", err)
	}

	return records, nil
}

// Statistics 计算最长/当前连续、完成率与平均进度，纯聚合查询
func (s *ProgressService) Statistics(userID uint, habitName string) (*HabitStatistics, error) {
	habit, err := s.requireHabit(userID, habitName)
	if err != nil {
		return nil, err
	}

	var row struct {
		TotalDays       int
		CompletedDays   int
		LongestStreak   int
		AverageProgress float64
	}
	if err := s.db.Model(&db.HabitProgress{}).
		Select("COUNT(*) AS total_days, " +
			"COALESCE(SUM(CASE WHEN completed THEN 1 ELSE 0 END), 0) AS completed_days, " +
			"COALESCE(MAX(streak), 0) AS longest_streak, " +
			"COALESCE(AVG(progress), 0) AS average_progress").
		Where("habit_id = ?", habit.ID).
		Scan(&row).Error; err != nil {
		return nil, fmt.Errorf("aggregate progress: %w", err)
	}

	stats := &HabitStatistics{
		TotalDays:       row.TotalDays,
		CompletedDays:   row.CompletedDays,
		LongestStreak:   row.LongestStreak,
		AverageProgress: row.AverageProgress,
	}
	if stats.TotalDays > 0 {
		stats.CompletionRate = float64(stats.CompletedDays) / float64(stats.TotalDays)
	}

	var latest db.HabitProgress
	err = s.db.Where("habit_id = ?", habit.ID).Order("progress_date DESC").First(&latest).Error
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("latest progress: %w", err)
	}
	if err == nil {
		stats.CurrentStreak = latest.Streak
	}

	return stats, nil
}

func (s *ProgressService) requireHabit(userID uint, habitName string) (*db.Habit, error) {
	var habit db.Habit
	if err := s.db.Where("user_id = ? AND name = ?", userID, habitName).First(&habit).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrHabitNotFound
		}
		return nil, fmt.Errorf("find habit: %w", err)
	}
	return &habit, nil
}
