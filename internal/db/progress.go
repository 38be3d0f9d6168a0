package db

import (
	"time"

	"gorm.io/gorm"
)

// HabitProgress 是某习惯某自然日的打卡记录
// Progress 为当日进度值，Completed 依据习惯目标判定
// Streak 表示截止该日的连续完成天数，中断当日归零
// Habit + ProgressDate 唯一索引，每天至多一行
type HabitProgress struct {
	gorm.Model
	HabitID      uint      `gorm:"index;index:idx_habit_progress_unique,unique"`
	Habit        Habit     `gorm:"constraint:OnDelete:CASCADE"`
	ProgressDate time.Time `gorm:"index:idx_habit_progress_unique,unique"`
	Progress     float64
	Completed    bool
	Streak       int
}

// TableName 重写避免 gorm 默认复数化出 habit_progresses
func (HabitProgress) TableName() string {
	return "habit_progress"
}
