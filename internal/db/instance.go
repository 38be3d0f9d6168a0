package db

import (
	"time"

	"gorm.io/gorm"
)

// HabitInstance 表示尚未到期实现的未来待办日
// Habit + DueDate 唯一索引保证重复生成是无害的空操作
type HabitInstance struct {
	gorm.Model
	HabitID uint      `gorm:"index;index:idx_habit_instances_unique,unique"`
	Habit   Habit     `gorm:"constraint:OnDelete:CASCADE"`
	DueDate time.Time `gorm:"index:idx_habit_instances_unique,unique"`
}
