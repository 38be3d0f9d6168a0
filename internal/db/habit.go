package db

import "gorm.io/gorm"

// 习惯的两种类型与两种重复方式取值约定：
// Kind: build（养成）/ quit（戒除）
// Recurrence: interval（固定间隔天数）/ weekly（每周指定星期）
const (
	HabitKindBuild = "build"
	HabitKindQuit  = "quit"

	RecurrenceInterval = "interval"
	RecurrenceWeekly   = "weekly"
)

// Habit 定义了习惯模型
// 同一用户下名称唯一；GoalValue/GoalUnit 为可选的数值目标（如 2 升水）
// 每个习惯有且仅有与 Recurrence 匹配的一种规则配置：
// interval 对应一行 HabitInterval，weekly 对应若干行 HabitDay
type Habit struct {
	gorm.Model
	UserID      uint `gorm:"index;index:idx_habits_user_name,unique"`
	User        User `gorm:"constraint:OnDelete:CASCADE"`
	Name        string `gorm:"index:idx_habits_user_name,unique"`
	Description string
	Kind        string
	Color       string
	Recurrence  string
	GoalValue   *float64
	GoalUnit    string
}

// HabitInterval 存储固定间隔规则：每 Increment 天一次
// 每个习惯至多一行，替换采用先删后插
type HabitInterval struct {
	gorm.Model
	HabitID   uint  `gorm:"uniqueIndex"`
	Habit     Habit `gorm:"constraint:OnDelete:CASCADE"`
	Increment int
}

// HabitDay 存储每周规则中的单个星期，如 Monday
// Habit + Weekday 唯一索引防止重复选择同一天
type HabitDay struct {
	gorm.Model
	HabitID uint   `gorm:"index;index:idx_habit_days_unique,unique"`
	Habit   Habit  `gorm:"constraint:OnDelete:CASCADE"`
	Weekday string `gorm:"index:idx_habit_days_unique,unique"`
}
