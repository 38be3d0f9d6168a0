package service

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/habitloop/internal/db"
	"gorm.io/gorm"
)

var (
	// ErrHabitNotFound 在指定习惯不存在时返回
	ErrHabitNotFound = errors.New("habit not found")
	// ErrHabitExists 在同名习惯已存在时返回
	ErrHabitExists = errors.New("habit already exists")
	// ErrHabitInvalidInput 当习惯配置异常时返回
	ErrHabitInvalidInput = errors.New("invalid habit configuration")
)

// HabitService 负责 Habit 及其规则行的增删改查
// 规则行与 Recurrence 保持一致：interval 一行间隔配置，weekly 若干行星期配置
// 替换规则采用先删后插，习惯删除连带清理实例与打卡记录
type HabitService struct {
	db *gorm.DB
}

// HabitInput 定义创建/更新习惯时可配置字段
// IntervalDays 仅在 Recurrence=interval 时生效，Weekdays 仅在 weekly 时生效
type HabitInput struct {
	Name         string
	Description  string
	Kind         string
	Color        string
	Recurrence   string
	GoalValue    *float64
	GoalUnit     string
	IntervalDays int
	Weekdays     []string
}

// NewHabitService 构造 HabitService
func NewHabitService(gdb *gorm.DB) *HabitService {
	return &HabitService{db: gdb}
}

// List 返回用户的全部习惯
func (s *HabitService) List(userID uint) ([]db.Habit, error) {
	var habits []db.Habit
	if err := s.db.Where("user_id = ?", userID).Order("created_at ASC").Find(&habits).Error; err != nil {
		return nil, fmt.Errorf("list habits: %w", err)
	}
	return habits, nil
}

// Get 按用户与名称获取习惯
func (s *HabitService) Get(userID uint, name string) (*db.Habit, error) {
	var habit db.Habit
	if err := s.db.Where("user_id = ? AND name = ?", userID, strings.TrimSpace(name)).First(&habit).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrHabitNotFound
		}
		return nil, fmt.Errorf("get habit: %w", err)
	}
	return &habit, nil
}

// Create 新建习惯及其规则行
func (s *HabitService) Create(userID uint, input HabitInput) (*db.Habit, error) {
	normalized, err := validateHabitInput(input)
	if err != nil {
		return nil, err
	}

	var existing db.Habit
	err = s.db.Where("user_id = ? AND name = ?", userID, normalized.Name).First(&existing).Error
	if err == nil {
		return nil, ErrHabitExists
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("check habit name: %w", err)
	}

	habit := db.Habit{
		UserID:      userID,
		Name:        normalized.Name,
		Description: normalized.Description,
		Kind:        normalized.Kind,
		Color:       normalized.Color,
		Recurrence:  normalized.Recurrence,
		GoalValue:   normalized.GoalValue,
		GoalUnit:    normalized.GoalUnit,
	}

	if err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&habit).Error; err != nil {
			return fmt.Errorf("create habit: %w", err)
		}
		return replaceHabitRules(tx, habit.ID, normalized)
	}); err != nil {
		return nil, err
	}

	return &habit, nil
}

// Update 更新习惯并整体替换规则行。
// 规则变更后晚于今日的待办实例不再可信，一并清除，由生成器按新规则补齐。
func (s *HabitService) Update(userID uint, name string, input HabitInput) (*db.Habit, error) {
	normalized, err := validateHabitInput(input)
	if err != nil {
		return nil, err
	}

	habit, err := s.Get(userID, name)
	if err != nil {
		return nil, err
	}

	if normalized.Name != habit.Name {
		var conflict db.Habit
		err := s.db.Where("user_id = ? AND name = ?", userID, normalized.Name).First(&conflict).Error
		if err == nil {
			return nil, ErrHabitExists
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("check habit name: %w", err)
		}
	}

	habit.Name = normalized.Name
	habit.Description = normalized.Description
	habit.Kind = normalized.Kind
	habit.Color = normalized.Color
	habit.Recurrence = normalized.Recurrence
	habit.GoalValue = normalized.GoalValue
	habit.GoalUnit = normalized.GoalUnit

	if err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Save(habit).Error; err != nil {
			return fmt.Errorf("update habit: %w", err)
		}
		if err := replaceHabitRules(tx, habit.ID, normalized); err != nil {
			return err
		}

		today := normalizeToDate(time.Now())
		if err := tx.Unscoped().Where("habit_id = ? AND due_date > ?", habit.ID, today).
			Delete(&db.HabitInstance{}).Error; err != nil {
			return fmt.Errorf("clear future instances: %w", err)
		}
		return nil
	}); err != nil {
		return nil, err
	}

	return habit, nil
}

// Delete 删除习惯及其全部从属数据（规则、实例、打卡记录）
func (s *HabitService) Delete(userID uint, name string) error {
	habit, err := s.Get(userID, name)
	if err != nil {
		return err
	}

	return s.db.Transaction(func(tx *gorm.DB) error {
		for _, model := range []interface{}{
			&db.HabitProgress{},
			&db.HabitInstance{},
			&db.HabitDay{},
			&db.HabitInterval{},
		} {
			if err := tx.Unscoped().Where("habit_id = ?", habit.ID).Delete(model).Error; err != nil {
				return fmt.Errorf("delete habit dependents: %w", err)
			}
		}
		if err := tx.Unscoped().Delete(&db.Habit{}, habit.ID).Error; err != nil {
			return fmt.Errorf("delete habit: %w", err)
		}
		return nil
	})
}

// RuleConfig 返回习惯当前生效的规则配置：间隔天数或星期列表
func (s *HabitService) RuleConfig(habitID uint) (int, []string, error) {
	var rule db.HabitInterval
	err := s.db.Where("habit_id = ?", habitID).First(&rule).Error
	if err == nil {
		return rule.Increment, nil, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, nil, fmt.Errorf("load interval rule: %w", err)
	}

	var rows []db.HabitDay
	if err := s.db.Where("habit_id = ?", habitID).Order("id ASC").Find(&rows).Error; err != nil {
		return 0, nil, fmt.Errorf("load weekday rules: %w", err)
	}
	weekdays := make([]string, 0, len(rows))
	for _, row := range rows {
		weekdays = append(weekdays, row.Weekday)
	}
	return 0, weekdays, nil
}

// validateHabitInput 规范化并校验输入，返回可直接落库的副本
func validateHabitInput(input HabitInput) (HabitInput, error) {
	input.Name = strings.TrimSpace(input.Name)
	if input.Name == "" {
		return input, fmt.Errorf("%w: name is required", ErrHabitInvalidInput)
	}

	input.Description = strings.TrimSpace(input.Description)
	input.Color = strings.TrimSpace(input.Color)
	input.GoalUnit = strings.TrimSpace(input.GoalUnit)
	input.Kind = normalizeKind(input.Kind)
	input.Recurrence = strings.TrimSpace(strings.ToLower(input.Recurrence))

	switch input.Recurrence {
	case db.RecurrenceInterval:
		if input.IntervalDays <= 0 {
			return input, fmt.Errorf("%w: interval must be positive", ErrHabitInvalidInput)
		}
		input.Weekdays = nil
	case db.RecurrenceWeekly:
		days, err := normalizeWeekdays(input.Weekdays)
		if err != nil {
			return input, err
		}
		input.Weekdays = days
		input.IntervalDays = 0
	default:
		return input, fmt.Errorf("%w: unsupported recurrence %s", ErrHabitInvalidInput, input.Recurrence)
	}

	if input.GoalValue != nil && *input.GoalValue <= 0 {
		return input, fmt.Errorf("%w: goal must be positive", ErrHabitInvalidInput)
	}

	return input, nil
}

func normalizeKind(kind string) string {
	kind = strings.TrimSpace(strings.ToLower(kind))
	if kind != db.HabitKindQuit {
		return db.HabitKindBuild
	}
	return db.HabitKindQuit
}

// normalizeWeekdays 去重并校验星期名，至少需要一天
func normalizeWeekdays(names []string) ([]string, error) {
	seen := make(map[string]struct{}, len(names))
	days := make([]string, 0, len(names))

	for _, raw := range names {
		name := strings.TrimSpace(raw)
		if name == "" {
			continue
		}
		if _, ok := ParseWeekday(name); !ok {
			return nil, fmt.Errorf("%w: unknown weekday %s", ErrHabitInvalidInput, name)
		}
		if _, dup := seen[name]; dup {
			continue
		}
		seen[name] = struct{}{}
		days = append(days, name)
	}

	if len(days) == 0 {
		return nil, fmt.Errorf("%w: at least one weekday is required", ErrHabitInvalidInput)
	}

	return days, nil
}

// replaceHabitRules 先删后插地写入与 Recurrence 匹配的规则行
func replaceHabitRules(tx *gorm.DB, habitID uint, input HabitInput) error {
	if err := tx.Unscoped().Where("habit_id = ?", habitID).Delete(&db.HabitInterval{}).Error; err != nil {
		return fmt.Errorf("clear interval rule: %w", err)
	}
	if err := tx.Unscoped().Where("habit_id = ?", habitID).Delete(&db.HabitDay{}).Error; err != nil {
		return fmt.Errorf("clear weekday rules: %w", err)
	}

	switch input.Recurrence {
	case db.RecurrenceInterval:
		rule := db.HabitInterval{HabitID: habitID, Increment: input.IntervalDays}
		if err := tx.Create(&rule).Error; err != nil {
			return fmt.Errorf("create interval rule: %w", err)
		}
	case db.RecurrenceWeekly:
		for _, day := range input.Weekdays {
			rule := db.HabitDay{HabitID: habitID, Weekday: day}
			if err := tx.Create(&rule).Error; err != nil {
				return fmt.Errorf("create weekday rule: %w", err)
			}
		}
	}

	return nil
}
