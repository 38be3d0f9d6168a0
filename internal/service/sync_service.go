package service

import (
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/habitloop/internal/db"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	// ErrInvalidHabitData 在同步前的习惯列表读取失败时返回
	ErrInvalidHabitData = errors.New("invalid habits data")
	// ErrUnsupportedDateCondition 在迁移收到未知比较条件时返回
	ErrUnsupportedDateCondition = errors.New("unsupported date condition")
)

// DefaultHorizonDays 是向前生成待办实例的默认天数
const DefaultHorizonDays = 7

// SyncService 承担习惯调度的四个环节：
// 生成器把规则投射为未来实例，迁移器把到期实例落为打卡占位，
// 补录器为错过的日子直接按规则重建占位，编排器按固定顺序串联三者。
// 所有插入均为"不存在才插入"，重复执行是无害的空操作。
type SyncService struct {
	db          *gorm.DB
	horizonDays int
	now         func() time.Time
}

// NewSyncService 构造 SyncService，默认向前看 7 天
func NewSyncService(gdb *gorm.DB) *SyncService {
	return &SyncService{db: gdb, horizonDays: DefaultHorizonDays, now: time.Now}
}

// SetHorizon 覆盖默认生成视野，非正值被忽略
func (s *SyncService) SetHorizon(days int) {
	if days > 0 {
		s.horizonDays = days
	}
}

func (s *SyncService) today() time.Time {
	return normalizeToDate(s.now())
}

// GenerateIntervalInstances 为固定间隔习惯向前生成待办实例。
// 习惯不存在、类型不符或未配置间隔时不视为错误，直接跳过；
// 起点取已有实例的最大到期日，没有实例则取今天。
func (s *SyncService) GenerateIntervalInstances(userID uint, habitName string, daysAhead int) error {
	habit, err := s.findHabit(userID, habitName)
	if err != nil {
		return err
	}
	if habit == nil || habit.Recurrence != db.RecurrenceInterval {
		return nil
	}

	var rule db.HabitInterval
	if err := s.db.Where("habit_id = ?", habit.ID).First(&rule).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		return fmt.Errorf("load interval rule: %w", err)
	}
	if rule.Increment <= 0 {
		return nil
	}

	if daysAhead <= 0 {
		daysAhead = s.horizonDays
	}

	today := s.today()
	lastDate, ok, err := s.lastInstanceDate(habit.ID)
	if err != nil {
		return err
	}
	if !ok {
		lastDate = today
	}

	cutoff := today.AddDate(0, 0, daysAhead)
	return s.insertInstances(habit.ID, IntervalDates(lastDate, cutoff, rule.Increment))
}

// GenerateDayInstances 为每周习惯向前生成待办实例。
// 未选择任何星期时直接跳过；重复日期由唯一索引吸收。
func (s *SyncService) GenerateDayInstances(userID uint, habitName string, daysAhead int) error {
	habit, err := s.findHabit(userID, habitName)
	if err != nil {
		return err
	}
	if habit == nil || habit.Recurrence != db.RecurrenceWeekly {
		return nil
	}

	weekdays, err := s.habitWeekdays(habit.ID)
	if err != nil {
		return err
	}
	if len(weekdays) == 0 {
		return nil
	}

	if daysAhead <= 0 {
		daysAhead = s.horizonDays
	}

	today := s.today()
	cutoff := today.AddDate(0, 0, daysAhead)
	return s.insertInstances(habit.ID, WeeklyDates(today, cutoff, weekdays))
}

// MigrateInstances 把满足日期条件的待办实例落为打卡占位行。
// cond 仅支持 "="（恰好当日）与 "<="（当日及逾期，登录补偿用）。
// 先插占位再删实例：中途失败时实例仍在，下次同步重试即可。
func (s *SyncService) MigrateInstances(userID uint, cond string, date time.Time) error {
	var dateClause string
	switch cond {
	case "=":
		dateClause = "due_date = ?"
	case "<=":
		dateClause = "due_date <= ?"
	default:
		return fmt.Errorf("%w: %q", ErrUnsupportedDateCondition, cond)
	}

	habitIDs, err := s.userHabitIDs(userID)
	if err != nil {
		return err
	}
	if len(habitIDs) == 0 {
		return nil
	}

	var instances []db.HabitInstance
	if err := s.db.Where("habit_id IN ?", habitIDs).
		Where(dateClause, normalizeToDate(date)).
		Order("due_date ASC").
		Find(&instances).Error; err != nil {
		return fmt.Errorf("list due instances: %w", err)
	}

	for _, instance := range instances {
		if err := s.insertProgressPlaceholder(instance.HabitID, instance.DueDate); err != nil {
			return err
		}
		if err := s.db.Unscoped().Delete(&db.HabitInstance{}, instance.ID).Error; err != nil {
			return fmt.Errorf("delete migrated instance: %w", err)
		}
	}

	return nil
}

// FillMissedProgress 为最后打卡日与今天之间的缺口按规则补建占位行。
// 覆盖实例生成视野被整体跳过的场景：补录直接从规则推导日期，
// 只插今天之前缺失的行，绝不改写已有记录。
func (s *SyncService) FillMissedProgress(userID uint) error {
	var habits []db.Habit
	if err := s.db.Where("user_id = ?", userID).Find(&habits).Error; err != nil {
		return fmt.Errorf("list habits: %w", err)
	}

	today := s.today()

	for _, habit := range habits {
		lastDate, ok, err := s.lastProgressDate(habit.ID)
		if err != nil {
			return err
		}
		if !ok {
			lastDate = today
		}
		if !lastDate.Before(today) {
			continue
		}

		var dates []time.Time
		switch habit.Recurrence {
		case db.RecurrenceInterval:
			var rule db.HabitInterval
			if err := s.db.Where("habit_id = ?", habit.ID).First(&rule).Error; err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					continue
				}
				return fmt.Errorf("load interval rule: %w", err)
			}
			if rule.Increment <= 0 || daysBetween(lastDate, today) <= rule.Increment {
				continue
			}
			dates = IntervalDates(lastDate, today, rule.Increment)
		case db.RecurrenceWeekly:
			weekdays, err := s.habitWeekdays(habit.ID)
			if err != nil {
				return err
			}
			if len(weekdays) == 0 {
				continue
			}
			dates = WeeklyDates(lastDate, today, weekdays)
		default:
			continue
		}

		for _, date := range dates {
			if !date.Before(today) {
				continue
			}
			if err := s.insertProgressPlaceholder(habit.ID, date); err != nil {
				return err
			}
		}
	}

	return nil
}

// SyncHabits 是登录及习惯变更后的同步入口，严格按迁移 → 补录 → 生成执行。
// 顺序不可交换：补录必须看到刚迁移出的最后打卡日，
// 生成必须基于补齐后的基线，否则会重复造实例。
// 迁移与补录的失败向上传播；单个习惯的生成失败只记日志不中断。
func (s *SyncService) SyncHabits(userID uint) error {
	habits, err := s.listHabits(userID)
	if err != nil {
		return err
	}

	if err := s.MigrateInstances(userID, "<=", s.today()); err != nil {
		return fmt.Errorf("migrate due instances: %w", err)
	}

	if err := s.FillMissedProgress(userID); err != nil {
		return fmt.Errorf("fill missed progress: %w", err)
	}

	for _, habit := range habits {
		var genErr error
		switch habit.Recurrence {
		case db.RecurrenceInterval:
			genErr = s.GenerateIntervalInstances(userID, habit.Name, 0)
		case db.RecurrenceWeekly:
			genErr = s.GenerateDayInstances(userID, habit.Name, 0)
		}
		if genErr != nil {
			log.Printf("sync: generate instances for habit %q: %v", habit.Name, genErr)
		}
	}

	return nil
}

// SyncAllUsers 逐个用户执行同步，供夜间定时任务调用。
// 单个用户失败只记日志，不影响其他用户。
func (s *SyncService) SyncAllUsers() error {
	var users []db.User
	if err := s.db.Find(&users).Error; err != nil {
		return fmt.Errorf("list users: %w", err)
	}

	for _, user := range users {
		if err := s.SyncHabits(user.ID); err != nil {
			log.Printf("sync: user %q: %v", user.Username, err)
		}
	}

	return nil
}

// listHabits 读取用户习惯列表，失败统一归为 ErrInvalidHabitData，
// 编排器在这里就地中止，不再执行后续步骤。
func (s *SyncService) listHabits(userID uint) ([]db.Habit, error) {
	var habits []db.Habit
	if err := s.db.Where("user_id = ?", userID).Find(&habits).Error; err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidHabitData, err)
	}
	return habits, nil
}

func (s *SyncService) findHabit(userID uint, name string) (*db.Habit, error) {
	var habit db.Habit
	if err := s.db.Where("user_id = ? AND name = ?", userID, name).First(&habit).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("find habit: %w", err)
	}
	return &habit, nil
}

func (s *SyncService) userHabitIDs(userID uint) ([]uint, error) {
	var ids []uint
	if err := s.db.Model(&db.Habit{}).Where("user_id = ?", userID).Pluck("id", &ids).Error; err != nil {
		return nil, fmt.Errorf("list habit ids: %w", err)
	}
	return ids, nil
}

func (s *SyncService) lastInstanceDate(habitID uint) (time.Time, bool, error) {
	var instance db.HabitInstance
	err := s.db.Where("habit_id = ?", habitID).Order("due_date DESC").First(&instance).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return time.Time{}, false, nil
		}
		return time.Time{}, false, fmt.Errorf("last instance date: %w", err)
	}
	return normalizeToDate(instance.DueDate), true, nil
}

func (s *SyncService) lastProgressDate(habitID uint) (time.Time, bool, error) {
	var record db.HabitProgress
	err := s.db.Where("habit_id = ?", habitID).Order("progress_date DESC").First(&record).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return time.Time{}, false, nil
		}
		return time.Time{}, false, fmt.Errorf("last progress date: %w", err)
	}
	return normalizeToDate(record.ProgressDate), true, nil
}

func (s *SyncService) habitWeekdays(habitID uint) ([]time.Weekday, error) {
	var rows []db.HabitDay
	if err := s.db.Where("habit_id = ?", habitID).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list weekday rules: %w", err)
	}

	weekdays := make([]time.Weekday, 0, len(rows))
	for _, row := range rows {
		if day, ok := ParseWeekday(row.Weekday); ok {
			weekdays = append(weekdays, day)
		}
	}
	return weekdays, nil
}

func (s *SyncService) insertInstances(habitID uint, dates []time.Time) error {
	for _, date := range dates {
		instance := db.HabitInstance{HabitID: habitID, DueDate: date}
		if err := s.db.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "habit_id"}, {Name: "due_date"}},
			DoNothing: true,
		}).Create(&instance).Error; err != nil {
			return fmt.Errorf("insert instance: %w", err)
		}
	}
	return nil
}

// insertProgressPlaceholder 写入零进度占位行，已存在时为空操作
func (s *SyncService) insertProgressPlaceholder(habitID uint, date time.Time) error {
	record := db.HabitProgress{
		HabitID:      habitID,
		ProgressDate: normalizeToDate(date),
		Progress:     0,
		Completed:    false,
		Streak:       0,
	}
	if err := s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "habit_id"}, {Name: "progress_date"}},
		DoNothing: true,
	}).Create(&record).Error; err != nil {
		return fmt.Errorf("insert progress placeholder: %w", err)
	}
	return nil
}
