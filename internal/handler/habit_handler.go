package handler

import (
	"errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/habitloop/internal/db"
	"github.com/habitloop/internal/service"
)

type habitPayload struct {
	Name         string   `json:"name"`
	Description  string   `json:"description"`
	Kind         string   `json:"kind"`
	Color        string   `json:"color"`
	Recurrence   string   `json:"recurrence"`
	GoalValue    *float64 `json:"goal_value"`
	GoalUnit     string   `json:"goal_unit"`
	IntervalDays int      `json:"interval_days"`
	Weekdays     []string `json:"weekdays"`
}

// ListHabits 返回当前用户的习惯列表
func (a *API) ListHabits(c *gin.Context) {
	userID, _ := currentUserID(c)

	habits, err := a.habits.List(userID)
	if err != nil {
		respondError(c, http.StatusInternalServerError, "获取习惯列表失败")
		return
	}

	items := make([]gin.H, 0, len(habits))
	for _, habit := range habits {
		items = append(items, habitToPayload(habit))
	}

	c.JSON(http.StatusOK, gin.H{"habits": items})
}

// GetHabit 返回单个习惯详情，附规则配置与渲染后的描述
func (a *API) GetHabit(c *gin.Context) {
	userID, _ := currentUserID(c)

	habit, err := a.habits.Get(userID, c.Param("name"))
	if err != nil {
		handleHabitError(c, err)
		return
	}

	item := habitToPayload(*habit)

	intervalDays, weekdays, err := a.habits.RuleConfig(habit.ID)
	if err != nil {
		respondError(c, http.StatusInternalServerError, "加载习惯规则失败")
		return
	}
	if intervalDays > 0 {
		item["interval_days"] = intervalDays
	}
	if len(weekdays) > 0 {
		item["weekdays"] = weekdays
	}

	if habit.Description != "" {
		if rendered, err := renderMarkdown(habit.Description); err == nil {
			item["description_html"] = rendered
		}
	}

	c.JSON(http.StatusOK, gin.H{"habit": item})
}

// CreateHabit 创建习惯，并尽力为其预生成待办实例
func (a *API) CreateHabit(c *gin.Context) {
	userID, _ := currentUserID(c)

	var payload habitPayload
	if !bindJSON(c, &payload, "请求参数不合法") {
		return
	}

	habit, err := a.habits.Create(userID, habitInputFromPayload(payload))
	if err != nil {
		handleHabitError(c, err)
		return
	}

	a.generateInstances(userID, habit)
	c.JSON(http.StatusOK, gin.H{"habit": habitToPayload(*habit)})
}

// UpdateHabit 更新习惯并按新规则重建待办实例
func (a *API) UpdateHabit(c *gin.Context) {
	userID, _ := currentUserID(c)

	var payload habitPayload
	if !bindJSON(c, &payload, "请求参数不合法") {
		return
	}

	habit, err := a.habits.Update(userID, c.Param("name"), habitInputFromPayload(payload))
	if err != nil {
		handleHabitError(c, err)
		return
	}

	a.generateInstances(userID, habit)
	c.JSON(http.StatusOK, gin.H{"habit": habitToPayload(*habit)})
}

// DeleteHabit 删除习惯及其全部数据
func (a *API) DeleteHabit(c *gin.Context) {
	userID, _ := currentUserID(c)

	if err := a.habits.Delete(userID, c.Param("name")); err != nil {
		handleHabitError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"deleted": true})
}

// SyncHabits 是登录外的显式同步入口
func (a *API) SyncHabits(c *gin.Context) {
	userID, _ := currentUserID(c)

	if err := a.syncer.SyncHabits(userID); err != nil {
		if errors.Is(err, service.ErrInvalidHabitData) {
			respondError(c, http.StatusInternalServerError, "习惯数据异常")
			return
		}
		respondError(c, http.StatusInternalServerError, "同步失败")
		return
	}

	c.JSON(http.StatusOK, gin.H{"synced": true})
}

// generateInstances 按习惯类型触发对应生成器。
// 生成是尽力而为：失败只记日志，下次同步会自愈。
func (a *API) generateInstances(userID uint, habit *db.Habit) {
	var err error
	switch habit.Recurrence {
	case db.RecurrenceInterval:
		err = a.syncer.GenerateIntervalInstances(userID, habit.Name, 0)
	case db.RecurrenceWeekly:
		err = a.syncer.GenerateDayInstances(userID, habit.Name, 0)
	}
	if err != nil {
		log.Printf("generate instances for habit %q: %v", habit.Name, err)
	}
}

func habitInputFromPayload(payload habitPayload) service.HabitInput {
	return service.HabitInput{
		Name:         payload.Name,
		Description:  payload.Description,
		Kind:         payload.Kind,
		Color:        payload.Color,
		Recurrence:   payload.Recurrence,
		GoalValue:    payload.GoalValue,
		GoalUnit:     payload.GoalUnit,
		IntervalDays: payload.IntervalDays,
		Weekdays:     payload.Weekdays,
	}
}

func habitToPayload(habit db.Habit) gin.H {
	item := gin.H{
		"name":        habit.Name,
		"description": habit.Description,
		"kind":        habit.Kind,
		"color":       habit.Color,
		"recurrence":  habit.Recurrence,
	}

	if habit.GoalValue != nil {
		item["goal_value"] = *habit.GoalValue
		item["goal_unit"] = habit.GoalUnit
	}

	return item
}

func handleHabitError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrHabitNotFound):
		respondError(c, http.StatusNotFound, "习惯不存在")
	case errors.Is(err, service.ErrHabitExists):
		respondError(c, http.StatusConflict, "同名习惯已存在")
	case errors.Is(err, service.ErrHabitInvalidInput):
		respondError(c, http.StatusBadRequest, "习惯配置无效")
	default:
		respondError(c, http.StatusInternalServerError, "操作失败")
	}
}
