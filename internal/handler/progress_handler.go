package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/habitloop/internal/db"
	"github.com/habitloop/internal/service"
)

type progressPayload struct {
	Value float64 `json:"value"`
}

// RecordProgress 记录今日进度。
// 打卡行必须已由迁移器/补录器建出，缺行返回 404 让客户端先同步。
func (a *API) RecordProgress(c *gin.Context) {
	userID, _ := currentUserID(c)

	var payload progressPayload
	if !bindJSON(c, &payload, "请求参数不合法") {
		return
	}

	record, err := a.progress.Record(userID, c.Param("name"), payload.Value)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrHabitNotFound):
			respondError(c, http.StatusNotFound, "习惯不存在")
		case errors.Is(err, service.ErrProgressNotFound):
			respondError(c, http.StatusNotFound, "今日打卡记录不存在，请先同步")
		default:
			respondError(c, http.StatusInternalServerError, "保存打卡记录失败")
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{"progress": progressToPayload(*record)})
}

// ListProgress 返回日期区间内的打卡记录，默认最近 30 天
func (a *API) ListProgress(c *gin.Context) {
	userID, _ := currentUserID(c)

	end := time.Now()
	start := end.AddDate(0, 0, -29)

	if raw := c.Query("start"); raw != "" {
		parsed, err := time.ParseInLocation(service.DateFormat, raw, time.Local)
		if err != nil {
			respondError(c, http.StatusBadRequest, "无效的开始日期")
			return
		}
		start = parsed
	}
	if raw := c.Query("end"); raw != "" {
		parsed, err := time.ParseInLocation(service.DateFormat, raw, time.Local)
		if err != nil {
			respondError(c, http.StatusBadRequest, "无效的结束日期")
			return
		}
		end = parsed
	}

	records, err := a.progress.ListBetween(userID, c.Param("name"), start, end)
	if err != nil {
		if errors.Is(err, service.ErrHabitNotFound) {
			respondError(c, http.StatusNotFound, "习惯不存在")
			return
		}
		respondError(c, http.StatusInternalServerError, "获取打卡记录失败")
		return
	}

	items := make([]gin.H, 0, len(records))
	for _, record := range records {
		items = append(items, progressToPayload(record))
	}

	c.JSON(http.StatusOK, gin.H{
		"progress": items,
		"range": gin.H{
			"start": start.Format(service.DateFormat),
			"end":   end.Format(service.DateFormat),
		},
	})
}

// GetHabitStats 返回习惯的读侧统计
func (a *API) GetHabitStats(c *gin.Context) {
	userID, _ := currentUserID(c)

	stats, err := a.progress.Statistics(userID, c.Param("name"))
	if err != nil {
		if errors.Is(err, service.ErrHabitNotFound) {
			respondError(c, http.StatusNotFound, "习惯不存在")
			return
		}
		respondError(c, http.StatusInternalServerError, "计算统计信息失败")
		return
	}

	c.JSON(http.StatusOK, gin.H{"stats": gin.H{
		"total_days":       stats.TotalDays,
		"completed_days":   stats.CompletedDays,
		"current_streak":   stats.CurrentStreak,
		"longest_streak":   stats.LongestStreak,
		"completion_rate":  stats.CompletionRate,
		"average_progress": stats.AverageProgress,
	}})
}

func progressToPayload(record db.HabitProgress) gin.H {
	return gin.H{
		"date":      record.ProgressDate.Format(service.DateFormat),
		"progress":  record.Progress,
		"completed": record.Completed,
		"streak":    record.Streak,
	}
}
