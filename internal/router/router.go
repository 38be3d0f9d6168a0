package router

import (
	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/habitloop/internal/db"
	"github.com/habitloop/internal/handler"
)

// SetupRouter 配置 Gin 引擎和路由
func SetupRouter(sessionSecret string, horizonDays int) *gin.Engine {
	r := gin.Default()

	// 配置会话中间件
	store := cookie.NewStore([]byte(sessionSecret))
	r.Use(sessions.Sessions("habitloop_session", store))
	r.Use(requestID())

	r.GET("/ping", func(c *gin.Context) {
		c.JSON(200, gin.H{"message": "pong"})
	})

	a := handler.NewAPI(db.DB, horizonDays)

	api := r.Group("/api")
	{
		api.POST("/register", a.Register)
		api.POST("/login", a.Login)
		api.POST("/logout", a.Logout)

		// 需要认证的路由
		auth := api.Group("")
		auth.Use(handler.AuthRequired())
		{
			auth.GET("/habits", a.ListHabits)
			auth.POST("/habits", a.CreateHabit)
			auth.GET("/habits/:name", a.GetHabit)
			auth.PUT("/habits/:name", a.UpdateHabit)
			auth.DELETE("/habits/:name", a.DeleteHabit)

			auth.POST("/habits/:name/progress", a.RecordProgress)
			auth.GET("/habits/:name/progress", a.ListProgress)
			auth.GET("/habits/:name/stats", a.GetHabitStats)

			auth.POST("/sync", a.SyncHabits)
			auth.POST("/account/delete", a.DeleteAccount)
		}
	}

	return r
}

// requestID 为每个请求附加 X-Request-ID，便于日志关联
func requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		c.Writer.Header().Set("X-Request-ID", id)
		c.Next()
	}
}
