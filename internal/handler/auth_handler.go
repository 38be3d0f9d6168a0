package handler

import (
	"errors"
	"log"
	"net/http"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"github.com/habitloop/internal/service"
)

type credentialsPayload struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Register 创建新账号
func (a *API) Register(c *gin.Context) {
	var payload credentialsPayload
	if !bindJSON(c, &payload, "请求参数不合法") {
		return
	}

	user, err := a.users.Register(payload.Username, payload.Password)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrUserExists):
			respondError(c, http.StatusConflict, "用户名已被占用")
		case errors.Is(err, service.ErrInvalidCredentials):
			respondError(c, http.StatusBadRequest, "用户名和密码不能为空")
		default:
			respondError(c, http.StatusInternalServerError, "注册失败")
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{"username": user.Username})
}

// Login 校验凭证并建立会话，随后触发一次习惯同步。
// 同步失败不阻塞登录本身，只在响应中以 synced=false 体现。
func (a *API) Login(c *gin.Context) {
	var payload credentialsPayload
	if !bindJSON(c, &payload, "请求参数不合法") {
		return
	}

	user, err := a.users.Authenticate(payload.Username, payload.Password)
	if err != nil {
		if errors.Is(err, service.ErrInvalidCredentials) {
			respondError(c, http.StatusUnauthorized, "用户名或密码错误")
			return
		}
		respondError(c, http.StatusInternalServerError, "登录失败")
		return
	}

	session := sessions.Default(c)
	session.Set(sessionUserIDKey, user.ID)
	session.Set(sessionUsernameKey, user.Username)
	if err := session.Save(); err != nil {
		respondError(c, http.StatusInternalServerError, "会话保存失败")
		return
	}

	synced := true
	if err := a.syncer.SyncHabits(user.ID); err != nil {
		synced = false
		log.Printf("login sync for user %q: %v", user.Username, err)
	}

	c.JSON(http.StatusOK, gin.H{"username": user.Username, "synced": synced})
}

// Logout 清除会话
func (a *API) Logout(c *gin.Context) {
	session := sessions.Default(c)
	session.Clear()
	session.Save()
	c.JSON(http.StatusOK, gin.H{"logged_out": true})
}

// DeleteAccount 删除账号及其全部数据，随后清除会话
func (a *API) DeleteAccount(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		respondError(c, http.StatusUnauthorized, "未登录")
		return
	}

	if err := a.users.Delete(userID); err != nil {
		respondError(c, http.StatusInternalServerError, "删除账号失败")
		return
	}

	session := sessions.Default(c)
	session.Clear()
	session.Save()
	c.JSON(http.StatusOK, gin.H{"deleted": true})
}

// AuthRequired 是基于会话的认证中间件，未登录统一返回 401 JSON
func AuthRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := currentUserID(c); !ok {
			respondError(c, http.StatusUnauthorized, "未登录")
			c.Abort()
			return
		}
		c.Next()
	}
}
