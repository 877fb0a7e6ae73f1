package handler

import (
	"errors"
	"net/http"
	"strconv"

	"pm-system/internal/repository"
	"pm-system/internal/service"
	"pm-system/pkg/jwt"
	"pm-system/pkg/logger"
	"pm-system/pkg/orm"
	"pm-system/pkg/password"
	"pm-system/pkg/response"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// MessageHandler 私信处理器
type MessageHandler struct {
	service *service.MessageService
}

// NewMessageHandler 创建MessageHandler实例
func NewMessageHandler(s *service.MessageService) *MessageHandler {
	return &MessageHandler{service: s}
}

type composeRequest struct {
	Recipient uint   `json:"recipient"`
	Subject   string `json:"subject"`
	Body      string `json:"body"`
	Format    int    `json:"format"`
	Lang      string `json:"lang"`
	Draft     bool   `json:"draft"`
}

func (r composeRequest) input() service.ComposeInput {
	return service.ComposeInput{
		Recipient: r.Recipient,
		Subject:   r.Subject,
		Body:      r.Body,
		Format:    r.Format,
		Lang:      r.Lang,
		Draft:     r.Draft,
	}
}

// Compose 撰写消息（发送或保存草稿）
func (h *MessageHandler) Compose(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	var r composeRequest
	if err := c.ShouldBindJSON(&r); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	m, err := h.service.Compose(c.Request.Context(), userID, r.input())
	if err != nil {
		writeError(c, err)
		return
	}

	response.Created(c, service.NewMessageView(m))
}

// List 文件夹列表，支持 dir=asc|desc、limit、offset
func (h *MessageHandler) List(folder repository.Folder) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := currentUser(c)
		if !ok {
			return
		}

		limit := queryInt(c, "limit", defaultPageSize)
		if limit <= 0 || limit > maxPageSize {
			limit = defaultPageSize
		}
		opts := service.ListOptions{
			Folder:    folder,
			Direction: orm.ParseDirection(c.Query("dir")),
			Limit:     limit,
			Offset:    queryInt(c, "offset", 0),
		}

		records, err := h.service.List(c.Request.Context(), userID, opts)
		if err != nil {
			writeError(c, err)
			return
		}

		views := service.NewMessageViews(records)
		response.Success(c, &response.ListResponse{Items: views, Count: len(views)})
	}
}

// View 查看消息
func (h *MessageHandler) View(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	id, ok := pathID(c)
	if !ok {
		return
	}

	view, err := h.service.View(c.Request.Context(), userID, id)
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, view)
}

// Edit 编辑草稿
func (h *MessageHandler) Edit(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	id, ok := pathID(c)
	if !ok {
		return
	}

	var r composeRequest
	if err := c.ShouldBindJSON(&r); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	m, err := h.service.UpdateDraft(c.Request.Context(), userID, id, r.input())
	if err != nil {
		writeError(c, err)
		return
	}
	response.SuccessWithMessage(c, "草稿已更新", service.NewMessageView(m))
}

// Send 发送草稿
func (h *MessageHandler) Send(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	id, ok := pathID(c)
	if !ok {
		return
	}

	m, err := h.service.SendDraft(c.Request.Context(), userID, id)
	if err != nil {
		writeError(c, err)
		return
	}
	response.SuccessWithMessage(c, "消息已发送", service.NewMessageView(m))
}

// Delete 删除消息
func (h *MessageHandler) Delete(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	id, ok := pathID(c)
	if !ok {
		return
	}

	if err := h.service.Delete(c.Request.Context(), userID, id); err != nil {
		writeError(c, err)
		return
	}
	response.SuccessWithMessage(c, "消息已删除", gin.H{"id": id})
}

// currentUser 读取当前用户，失败时已写入401响应
func currentUser(c *gin.Context) (uint, bool) {
	id, err := jwt.CurrentUserID(c)
	if err != nil {
		response.Unauthorized(c, "用户未认证")
		return 0, false
	}
	return id, true
}

func pathID(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		response.BadRequest(c, "invalid message ID")
		return 0, false
	}
	return uint(id), true
}

func queryInt(c *gin.Context, key string, def int) int {
	v, err := strconv.Atoi(c.Query(key))
	if err != nil {
		return def
	}
	return v
}

// writeError 将业务错误映射为HTTP状态码
func writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, repository.ErrMessageNotFound),
		errors.Is(err, repository.ErrUserNotFound):
		response.NotFound(c, err.Error())
	case errors.Is(err, service.ErrPermissionDenied):
		response.Forbidden(c, err.Error())
	case errors.Is(err, service.ErrInvalidCredentials):
		response.Unauthorized(c, err.Error())
	case errors.Is(err, service.ErrUserExists):
		response.Conflict(c, err.Error())
	case errors.Is(err, service.ErrRecipientNotFound),
		errors.Is(err, service.ErrSelfMessage),
		errors.Is(err, service.ErrEmptyMessage),
		errors.Is(err, service.ErrNotDraft),
		errors.Is(err, service.ErrInvalidFormat),
		errors.Is(err, service.ErrMissingCredentials),
		errors.Is(err, password.ErrTooShort):
		response.BadRequest(c, err.Error())
	default:
		logger.Error("请求处理失败",
			zap.Error(err),
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
		)
		response.ErrorWithDetails(c, http.StatusInternalServerError, "服务器内部错误", err)
	}
}
