package handler

import (
	"errors"
	"net/http"
	"strconv"

	"chatga-go/internal/model"
	"chatga-go/internal/service"
	"chatga-go/pkg/log"

	"github.com/gin-gonic/gin"
)

// 会话列表单页上限。仓储层不限制 limit，入口处统一封顶。
const maxPageSize = 100

// ConversationHandler 处理会话与消息相关的 API 请求。
type ConversationHandler struct {
	service service.ConversationService
}

// NewConversationHandler 创建一个新的 ConversationHandler。
func NewConversationHandler(service service.ConversationService) *ConversationHandler {
	return &ConversationHandler{service: service}
}

// currentUser 取出 AuthMiddleware 注入的用户对象。
func currentUser(c *gin.Context) (*model.User, bool) {
	value, exists := c.Get("user")
	if !exists {
		c.JSON(http.StatusInternalServerError, gin.H{
			"code":    http.StatusInternalServerError,
			"message": "无法获取用户信息",
		})
		return nil, false
	}
	user, ok := value.(*model.User)
	if !ok || user == nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"code":    http.StatusInternalServerError,
			"message": "用户数据类型错误",
		})
		return nil, false
	}
	return user, true
}

// List 分页获取当前用户的会话列表。
// GET /conversations?offset=0&limit=28&order=updated
func (h *ConversationHandler) List(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}

	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "28"))
	order := c.DefaultQuery("order", model.OrderByUpdated)
	if offset < 0 {
		offset = 0
	}
	if limit <= 0 || limit > maxPageSize {
		limit = maxPageSize
	}

	conversations, err := h.service.List(user.UserID, offset, limit, order)
	if err != nil {
		log.Error("List conversations failed", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"code":    http.StatusInternalServerError,
			"message": "获取失败",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"code":    http.StatusOK,
		"message": "获取成功",
		"data":    conversations,
	})
}

// Create 为当前用户创建一个默认标题的会话。
// POST /conversation
func (h *ConversationHandler) Create(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}

	convID, err := h.service.Create(user.UserID)
	if err != nil {
		log.Error("Create conversation failed", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"code":    http.StatusInternalServerError,
			"message": "创建失败",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"code":    http.StatusOK,
		"message": "创建成功",
		"data":    gin.H{"conv_id": convID},
	})
}

// convIDParam 解析 conv_id 查询参数。
func convIDParam(c *gin.Context) (uint, bool) {
	convID, err := strconv.ParseUint(c.Query("conv_id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"code":    http.StatusBadRequest,
			"message": "无效的 conv_id",
		})
		return 0, false
	}
	return uint(convID), true
}

// UpdateTitle 更新会话标题。
// PUT /conversation?conv_id=1&title=新标题
func (h *ConversationHandler) UpdateTitle(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	convID, ok := convIDParam(c)
	if !ok {
		return
	}
	title := c.Query("title")
	if title == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"code":    http.StatusBadRequest,
			"message": "标题不能为空",
		})
		return
	}

	if err := h.service.UpdateTitle(user.UserID, convID, title); err != nil {
		h.writeConversationError(c, "Update conversation failed", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"code":    http.StatusOK,
		"message": "更新成功",
	})
}

// Delete 删除会话及其全部消息。删除不存在的会话返回 404，不做静默成功。
// DELETE /conversation?conv_id=1
func (h *ConversationHandler) Delete(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	convID, ok := convIDParam(c)
	if !ok {
		return
	}

	if err := h.service.Delete(user.UserID, convID); err != nil {
		h.writeConversationError(c, "Delete conversation failed", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"code":    http.StatusOK,
		"message": "删除成功",
	})
}

// ListMessages 获取会话内的消息，按创建时间升序。
// GET /conversation?conv_id=1
func (h *ConversationHandler) ListMessages(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	convID, ok := convIDParam(c)
	if !ok {
		return
	}

	messages, err := h.service.ListMessages(user.UserID, convID)
	if err != nil {
		h.writeConversationError(c, "List messages failed", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"code":    http.StatusOK,
		"message": "获取成功",
		"data":    messages,
	})
}

// CreateMessage 在会话下创建一条消息。
// POST /message?conv_id=1&role=user&content=hi&content_type=text
func (h *ConversationHandler) CreateMessage(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	convID, ok := convIDParam(c)
	if !ok {
		return
	}

	role := c.Query("role")
	content := c.Query("content")
	contentType := c.DefaultQuery("content_type", "text")

	msgID, err := h.service.CreateMessage(user.UserID, convID, role, content, contentType)
	if err != nil {
		if errors.Is(err, service.ErrInvalidRole) {
			c.JSON(http.StatusBadRequest, gin.H{
				"code":    http.StatusBadRequest,
				"message": "无效的消息角色",
			})
			return
		}
		h.writeConversationError(c, "Create message failed", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"code":    http.StatusOK,
		"message": "创建成功",
		"data":    gin.H{"msg_id": msgID},
	})
}

// writeConversationError 把服务层错误映射为响应。属主不符和不存在同样返回 404。
func (h *ConversationHandler) writeConversationError(c *gin.Context, logMsg string, err error) {
	if errors.Is(err, service.ErrConversationNotFound) {
		c.JSON(http.StatusNotFound, gin.H{
			"code":    http.StatusNotFound,
			"message": "会话不存在",
		})
		return
	}
	log.Error(logMsg, err)
	c.JSON(http.StatusInternalServerError, gin.H{
		"code":    http.StatusInternalServerError,
		"message": "操作失败",
	})
}
