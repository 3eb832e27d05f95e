package handler

import (
	"errors"
	"net/http"

	"chatga-go/internal/model"
	"chatga-go/internal/service"
	"chatga-go/pkg/log"
	"chatga-go/pkg/token"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // 允许所有来源
	},
}

// ChatHandler 负责流式问答通道与非流式问答接口。
type ChatHandler struct {
	chatService service.ChatService
	qaService   service.QAService
	userService service.UserService
	jwtManager  *token.JWTManager
}

// NewChatHandler 创建一个新的 ChatHandler。
func NewChatHandler(chatService service.ChatService, qaService service.QAService, userService service.UserService, jwtManager *token.JWTManager) *ChatHandler {
	return &ChatHandler{
		chatService: chatService,
		qaService:   qaService,
		userService: userService,
		jwtManager:  jwtManager,
	}
}

// StreamChat 处理一个流式问答的 websocket 连接。
// 令牌在连接时经路径参数带入；升级后每个连接串行处理多轮问答，
// 轮次计数从 1 开始递增，直到客户端断开。
func (h *ChatHandler) StreamChat(c *gin.Context) {
	tokenString := c.Param("token")
	username, err := h.jwtManager.Validate(tokenString)
	if err != nil || h.userService.IsTokenRevoked(c.Request.Context(), tokenString) {
		c.JSON(http.StatusUnauthorized, gin.H{
			"code":    http.StatusUnauthorized,
			"message": "Could not validate credentials",
		})
		return
	}
	user, err := h.userService.GetProfile(username)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{
			"code":    http.StatusUnauthorized,
			"message": "Could not validate credentials",
		})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error("WebSocket 升级失败", err)
		return
	}
	defer conn.Close()

	log.Infof("WebSocket 连接已建立，用户: %s", user.Username)

	turn := 1
	for {
		var req model.StreamRequest
		if err := conn.ReadJSON(&req); err != nil {
			log.Warnf("从 WebSocket 读取消息失败: %v", err)
			return
		}

		err := h.chatService.HandleTurn(c.Request.Context(), conn, req, turn)
		if err != nil {
			if !errors.Is(err, service.ErrKnowledgeBaseNotFound) {
				log.Errorf("处理流式问答失败: %v", err)
			}
			// 知识库缺失或写帧失败都关闭通道
			return
		}
		turn++
	}
}

// chatRequest 是非流式问答接口的请求体。
type chatRequest struct {
	KnowledgeBaseID string         `json:"knowledge_base_id" binding:"required"`
	Question        string         `json:"question" binding:"required"`
	History         []model.QAPair `json:"history"`
}

// LocalDocChat 处理一次非流式的知识库问答。
// 知识库不存在时响应体仍是一轮普通回答，response 携带 not found 提示。
// POST /local_doc_qa/local_doc_chat
func (h *ChatHandler) LocalDocChat(c *gin.Context) {
	var req chatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"code":    http.StatusBadRequest,
			"message": "无效的请求负载",
		})
		return
	}

	chatMessage, err := h.chatService.Chat(c.Request.Context(), req.KnowledgeBaseID, req.Question, req.History)
	if err != nil {
		log.Error("LocalDocChat failed", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"code":    http.StatusInternalServerError,
			"message": "AI服务暂时不可用，请稍后重试",
		})
		return
	}
	c.JSON(http.StatusOK, chatMessage)
}

// plainChatRequest 是不带知识库检索的对话请求体。
type plainChatRequest struct {
	Question string         `json:"question" binding:"required"`
	History  []model.QAPair `json:"history"`
}

// Chat 处理一次不做检索的普通模型对话。
// POST /local_doc_qa/chat
func (h *ChatHandler) Chat(c *gin.Context) {
	var req plainChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"code":    http.StatusBadRequest,
			"message": "无效的请求负载",
		})
		return
	}

	answer, err := h.qaService.Chat(c.Request.Context(), req.Question, req.History, nil)
	if err != nil {
		log.Error("Chat failed", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"code":    http.StatusInternalServerError,
			"message": "AI服务暂时不可用，请稍后重试",
		})
		return
	}

	c.JSON(http.StatusOK, model.ChatMessage{
		Question:        req.Question,
		Response:        answer,
		History:         append(req.History, model.QAPair{req.Question, answer}),
		SourceDocuments: []string{},
	})
}
