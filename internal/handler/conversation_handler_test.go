package handler

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"chatga-go/internal/model"
	"chatga-go/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeConversationService 覆盖 handler 测试需要的最小行为：
// 属主为 1 的会话 10 存在，其余一律不存在。
type fakeConversationService struct {
	conversations []model.Conversation
	messages      []model.Message
}

func (s *fakeConversationService) List(userID uint, offset, limit int, order string) ([]model.Conversation, error) {
	return s.conversations, nil
}

func (s *fakeConversationService) Create(userID uint) (uint, error) { return 10, nil }

func (s *fakeConversationService) owned(userID, convID uint) error {
	if userID != 1 || convID != 10 {
		return service.ErrConversationNotFound
	}
	return nil
}

func (s *fakeConversationService) UpdateTitle(userID, convID uint, title string) error {
	return s.owned(userID, convID)
}

func (s *fakeConversationService) Delete(userID, convID uint) error {
	return s.owned(userID, convID)
}

func (s *fakeConversationService) ListMessages(userID, convID uint) ([]model.Message, error) {
	if err := s.owned(userID, convID); err != nil {
		return nil, err
	}
	return s.messages, nil
}

func (s *fakeConversationService) CreateMessage(userID, convID uint, role, content, contentType string) (uint, error) {
	if role != model.RoleUser && role != model.RoleSystem {
		return 0, service.ErrInvalidRole
	}
	if err := s.owned(userID, convID); err != nil {
		return 0, err
	}
	return 7, nil
}

// newConversationRouter 注册路由并伪造认证中间件注入用户。
func newConversationRouter(svc service.ConversationService, userID uint) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set("user", &model.User{UserID: userID, Username: "alice"})
	})
	h := NewConversationHandler(svc)
	r.GET("/conversations", h.List)
	r.POST("/conversation", h.Create)
	r.GET("/conversation", h.ListMessages)
	r.PUT("/conversation", h.UpdateTitle)
	r.DELETE("/conversation", h.Delete)
	r.POST("/message", h.CreateMessage)
	return r
}

func doRequest(router *gin.Engine, method, target string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestConversationHandler_List(t *testing.T) {
	svc := &fakeConversationService{
		conversations: []model.Conversation{{ConvID: 10, UserID: 1, Title: model.DefaultConversationTitle}},
	}
	router := newConversationRouter(svc, 1)

	w := doRequest(router, http.MethodGet, "/conversations")
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Code int                  `json:"code"`
		Data []model.Conversation `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Data, 1)
	assert.Equal(t, uint(10), resp.Data[0].ConvID)
	assert.Equal(t, model.DefaultConversationTitle, resp.Data[0].Title)
}

func TestConversationHandler_Create(t *testing.T) {
	router := newConversationRouter(&fakeConversationService{}, 1)

	w := doRequest(router, http.MethodPost, "/conversation")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"conv_id":10`)
}

func TestConversationHandler_UpdateTitle(t *testing.T) {
	router := newConversationRouter(&fakeConversationService{}, 1)

	t.Run("success", func(t *testing.T) {
		w := doRequest(router, http.MethodPut, "/conversation?conv_id=10&title=%E6%96%B0%E6%A0%87%E9%A2%98")
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("empty title", func(t *testing.T) {
		w := doRequest(router, http.MethodPut, "/conversation?conv_id=10")
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("missing conversation", func(t *testing.T) {
		w := doRequest(router, http.MethodPut, "/conversation?conv_id=999&title=x")
		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}

func TestConversationHandler_Delete(t *testing.T) {
	router := newConversationRouter(&fakeConversationService{}, 1)

	w := doRequest(router, http.MethodDelete, "/conversation?conv_id=10")
	assert.Equal(t, http.StatusOK, w.Code)

	// 不存在的会话不做静默成功
	w = doRequest(router, http.MethodDelete, "/conversation?conv_id=999")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = doRequest(router, http.MethodDelete, "/conversation?conv_id=abc")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestConversationHandler_OwnershipHiddenAsNotFound(t *testing.T) {
	// 同一个会话换一个用户访问，响应与不存在无差别
	router := newConversationRouter(&fakeConversationService{}, 2)

	w := doRequest(router, http.MethodPut, "/conversation?conv_id=10&title=x")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = doRequest(router, http.MethodGet, "/conversation?conv_id=10")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestConversationHandler_CreateMessage(t *testing.T) {
	router := newConversationRouter(&fakeConversationService{}, 1)

	t.Run("success", func(t *testing.T) {
		w := doRequest(router, http.MethodPost, "/message?conv_id=10&role=user&content=hi")
		require.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), `"msg_id":7`)
	})

	t.Run("invalid role", func(t *testing.T) {
		w := doRequest(router, http.MethodPost, "/message?conv_id=10&role=assistant&content=hi")
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("missing conversation", func(t *testing.T) {
		w := doRequest(router, http.MethodPost, "/message?conv_id=999&role=user&content=hi")
		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}
