package service

import (
	"errors"

	"chatga-go/internal/model"
	"chatga-go/internal/repository"

	"gorm.io/gorm"
)

// ErrConversationNotFound 表示会话不存在。
// 会话存在但不属于当前用户时也返回它，不向非属主确认资源存在。
var ErrConversationNotFound = errors.New("会话不存在")

// ErrInvalidRole 表示消息角色不在 user/system 之内。
var ErrInvalidRole = errors.New("无效的消息角色")

// ConversationService 定义了会话与消息的业务操作。
// 所有按 conv_id 参数化的操作都以 userID 做属主校验。
type ConversationService interface {
	List(userID uint, offset, limit int, order string) ([]model.Conversation, error)
	Create(userID uint) (uint, error)
	UpdateTitle(userID, convID uint, title string) error
	Delete(userID, convID uint) error
	ListMessages(userID, convID uint) ([]model.Message, error)
	CreateMessage(userID, convID uint, role, content, contentType string) (uint, error)
}

// conversationService 是 ConversationService 接口的实现。
type conversationService struct {
	convRepo repository.ConversationRepository
	msgRepo  repository.MessageRepository
}

// NewConversationService 创建一个新的 ConversationService 实例。
func NewConversationService(convRepo repository.ConversationRepository, msgRepo repository.MessageRepository) ConversationService {
	return &conversationService{
		convRepo: convRepo,
		msgRepo:  msgRepo,
	}
}

// List 分页获取用户的会话列表。
func (s *conversationService) List(userID uint, offset, limit int, order string) ([]model.Conversation, error) {
	return s.convRepo.List(userID, offset, limit, order)
}

// Create 为用户创建一个默认标题的会话。
func (s *conversationService) Create(userID uint) (uint, error) {
	return s.convRepo.Create(userID)
}

// requireOwned 校验会话存在且属于该用户。
// 不存在和不属于走同一个错误，调用方看不出差别。
func (s *conversationService) requireOwned(userID, convID uint) error {
	conversation, err := s.convRepo.FindByID(convID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrConversationNotFound
		}
		return err
	}
	if conversation.UserID != userID {
		return ErrConversationNotFound
	}
	return nil
}

// UpdateTitle 更新会话标题，同时刷新 update_time。
func (s *conversationService) UpdateTitle(userID, convID uint, title string) error {
	if err := s.requireOwned(userID, convID); err != nil {
		return err
	}
	err := s.convRepo.UpdateTitle(convID, title)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrConversationNotFound
	}
	return err
}

// Delete 删除会话及其全部消息。
func (s *conversationService) Delete(userID, convID uint) error {
	if err := s.requireOwned(userID, convID); err != nil {
		return err
	}
	err := s.convRepo.Delete(convID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrConversationNotFound
	}
	return err
}

// ListMessages 返回会话内全部消息，按创建时间升序。
func (s *conversationService) ListMessages(userID, convID uint) ([]model.Message, error) {
	if err := s.requireOwned(userID, convID); err != nil {
		return nil, err
	}
	return s.msgRepo.ListByConvID(convID)
}

// CreateMessage 在会话下创建一条消息。
func (s *conversationService) CreateMessage(userID, convID uint, role, content, contentType string) (uint, error) {
	if role != model.RoleUser && role != model.RoleSystem {
		return 0, ErrInvalidRole
	}
	if err := s.requireOwned(userID, convID); err != nil {
		return 0, err
	}
	return s.msgRepo.Create(convID, role, content, contentType)
}
