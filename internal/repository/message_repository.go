package repository

import (
	"chatga-go/internal/model"

	"gorm.io/gorm"
)

// MessageRepository 定义了消息记录的持久化操作。
type MessageRepository interface {
	// ListByConvID 返回会话内全部消息，按 create_time 升序，同秒按 msg_id 升序。
	ListByConvID(convID uint) ([]model.Message, error)
	// Create 创建一条消息并返回新的 msg_id。
	Create(convID uint, role, content, contentType string) (uint, error)
	// DeleteByConvID 删除会话内全部消息，仅作为会话删除的一部分使用。
	DeleteByConvID(convID uint) error
}

// messageRepository 是 MessageRepository 接口的 GORM 实现。
type messageRepository struct {
	db *gorm.DB
}

// NewMessageRepository 创建一个新的 MessageRepository 实例。
func NewMessageRepository(db *gorm.DB) MessageRepository {
	return &messageRepository{db: db}
}

// ListByConvID 根据会话 ID 获取消息，按创建时间升序。
func (r *messageRepository) ListByConvID(convID uint) ([]model.Message, error) {
	var messages []model.Message
	err := r.db.Where("conv_id = ?", convID).
		Order("create_time ASC, msg_id ASC").
		Find(&messages).Error
	if err != nil {
		return nil, err
	}
	return messages, nil
}

// Create 创建消息。
func (r *messageRepository) Create(convID uint, role, content, contentType string) (uint, error) {
	message := model.Message{
		ConvID:      convID,
		Role:        role,
		Content:     content,
		ContentType: contentType,
	}
	if err := r.db.Create(&message).Error; err != nil {
		return 0, err
	}
	return message.MsgID, nil
}

// DeleteByConvID 根据会话 ID 删除其中所有消息。
func (r *messageRepository) DeleteByConvID(convID uint) error {
	return r.db.Where("conv_id = ?", convID).Delete(&model.Message{}).Error
}
