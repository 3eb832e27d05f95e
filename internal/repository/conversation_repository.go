package repository

import (
	"time"

	"chatga-go/internal/model"

	"gorm.io/gorm"
)

// ConversationRepository 定义了会话记录的持久化操作。
type ConversationRepository interface {
	// List 分页返回某用户的会话。order 为 "updated" 时按 update_time 倒序，
	// 其他值按 conv_id 倒序。
	List(userID uint, offset, limit int, order string) ([]model.Conversation, error)
	// Create 以默认标题创建会话并返回新的 conv_id。
	Create(userID uint) (uint, error)
	FindByID(convID uint) (*model.Conversation, error)
	// UpdateTitle 更新标题并刷新 update_time。
	UpdateTitle(convID uint, title string) error
	// Delete 删除会话及其全部消息。两个删除在同一个事务中提交，
	// 不允许出现会话已删而消息残留的中间状态。
	Delete(convID uint) error
}

// conversationRepository 是 ConversationRepository 接口的 GORM 实现。
type conversationRepository struct {
	db *gorm.DB
}

// NewConversationRepository 创建一个新的 ConversationRepository 实例。
func NewConversationRepository(db *gorm.DB) ConversationRepository {
	return &conversationRepository{db: db}
}

// List 分页获取用户的会话。
func (r *conversationRepository) List(userID uint, offset, limit int, order string) ([]model.Conversation, error) {
	orderClause := "conv_id DESC"
	if order == model.OrderByUpdated {
		orderClause = "update_time DESC"
	}

	var conversations []model.Conversation
	err := r.db.Where("user_id = ?", userID).
		Order(orderClause).
		Offset(offset).
		Limit(limit).
		Find(&conversations).Error
	if err != nil {
		return nil, err
	}
	return conversations, nil
}

// Create 创建会话，create_time 和 update_time 同为当前时间。
func (r *conversationRepository) Create(userID uint) (uint, error) {
	now := time.Now()
	conversation := model.Conversation{
		UserID:     userID,
		Title:      model.DefaultConversationTitle,
		CreateTime: now,
		UpdateTime: now,
	}
	if err := r.db.Create(&conversation).Error; err != nil {
		return 0, err
	}
	return conversation.ConvID, nil
}

// FindByID 根据会话 ID 查找会话。
func (r *conversationRepository) FindByID(convID uint) (*model.Conversation, error) {
	var conversation model.Conversation
	err := r.db.First(&conversation, convID).Error
	if err != nil {
		return nil, err
	}
	return &conversation, nil
}

// UpdateTitle 更新会话标题并刷新 update_time。
func (r *conversationRepository) UpdateTitle(convID uint, title string) error {
	result := r.db.Model(&model.Conversation{}).
		Where("conv_id = ?", convID).
		Updates(map[string]interface{}{
			"title":       title,
			"update_time": time.Now(),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// Delete 在一个事务内先删消息再删会话。会话不存在时返回 ErrRecordNotFound。
func (r *conversationRepository) Delete(convID uint) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("conv_id = ?", convID).Delete(&model.Message{}).Error; err != nil {
			return err
		}
		result := tx.Delete(&model.Conversation{}, convID)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
}
