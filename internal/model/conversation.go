package model

import "time"

// DefaultConversationTitle 是新建会话的默认标题。
const DefaultConversationTitle = "新的对话"

// 会话列表的两种排序方式。
const (
	OrderByUpdated = "updated" // 最近更新的排在最前
	OrderByCreated = "created" // 按 conv_id 倒序，即最近创建的排在最前
)

// 消息角色，只允许 user 和 system 两种。
const (
	RoleUser   = "user"
	RoleSystem = "system"
)

// Conversation 对应于数据库中的 't_conversation' 表。
// 一个会话只属于一个用户，删除会话会级联删除其全部消息。
type Conversation struct {
	ConvID     uint      `gorm:"primaryKey;autoIncrement;column:conv_id" json:"conv_id"`
	UserID     uint      `gorm:"index;not null;column:user_id" json:"user_id"`
	Title      string    `gorm:"type:varchar(255);not null;column:title" json:"title"`
	CreateTime time.Time `gorm:"autoCreateTime;column:create_time" json:"create_time"`
	UpdateTime time.Time `gorm:"column:update_time" json:"update_time"`
}

func (Conversation) TableName() string {
	return "t_conversation"
}

// Message 对应于数据库中的 't_message' 表。
// 消息创建后不可变，仅随会话删除被级联删除。
type Message struct {
	MsgID       uint      `gorm:"primaryKey;autoIncrement;column:msg_id" json:"msg_id"`
	ConvID      uint      `gorm:"index;not null;column:conv_id" json:"conv_id"`
	Role        string    `gorm:"type:varchar(16);not null;column:role" json:"role"`
	Content     string    `gorm:"type:text;not null;column:content" json:"content"`
	ContentType string    `gorm:"type:varchar(32);not null;column:content_type" json:"content_type"`
	CreateTime  time.Time `gorm:"autoCreateTime;column:create_time" json:"create_time"`
}

func (Message) TableName() string {
	return "t_message"
}
