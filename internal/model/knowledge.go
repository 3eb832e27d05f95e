package model

import "time"

// 知识库文件的向量化状态。
const (
	FileStatusPending = 0 // 已上传，等待入库
	FileStatusIndexed = 1 // 向量化完成
	FileStatusFailed  = 2 // 入库失败
)

// KnowledgeBase 对应于数据库中的 't_knowledge_base' 表。
// KbID 是对外暴露的知识库标识，也用于拼接向量索引名和对象存储前缀。
type KnowledgeBase struct {
	ID         uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	KbID       string    `gorm:"type:varchar(64);uniqueIndex;not null;column:kb_id" json:"kbId"`
	UserID     uint      `gorm:"not null;column:user_id" json:"userId"`
	CreateTime time.Time `gorm:"autoCreateTime;column:create_time" json:"createTime"`
}

func (KnowledgeBase) TableName() string {
	return "t_knowledge_base"
}

// KnowledgeFile 对应于数据库中的 't_knowledge_file' 表。
// 记录知识库内每个文档的对象存储位置和向量化状态。
type KnowledgeFile struct {
	ID         uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	KbID       string    `gorm:"type:varchar(64);index;not null;column:kb_id" json:"kbId"`
	FileName   string    `gorm:"type:varchar(255);not null;column:file_name" json:"fileName"`
	ObjectKey  string    `gorm:"type:varchar(512);not null;column:object_key" json:"objectKey"`
	Size       int64     `gorm:"not null;column:size" json:"size"`
	Status     int       `gorm:"type:tinyint;not null;default:0;column:status" json:"status"`
	CreateTime time.Time `gorm:"autoCreateTime;column:create_time" json:"createTime"`
}

func (KnowledgeFile) TableName() string {
	return "t_knowledge_file"
}
