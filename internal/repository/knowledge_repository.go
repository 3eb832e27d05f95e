package repository

import (
	"chatga-go/internal/model"

	"gorm.io/gorm"
)

// KnowledgeRepository 定义了知识库及其文件元数据的持久化操作。
type KnowledgeRepository interface {
	FindKB(kbID string) (*model.KnowledgeBase, error)
	CreateKB(kb *model.KnowledgeBase) error
	DeleteKB(kbID string) error
	ListKBsByUser(userID uint) ([]model.KnowledgeBase, error)

	CreateFile(file *model.KnowledgeFile) error
	FindFile(kbID, fileName string) (*model.KnowledgeFile, error)
	ListFiles(kbID string) ([]model.KnowledgeFile, error)
	UpdateFileStatus(fileID uint, status int) error
	DeleteFile(kbID, fileName string) error
	DeleteFilesByKB(kbID string) error
}

// knowledgeRepository 是 KnowledgeRepository 接口的 GORM 实现。
type knowledgeRepository struct {
	db *gorm.DB
}

// NewKnowledgeRepository 创建一个新的 KnowledgeRepository 实例。
func NewKnowledgeRepository(db *gorm.DB) KnowledgeRepository {
	return &knowledgeRepository{db: db}
}

func (r *knowledgeRepository) FindKB(kbID string) (*model.KnowledgeBase, error) {
	var kb model.KnowledgeBase
	err := r.db.Where("kb_id = ?", kbID).First(&kb).Error
	if err != nil {
		return nil, err
	}
	return &kb, nil
}

func (r *knowledgeRepository) CreateKB(kb *model.KnowledgeBase) error {
	return r.db.Create(kb).Error
}

// DeleteKB 删除知识库记录及其全部文件记录，两步在同一事务中提交。
func (r *knowledgeRepository) DeleteKB(kbID string) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("kb_id = ?", kbID).Delete(&model.KnowledgeFile{}).Error; err != nil {
			return err
		}
		result := tx.Where("kb_id = ?", kbID).Delete(&model.KnowledgeBase{})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
}

func (r *knowledgeRepository) ListKBsByUser(userID uint) ([]model.KnowledgeBase, error) {
	var kbs []model.KnowledgeBase
	err := r.db.Where("user_id = ?", userID).Order("create_time ASC").Find(&kbs).Error
	return kbs, err
}

func (r *knowledgeRepository) CreateFile(file *model.KnowledgeFile) error {
	return r.db.Create(file).Error
}

func (r *knowledgeRepository) FindFile(kbID, fileName string) (*model.KnowledgeFile, error) {
	var file model.KnowledgeFile
	err := r.db.Where("kb_id = ? AND file_name = ?", kbID, fileName).First(&file).Error
	if err != nil {
		return nil, err
	}
	return &file, nil
}

func (r *knowledgeRepository) ListFiles(kbID string) ([]model.KnowledgeFile, error) {
	var files []model.KnowledgeFile
	err := r.db.Where("kb_id = ?", kbID).Order("create_time ASC").Find(&files).Error
	return files, err
}

func (r *knowledgeRepository) UpdateFileStatus(fileID uint, status int) error {
	return r.db.Model(&model.KnowledgeFile{}).Where("id = ?", fileID).Update("status", status).Error
}

func (r *knowledgeRepository) DeleteFile(kbID, fileName string) error {
	result := r.db.Where("kb_id = ? AND file_name = ?", kbID, fileName).Delete(&model.KnowledgeFile{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *knowledgeRepository) DeleteFilesByKB(kbID string) error {
	return r.db.Where("kb_id = ?", kbID).Delete(&model.KnowledgeFile{}).Error
}
