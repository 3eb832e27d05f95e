package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"chatga-go/internal/model"
	"chatga-go/internal/repository"
	"chatga-go/pkg/es"
	"chatga-go/pkg/kafka"
	"chatga-go/pkg/log"
	"chatga-go/pkg/storage"
	"chatga-go/pkg/tasks"

	"gorm.io/gorm"
)

// ErrInvalidKBName 表示知识库标识含有路径元字符等非法内容。
var ErrInvalidKBName = errors.New("非法的知识库标识")

// ErrKnowledgeFileNotFound 表示知识库内不存在该文件。
var ErrKnowledgeFileNotFound = errors.New("文件不存在")

// KnowledgeService 管理知识库与其中文档的生命周期。
// 文档内容存 MinIO，元数据存 MySQL，向量化经 Kafka 异步完成。
type KnowledgeService interface {
	// UploadFile 接收一个完整文档：写对象存储、登记元数据、投递入库任务。
	// 知识库不存在时隐式创建，归属上传者。
	UploadFile(ctx context.Context, kbID string, userID uint, fileName string, reader io.Reader, size int64, contentType string) error
	ListKnowledgeBases(userID uint) ([]string, error)
	ListFiles(kbID string) ([]string, error)
	DeleteFile(ctx context.Context, kbID, fileName string) error
	DeleteKnowledgeBase(ctx context.Context, kbID string) error
}

// knowledgeService 是 KnowledgeService 的实现。
type knowledgeService struct {
	kbRepo repository.KnowledgeRepository
}

// NewKnowledgeService 创建一个新的 KnowledgeService 实例。
func NewKnowledgeService(kbRepo repository.KnowledgeRepository) KnowledgeService {
	return &knowledgeService{kbRepo: kbRepo}
}

// ValidateKBName 校验知识库标识，拒绝路径穿越和空值。
func ValidateKBName(kbID string) bool {
	if kbID == "" {
		return false
	}
	if strings.Contains(kbID, "../") || strings.ContainsAny(kbID, `/\ `) {
		return false
	}
	return true
}

// ObjectKey 返回文档在对象存储中的键。
func ObjectKey(kbID, fileName string) string {
	return fmt.Sprintf("kb/%s/%s", kbID, fileName)
}

// UploadFile 处理一次文档上传。
func (s *knowledgeService) UploadFile(ctx context.Context, kbID string, userID uint, fileName string, reader io.Reader, size int64, contentType string) error {
	if !ValidateKBName(kbID) {
		return ErrInvalidKBName
	}

	// 知识库不存在时创建
	if _, err := s.kbRepo.FindKB(kbID); err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		if err := s.kbRepo.CreateKB(&model.KnowledgeBase{KbID: kbID, UserID: userID}); err != nil {
			return err
		}
		log.Infof("知识库 '%s' 已创建, user_id=%d", kbID, userID)
	}

	objectKey := ObjectKey(kbID, fileName)
	if err := storage.PutObject(ctx, objectKey, reader, size, contentType); err != nil {
		return fmt.Errorf("写入对象存储失败: %w", err)
	}

	// 同名文件重新上传时复用原记录，状态重置为待入库
	if existing, err := s.kbRepo.FindFile(kbID, fileName); err == nil {
		if err := s.kbRepo.UpdateFileStatus(existing.ID, model.FileStatusPending); err != nil {
			return err
		}
	} else if errors.Is(err, gorm.ErrRecordNotFound) {
		file := &model.KnowledgeFile{
			KbID:      kbID,
			FileName:  fileName,
			ObjectKey: objectKey,
			Size:      size,
			Status:    model.FileStatusPending,
		}
		if err := s.kbRepo.CreateFile(file); err != nil {
			return err
		}
	} else {
		return err
	}

	// 投递入库任务，由后台消费者完成切分、嵌入和索引
	return kafka.ProduceIngestTask(tasks.DocIngestTask{
		KbID:      kbID,
		FileName:  fileName,
		ObjectKey: objectKey,
	})
}

// ListKnowledgeBases 列出用户的全部知识库标识。
func (s *knowledgeService) ListKnowledgeBases(userID uint) ([]string, error) {
	kbs, err := s.kbRepo.ListKBsByUser(userID)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(kbs))
	for _, kb := range kbs {
		ids = append(ids, kb.KbID)
	}
	return ids, nil
}

// ListFiles 列出知识库内全部文件名。知识库不存在返回 ErrKnowledgeBaseNotFound。
func (s *knowledgeService) ListFiles(kbID string) ([]string, error) {
	if _, err := s.kbRepo.FindKB(kbID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrKnowledgeBaseNotFound
		}
		return nil, err
	}
	files, err := s.kbRepo.ListFiles(kbID)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(files))
	for _, file := range files {
		names = append(names, file.FileName)
	}
	return names, nil
}

// DeleteFile 删除文档：清向量、清对象、清元数据。
func (s *knowledgeService) DeleteFile(ctx context.Context, kbID, fileName string) error {
	file, err := s.kbRepo.FindFile(kbID, fileName)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrKnowledgeFileNotFound
		}
		return err
	}

	if err := es.DeleteFileChunks(ctx, kbID, fileName); err != nil {
		return fmt.Errorf("删除向量分块失败: %w", err)
	}
	if err := storage.RemoveObject(ctx, file.ObjectKey); err != nil {
		return fmt.Errorf("删除对象失败: %w", err)
	}
	return s.kbRepo.DeleteFile(kbID, fileName)
}

// DeleteKnowledgeBase 删除整个知识库：索引、全部对象和元数据。
func (s *knowledgeService) DeleteKnowledgeBase(ctx context.Context, kbID string) error {
	if _, err := s.kbRepo.FindKB(kbID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrKnowledgeBaseNotFound
		}
		return err
	}

	files, err := s.kbRepo.ListFiles(kbID)
	if err != nil {
		return err
	}
	for _, file := range files {
		if err := storage.RemoveObject(ctx, file.ObjectKey); err != nil {
			log.Warnf("删除对象失败: key=%s, error: %v", file.ObjectKey, err)
		}
	}

	if err := es.DeleteKBIndex(ctx, kbID); err != nil {
		return fmt.Errorf("删除向量索引失败: %w", err)
	}
	return s.kbRepo.DeleteKB(kbID)
}
