// Package pipeline 定义了文档入库的核心流程。
package pipeline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"unicode/utf8"

	"chatga-go/internal/config"
	"chatga-go/internal/model"
	"chatga-go/internal/repository"
	"chatga-go/pkg/embedding"
	"chatga-go/pkg/es"
	"chatga-go/pkg/log"
	"chatga-go/pkg/storage"
	"chatga-go/pkg/tasks"
)

// Processor 封装了文档入库的所有依赖和逻辑：
// 从对象存储取回原文、切块、向量化并写入知识库索引。
type Processor struct {
	embeddingClient embedding.Client
	embeddingCfg    config.EmbeddingConfig
	qaCfg           config.QAConfig
	kbRepo          repository.KnowledgeRepository
}

// NewProcessor 创建一个新的 Processor 实例。
func NewProcessor(
	embeddingClient embedding.Client,
	embeddingCfg config.EmbeddingConfig,
	qaCfg config.QAConfig,
	kbRepo repository.KnowledgeRepository,
) *Processor {
	return &Processor{
		embeddingClient: embeddingClient,
		embeddingCfg:    embeddingCfg,
		qaCfg:           qaCfg,
		kbRepo:          kbRepo,
	}
}

// Process 是文档入库的主函数。处理结束后把文件状态写回元数据表，
// 成功为已索引，任何一步失败为失败。
func (p *Processor) Process(ctx context.Context, task tasks.DocIngestTask) error {
	log.Infof("[Processor] 开始处理文档, kb=%s, file=%s", task.KbID, task.FileName)

	file, err := p.kbRepo.FindFile(task.KbID, task.FileName)
	if err != nil {
		return fmt.Errorf("查询文件元数据失败: %w", err)
	}

	err = p.ingest(ctx, task)
	if err != nil {
		if statusErr := p.kbRepo.UpdateFileStatus(file.ID, model.FileStatusFailed); statusErr != nil {
			log.Errorf("[Processor] 更新文件状态为失败时出错: %v", statusErr)
		}
		return err
	}

	if err := p.kbRepo.UpdateFileStatus(file.ID, model.FileStatusIndexed); err != nil {
		return fmt.Errorf("更新文件状态失败: %w", err)
	}
	log.Infof("[Processor] 文档处理成功完成, kb=%s, file=%s", task.KbID, task.FileName)
	return nil
}

func (p *Processor) ingest(ctx context.Context, task tasks.DocIngestTask) error {
	// 1. 从对象存储下载原文
	object, err := storage.GetObject(ctx, task.ObjectKey)
	if err != nil {
		return fmt.Errorf("从对象存储下载文档失败: %w", err)
	}
	defer object.Close()

	buf := new(bytes.Buffer)
	size, err := buf.ReadFrom(object)
	if err != nil {
		return fmt.Errorf("读取对象流失败: %w", err)
	}
	if size == 0 {
		return errors.New("文档内容为空")
	}
	textContent := buf.String()
	log.Infof("[Processor] 步骤1: 文档下载成功, 内容长度: %d 字符", utf8.RuneCountInString(textContent))

	// 2. 文本切块
	chunks := splitText(textContent, p.qaCfg.ChunkSize, p.qaCfg.ChunkOverlap)
	if len(chunks) == 0 {
		return errors.New("未生成任何文本分块")
	}
	log.Infof("[Processor] 步骤2: 文本分块完成, 共生成 %d 个分块", len(chunks))

	// 3. 准备索引，重复入库前先清掉该文件的旧分块（幂等）
	if err := es.EnsureKBIndex(ctx, task.KbID, p.embeddingCfg.Dimensions); err != nil {
		return fmt.Errorf("准备向量索引失败: %w", err)
	}
	if err := es.DeleteFileChunks(ctx, task.KbID, task.FileName); err != nil {
		log.Warnf("[Processor] 清理旧分块失败, kb=%s, file=%s: %v", task.KbID, task.FileName, err)
	}

	// 4. 逐块向量化并索引
	for i, chunk := range chunks {
		vector, err := p.embeddingClient.CreateEmbedding(ctx, chunk)
		if err != nil {
			return fmt.Errorf("分块 %d 向量化失败: %w", i, err)
		}

		doc := model.VectorChunk{
			ChunkUID:    fmt.Sprintf("%s_%d", task.FileName, i),
			KbID:        task.KbID,
			FileName:    task.FileName,
			ChunkID:     i,
			TextContent: chunk,
			Vector:      vector,
		}
		if err := es.IndexChunk(ctx, task.KbID, doc); err != nil {
			return fmt.Errorf("索引分块 %d 失败: %w", i, err)
		}
	}
	log.Infof("[Processor] 步骤4: 全部 %d 个分块向量化并索引完成", len(chunks))
	return nil
}

// splitText 将长文本按指定大小和重叠进行切分，按字符而非字节计数。
func splitText(text string, chunkSize int, chunkOverlap int) []string {
	runes := []rune(text)
	if len(runes) == 0 {
		return nil
	}
	if chunkSize <= chunkOverlap {
		chunkOverlap = 0
	}

	var chunks []string
	step := chunkSize - chunkOverlap
	for i := 0; i < len(runes); i += step {
		end := i + chunkSize
		if end > len(runes) {
			end = len(runes)
		}
		chunks = append(chunks, string(runes[i:end]))
		if end == len(runes) {
			break
		}
	}
	return chunks
}
