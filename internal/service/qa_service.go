package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"chatga-go/internal/config"
	"chatga-go/internal/model"
	"chatga-go/internal/repository"
	"chatga-go/pkg/embedding"
	"chatga-go/pkg/es"
	"chatga-go/pkg/llm"
	"chatga-go/pkg/log"

	"gorm.io/gorm"
)

// ErrKnowledgeBaseNotFound 表示知识库不存在。
var ErrKnowledgeBaseNotFound = errors.New("knowledge base not found")

// PartialFunc 在回答增长时被调用，参数是截至当前生成的完整回答。
// 每次调用的值都是上一次的前缀扩展。
type PartialFunc func(full string) error

// QAService 是回答生成协作方：检索 + 模型推理。
// 流式消费方通过 PartialFunc 观察逐步增长的回答。
type QAService interface {
	// GetKnowledgeBasedAnswer 基于知识库回答问题。
	// 返回最终回答和格式化后的出处列表；知识库不存在返回 ErrKnowledgeBaseNotFound。
	GetKnowledgeBasedAnswer(ctx context.Context, kbID, question string, history []model.QAPair, onPartial PartialFunc) (string, []string, error)
	// Chat 不做检索的普通模型对话。
	Chat(ctx context.Context, question string, history []model.QAPair, onPartial PartialFunc) (string, error)
}

// qaService 是 QAService 的实现。
type qaService struct {
	kbRepo          repository.KnowledgeRepository
	embeddingClient embedding.Client
	llmClient       llm.Client
}

// NewQAService 创建一个新的 QAService 实例。
func NewQAService(kbRepo repository.KnowledgeRepository, embeddingClient embedding.Client, llmClient llm.Client) QAService {
	return &qaService{
		kbRepo:          kbRepo,
		embeddingClient: embeddingClient,
		llmClient:       llmClient,
	}
}

// GetKnowledgeBasedAnswer 执行一次完整的检索增强问答。
func (s *qaService) GetKnowledgeBasedAnswer(ctx context.Context, kbID, question string, history []model.QAPair, onPartial PartialFunc) (string, []string, error) {
	// 1. 解析知识库，不存在立即失败，不做重试
	if _, err := s.kbRepo.FindKB(kbID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", nil, ErrKnowledgeBaseNotFound
		}
		return "", nil, err
	}

	// 2. 向量检索
	vector, err := s.embeddingClient.CreateEmbedding(ctx, question)
	if err != nil {
		return "", nil, fmt.Errorf("failed to embed question: %w", err)
	}
	chunks, err := es.KnnSearch(ctx, kbID, vector, config.Conf.QA.TopK)
	if err != nil {
		return "", nil, fmt.Errorf("failed to search knowledge base: %w", err)
	}

	// 3. 组装消息并流式生成
	messages := composeMessages(buildSystemPrompt(chunks), history, question)
	answer, err := s.streamAnswer(ctx, messages, onPartial)
	if err != nil {
		return "", nil, err
	}

	return answer, formatSources(chunks), nil
}

// Chat 不带检索上下文的对话。
func (s *qaService) Chat(ctx context.Context, question string, history []model.QAPair, onPartial PartialFunc) (string, error) {
	messages := composeMessages("", history, question)
	return s.streamAnswer(ctx, messages, onPartial)
}

// streamAnswer 调用模型并把逐步增长的完整回答交给 onPartial。
func (s *qaService) streamAnswer(ctx context.Context, messages []llm.Message, onPartial PartialFunc) (string, error) {
	var builder strings.Builder
	err := s.llmClient.StreamChat(ctx, messages, func(delta string) error {
		builder.WriteString(delta)
		if onPartial != nil {
			return onPartial(builder.String())
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	return builder.String(), nil
}

// buildSystemPrompt 将检索到的分块拼为 system 提示。
func buildSystemPrompt(chunks []model.RetrievedChunk) string {
	if len(chunks) == 0 {
		return "根据已知信息回答用户问题。本轮没有检索到相关资料，若无法回答请如实说明。"
	}
	var sb strings.Builder
	sb.WriteString("根据下面提供的已知信息，简洁和专业地回答用户的问题。")
	sb.WriteString("如果无法从中得到答案，请说明无法从已知信息中得到答案，不允许编造内容。\n\n已知信息：\n")
	for i, chunk := range chunks {
		sb.WriteString(fmt.Sprintf("[%d] (%s) %s\n", i+1, chunk.FileName, chunk.TextContent))
	}
	return sb.String()
}

// composeMessages 按 system、历史轮次、当前问题的顺序组装消息。
// 历史轮数超过上限时只保留最近的几轮。
func composeMessages(systemPrompt string, history []model.QAPair, question string) []llm.Message {
	maxHistory := config.Conf.QA.HistoryLen
	if len(history) > maxHistory {
		history = history[len(history)-maxHistory:]
	}

	messages := make([]llm.Message, 0, len(history)*2+2)
	if systemPrompt != "" {
		messages = append(messages, llm.Message{Role: "system", Content: systemPrompt})
	}
	for _, pair := range history {
		messages = append(messages, llm.Message{Role: "user", Content: pair[0]})
		messages = append(messages, llm.Message{Role: "assistant", Content: pair[1]})
	}
	messages = append(messages, llm.Message{Role: "user", Content: question})
	return messages
}

// formatSources 将检索分块格式化为出处列表，前端按该格式渲染引用。
func formatSources(chunks []model.RetrievedChunk) []string {
	sources := make([]string, 0, len(chunks))
	for i, chunk := range chunks {
		sources = append(sources, fmt.Sprintf("出处 [%d] %s：\n\n%s\n\n相关度：%.4f\n\n",
			i+1, chunk.FileName, chunk.TextContent, chunk.Score))
	}
	if len(chunks) > 0 {
		log.Infof("[QAService] 本轮引用 %d 个出处", len(chunks))
	}
	return sources
}
