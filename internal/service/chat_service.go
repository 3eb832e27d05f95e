package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"chatga-go/internal/model"
	"chatga-go/internal/repository"
	"chatga-go/pkg/log"

	"github.com/gorilla/websocket"
	"gorm.io/gorm"
)

// FrameWriter 是流式通道的写出口。
// websocket.Conn 直接满足该接口，测试中可以换成内存实现。
type FrameWriter interface {
	WriteMessage(messageType int, data []byte) error
}

// ChatService 实现流式问答通道的单轮协议和非流式问答。
type ChatService interface {
	// HandleTurn 处理通道内的一轮问答。返回非 nil 错误时调用方必须关闭通道；
	// 返回 nil 表示本轮结束（包括上游失败但通道可继续的情况）。
	HandleTurn(ctx context.Context, w FrameWriter, req model.StreamRequest, turn int) error
	// Chat 处理一次非流式问答。知识库不存在时以一轮普通回答的形式返回
	// "not found" 提示，出处列表为空。
	Chat(ctx context.Context, kbID, question string, history []model.QAPair) (*model.ChatMessage, error)
}

// chatService 是 ChatService 的实现。
type chatService struct {
	kbRepo repository.KnowledgeRepository
	qa     QAService
}

// NewChatService 创建一个新的 ChatService 实例。
func NewChatService(kbRepo repository.KnowledgeRepository, qa QAService) ChatService {
	return &chatService{
		kbRepo: kbRepo,
		qa:     qa,
	}
}

// HandleTurn 按固定顺序写帧：start 帧、若干原始文本增量帧、end 帧。
// 同一通道内帧序严格串行，上一轮的 end 帧一定先于下一轮的 start 帧。
func (s *chatService) HandleTurn(ctx context.Context, w FrameWriter, req model.StreamRequest, turn int) error {
	// 1. 解析知识库，缺失时发显式错误并要求关闭通道
	if _, err := s.kbRepo.FindKB(req.KnowledgeBaseID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			payload, _ := json.Marshal(map[string]string{
				"error": fmt.Sprintf("Knowledge base %s not found", req.KnowledgeBaseID),
			})
			_ = w.WriteMessage(websocket.TextMessage, payload)
			return ErrKnowledgeBaseNotFound
		}
		return err
	}

	// 2. start 帧，回显问题并携带轮次计数
	startFrame, _ := json.Marshal(model.StreamStartFrame{
		Question: req.Question,
		Turn:     turn,
		Flag:     "start",
	})
	if err := w.WriteMessage(websocket.TextMessage, startFrame); err != nil {
		return err
	}

	// 3. 流式生成，只下发相对上一次的新增后缀
	lastPrintLen := 0
	_, sources, err := s.qa.GetKnowledgeBasedAnswer(ctx, req.KnowledgeBaseID, req.Question, req.History, func(full string) error {
		if len(full) <= lastPrintLen {
			return nil
		}
		delta := full[lastPrintLen:]
		lastPrintLen = len(full)
		return w.WriteMessage(websocket.TextMessage, []byte(delta))
	})

	endFrame := model.StreamEndFrame{
		Question:         req.Question,
		Turn:             turn,
		Flag:             "end",
		SourcesDocuments: sources,
	}
	if err != nil {
		// 上游失败不拖垮通道：补发带错误标记的 end 帧，本轮到此为止
		log.Errorf("流式问答上游失败: turn=%d, error: %v", turn, err)
		endFrame.SourcesDocuments = []string{}
		endFrame.Error = "AI服务暂时不可用，请稍后重试"
	}
	if endFrame.SourcesDocuments == nil {
		endFrame.SourcesDocuments = []string{}
	}

	payload, _ := json.Marshal(endFrame)
	return w.WriteMessage(websocket.TextMessage, payload)
}

// Chat 非流式问答。
func (s *chatService) Chat(ctx context.Context, kbID, question string, history []model.QAPair) (*model.ChatMessage, error) {
	answer, sources, err := s.qa.GetKnowledgeBasedAnswer(ctx, kbID, question, history, nil)
	if err != nil {
		if errors.Is(err, ErrKnowledgeBaseNotFound) {
			// 软失败：作为一轮普通回答返回，前端按普通消息渲染
			return &model.ChatMessage{
				Question:        question,
				Response:        fmt.Sprintf("Knowledge base %s not found", kbID),
				History:         history,
				SourceDocuments: []string{},
			}, nil
		}
		return nil, err
	}

	return &model.ChatMessage{
		Question:        question,
		Response:        answer,
		History:         append(history, model.QAPair{question, answer}),
		SourceDocuments: sources,
	}, nil
}
