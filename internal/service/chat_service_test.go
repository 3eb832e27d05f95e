package service

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"chatga-go/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// fakeKnowledgeRepository 是内存版的 KnowledgeRepository。
type fakeKnowledgeRepository struct {
	kbs   map[string]*model.KnowledgeBase
	files map[string][]*model.KnowledgeFile
}

func newFakeKnowledgeRepository(kbIDs ...string) *fakeKnowledgeRepository {
	r := &fakeKnowledgeRepository{
		kbs:   make(map[string]*model.KnowledgeBase),
		files: make(map[string][]*model.KnowledgeFile),
	}
	for i, kbID := range kbIDs {
		r.kbs[kbID] = &model.KnowledgeBase{ID: uint(i + 1), KbID: kbID, UserID: 1}
	}
	return r
}

func (r *fakeKnowledgeRepository) FindKB(kbID string) (*model.KnowledgeBase, error) {
	kb, ok := r.kbs[kbID]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return kb, nil
}

func (r *fakeKnowledgeRepository) CreateKB(kb *model.KnowledgeBase) error {
	r.kbs[kb.KbID] = kb
	return nil
}

func (r *fakeKnowledgeRepository) DeleteKB(kbID string) error {
	if _, ok := r.kbs[kbID]; !ok {
		return gorm.ErrRecordNotFound
	}
	delete(r.kbs, kbID)
	delete(r.files, kbID)
	return nil
}

func (r *fakeKnowledgeRepository) ListKBsByUser(userID uint) ([]model.KnowledgeBase, error) {
	var result []model.KnowledgeBase
	for _, kb := range r.kbs {
		if kb.UserID == userID {
			result = append(result, *kb)
		}
	}
	return result, nil
}

func (r *fakeKnowledgeRepository) CreateFile(file *model.KnowledgeFile) error {
	r.files[file.KbID] = append(r.files[file.KbID], file)
	return nil
}

func (r *fakeKnowledgeRepository) FindFile(kbID, fileName string) (*model.KnowledgeFile, error) {
	for _, file := range r.files[kbID] {
		if file.FileName == fileName {
			return file, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *fakeKnowledgeRepository) ListFiles(kbID string) ([]model.KnowledgeFile, error) {
	var result []model.KnowledgeFile
	for _, file := range r.files[kbID] {
		result = append(result, *file)
	}
	return result, nil
}

func (r *fakeKnowledgeRepository) UpdateFileStatus(fileID uint, status int) error {
	for _, files := range r.files {
		for _, file := range files {
			if file.ID == fileID {
				file.Status = status
				return nil
			}
		}
	}
	return gorm.ErrRecordNotFound
}

func (r *fakeKnowledgeRepository) DeleteFile(kbID, fileName string) error {
	files := r.files[kbID]
	for i, file := range files {
		if file.FileName == fileName {
			r.files[kbID] = append(files[:i], files[i+1:]...)
			return nil
		}
	}
	return gorm.ErrRecordNotFound
}

func (r *fakeKnowledgeRepository) DeleteFilesByKB(kbID string) error {
	delete(r.files, kbID)
	return nil
}

// fakeQAService 按脚本回放逐步增长的回答。
type fakeQAService struct {
	partials []string
	sources  []string
	err      error
}

func (s *fakeQAService) GetKnowledgeBasedAnswer(ctx context.Context, kbID, question string, history []model.QAPair, onPartial PartialFunc) (string, []string, error) {
	if s.err != nil {
		return "", nil, s.err
	}
	for _, partial := range s.partials {
		if onPartial != nil {
			if err := onPartial(partial); err != nil {
				return "", nil, err
			}
		}
	}
	answer := ""
	if len(s.partials) > 0 {
		answer = s.partials[len(s.partials)-1]
	}
	return answer, s.sources, nil
}

func (s *fakeQAService) Chat(ctx context.Context, question string, history []model.QAPair, onPartial PartialFunc) (string, error) {
	answer, _, err := s.GetKnowledgeBasedAnswer(ctx, "", question, history, onPartial)
	return answer, err
}

// frameRecorder 记录写出的每一帧，替代真实 websocket 连接。
type frameRecorder struct {
	frames []string
}

func (r *frameRecorder) WriteMessage(messageType int, data []byte) error {
	r.frames = append(r.frames, string(data))
	return nil
}

func TestChatService_HandleTurn(t *testing.T) {
	kbRepo := newFakeKnowledgeRepository("samples")
	qa := &fakeQAService{
		partials: []string{"H", "He", "Hell", "Hello"},
		sources:  []string{"出处 [1] a.txt：\n\ncontent\n\n相关度：0.9000\n\n"},
	}
	svc := NewChatService(kbRepo, qa)

	w := &frameRecorder{}
	err := svc.HandleTurn(context.Background(), w, model.StreamRequest{
		Question:        "hi",
		KnowledgeBaseID: "samples",
	}, 1)
	require.NoError(t, err)

	// start 帧、四个增量帧、end 帧
	require.Len(t, w.frames, 6)

	var start model.StreamStartFrame
	require.NoError(t, json.Unmarshal([]byte(w.frames[0]), &start))
	assert.Equal(t, "hi", start.Question)
	assert.Equal(t, 1, start.Turn)
	assert.Equal(t, "start", start.Flag)

	// 增量帧是纯文本的新增后缀，拼起来正好是完整回答
	assert.Equal(t, []string{"H", "e", "ll", "o"}, w.frames[1:5])

	var end model.StreamEndFrame
	require.NoError(t, json.Unmarshal([]byte(w.frames[5]), &end))
	assert.Equal(t, "hi", end.Question)
	assert.Equal(t, 1, end.Turn)
	assert.Equal(t, "end", end.Flag)
	assert.Equal(t, qa.sources, end.SourcesDocuments)
	assert.Empty(t, end.Error)
}

func TestChatService_HandleTurn_KnowledgeBaseMissing(t *testing.T) {
	svc := NewChatService(newFakeKnowledgeRepository(), &fakeQAService{})

	w := &frameRecorder{}
	err := svc.HandleTurn(context.Background(), w, model.StreamRequest{
		Question:        "hi",
		KnowledgeBaseID: "nope",
	}, 1)
	assert.ErrorIs(t, err, ErrKnowledgeBaseNotFound)

	// 只有一条显式错误帧，没有 start/end
	require.Len(t, w.frames, 1)
	var payload map[string]string
	require.NoError(t, json.Unmarshal([]byte(w.frames[0]), &payload))
	assert.Equal(t, "Knowledge base nope not found", payload["error"])
}

func TestChatService_HandleTurn_UpstreamFailure(t *testing.T) {
	kbRepo := newFakeKnowledgeRepository("samples")
	qa := &fakeQAService{err: errors.New("model unavailable")}
	svc := NewChatService(kbRepo, qa)

	w := &frameRecorder{}
	err := svc.HandleTurn(context.Background(), w, model.StreamRequest{
		Question:        "hi",
		KnowledgeBaseID: "samples",
	}, 2)
	// 上游失败不关闭通道
	require.NoError(t, err)

	require.Len(t, w.frames, 2)

	var end model.StreamEndFrame
	require.NoError(t, json.Unmarshal([]byte(w.frames[1]), &end))
	assert.Equal(t, "end", end.Flag)
	assert.Equal(t, 2, end.Turn)
	assert.NotEmpty(t, end.Error)
	assert.NotNil(t, end.SourcesDocuments)
	assert.Empty(t, end.SourcesDocuments)
}

func TestChatService_HandleTurn_EmptyAnswer(t *testing.T) {
	kbRepo := newFakeKnowledgeRepository("samples")
	qa := &fakeQAService{partials: nil, sources: nil}
	svc := NewChatService(kbRepo, qa)

	w := &frameRecorder{}
	err := svc.HandleTurn(context.Background(), w, model.StreamRequest{
		Question:        "hi",
		KnowledgeBaseID: "samples",
	}, 1)
	require.NoError(t, err)

	// 没有增量帧，end 帧的出处列表是空数组而不是 null
	require.Len(t, w.frames, 2)
	assert.Contains(t, w.frames[1], `"sources_documents":[]`)
}

func TestChatService_Chat(t *testing.T) {
	kbRepo := newFakeKnowledgeRepository("samples")
	qa := &fakeQAService{
		partials: []string{"你好"},
		sources:  []string{"出处 [1] a.txt：\n\ncontent\n\n相关度：0.9000\n\n"},
	}
	svc := NewChatService(kbRepo, qa)

	history := []model.QAPair{{"之前的问题", "之前的回答"}}
	msg, err := svc.Chat(context.Background(), "samples", "hi", history)
	require.NoError(t, err)
	assert.Equal(t, "hi", msg.Question)
	assert.Equal(t, "你好", msg.Response)
	assert.Equal(t, qa.sources, msg.SourceDocuments)
	// 历史追加了本轮问答
	require.Len(t, msg.History, 2)
	assert.Equal(t, model.QAPair{"hi", "你好"}, msg.History[1])
}

func TestChatService_Chat_KnowledgeBaseMissing(t *testing.T) {
	svc := NewChatService(newFakeKnowledgeRepository(), &fakeQAService{err: ErrKnowledgeBaseNotFound})

	msg, err := svc.Chat(context.Background(), "nope", "hi", nil)
	// 软失败：以普通回答的形式返回
	require.NoError(t, err)
	assert.Equal(t, "Knowledge base nope not found", msg.Response)
	assert.Empty(t, msg.SourceDocuments)
	assert.Empty(t, msg.History)
}
