package service

import (
	"testing"

	"chatga-go/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateKBName(t *testing.T) {
	valid := []string{"samples", "kb-01", "知识库A", "a.b"}
	for _, name := range valid {
		assert.True(t, ValidateKBName(name), "应接受 %q", name)
	}

	invalid := []string{"", "../etc", "a/b", `a\b`, "a b"}
	for _, name := range invalid {
		assert.False(t, ValidateKBName(name), "应拒绝 %q", name)
	}
}

func TestObjectKey(t *testing.T) {
	assert.Equal(t, "kb/samples/readme.md", ObjectKey("samples", "readme.md"))
}

func TestKnowledgeService_ListKnowledgeBases(t *testing.T) {
	kbRepo := newFakeKnowledgeRepository("samples")
	kbRepo.kbs["other"] = &model.KnowledgeBase{ID: 2, KbID: "other", UserID: 2}
	svc := NewKnowledgeService(kbRepo)

	kbs, err := svc.ListKnowledgeBases(1)
	require.NoError(t, err)
	assert.Equal(t, []string{"samples"}, kbs)

	kbs, err = svc.ListKnowledgeBases(3)
	require.NoError(t, err)
	assert.Empty(t, kbs)
}

func TestKnowledgeService_ListFiles(t *testing.T) {
	kbRepo := newFakeKnowledgeRepository("samples")
	require.NoError(t, kbRepo.CreateFile(&model.KnowledgeFile{ID: 1, KbID: "samples", FileName: "a.txt"}))
	require.NoError(t, kbRepo.CreateFile(&model.KnowledgeFile{ID: 2, KbID: "samples", FileName: "b.txt"}))
	svc := NewKnowledgeService(kbRepo)

	files, err := svc.ListFiles("samples")
	require.NoError(t, err)
	assert.Equal(t, []string{"a.txt", "b.txt"}, files)

	_, err = svc.ListFiles("nope")
	assert.ErrorIs(t, err, ErrKnowledgeBaseNotFound)
}
