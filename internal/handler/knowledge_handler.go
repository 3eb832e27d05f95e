package handler

import (
	"errors"
	"net/http"

	"chatga-go/internal/service"
	"chatga-go/pkg/log"

	"github.com/gin-gonic/gin"
)

// KnowledgeHandler 负责知识库与文档相关的接口。
type KnowledgeHandler struct {
	knowledgeService service.KnowledgeService
}

// NewKnowledgeHandler 创建一个新的 KnowledgeHandler。
func NewKnowledgeHandler(knowledgeService service.KnowledgeService) *KnowledgeHandler {
	return &KnowledgeHandler{knowledgeService: knowledgeService}
}

// UploadFile 上传一个文档到指定知识库，并触发后台索引。
// POST /local_doc_qa/upload_file (multipart)
func (h *KnowledgeHandler) UploadFile(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}

	kbID := c.PostForm("knowledge_base_id")
	if !service.ValidateKBName(kbID) {
		c.JSON(http.StatusForbidden, gin.H{
			"code":    http.StatusForbidden,
			"message": "非法的知识库名称",
		})
		return
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"code":    http.StatusBadRequest,
			"message": "缺少上传文件",
		})
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"code":    http.StatusBadRequest,
			"message": "无法读取上传文件",
		})
		return
	}
	defer file.Close()

	contentType := fileHeader.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	if err := h.knowledgeService.UploadFile(c.Request.Context(), kbID, user.UserID, fileHeader.Filename, file, fileHeader.Size, contentType); err != nil {
		log.Error("上传文档失败", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"code":    http.StatusInternalServerError,
			"message": "上传文档失败",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"code":    http.StatusOK,
		"message": "文件上传成功，正在后台索引",
		"data": gin.H{
			"knowledge_base_id": kbID,
			"file_name":         fileHeader.Filename,
		},
	})
}

// ListKnowledgeBases 列出当前用户的全部知识库。
// GET /local_doc_qa/list_knowledge_bases
func (h *KnowledgeHandler) ListKnowledgeBases(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}

	kbs, err := h.knowledgeService.ListKnowledgeBases(user.UserID)
	if err != nil {
		log.Error("查询知识库列表失败", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"code":    http.StatusInternalServerError,
			"message": "查询知识库列表失败",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"code":    http.StatusOK,
		"message": "success",
		"data":    gin.H{"knowledge_bases": kbs},
	})
}

// ListFiles 列出指定知识库下的全部文档名。
// GET /local_doc_qa/list_files?knowledge_base_id=xx
func (h *KnowledgeHandler) ListFiles(c *gin.Context) {
	kbID := c.Query("knowledge_base_id")
	if !service.ValidateKBName(kbID) {
		c.JSON(http.StatusForbidden, gin.H{
			"code":    http.StatusForbidden,
			"message": "非法的知识库名称",
		})
		return
	}

	files, err := h.knowledgeService.ListFiles(kbID)
	if err != nil {
		writeKnowledgeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"code":    http.StatusOK,
		"message": "success",
		"data":    gin.H{"files": files},
	})
}

// DeleteFile 删除知识库中的一个文档及其索引。
// DELETE /local_doc_qa/delete_file?knowledge_base_id=xx&file_name=yy
func (h *KnowledgeHandler) DeleteFile(c *gin.Context) {
	kbID := c.Query("knowledge_base_id")
	fileName := c.Query("file_name")
	if !service.ValidateKBName(kbID) || fileName == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"code":    http.StatusBadRequest,
			"message": "无效的请求参数",
		})
		return
	}

	if err := h.knowledgeService.DeleteFile(c.Request.Context(), kbID, fileName); err != nil {
		writeKnowledgeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"code":    http.StatusOK,
		"message": "文件删除成功",
	})
}

// DeleteKnowledgeBase 删除整个知识库及其全部文档与索引。
// DELETE /local_doc_qa/delete_knowledge_base?knowledge_base_id=xx
func (h *KnowledgeHandler) DeleteKnowledgeBase(c *gin.Context) {
	kbID := c.Query("knowledge_base_id")
	if !service.ValidateKBName(kbID) {
		c.JSON(http.StatusBadRequest, gin.H{
			"code":    http.StatusBadRequest,
			"message": "无效的请求参数",
		})
		return
	}

	if err := h.knowledgeService.DeleteKnowledgeBase(c.Request.Context(), kbID); err != nil {
		writeKnowledgeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"code":    http.StatusOK,
		"message": "知识库删除成功",
	})
}

func writeKnowledgeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrKnowledgeBaseNotFound):
		c.JSON(http.StatusNotFound, gin.H{
			"code":    http.StatusNotFound,
			"message": "知识库不存在",
		})
	case errors.Is(err, service.ErrKnowledgeFileNotFound):
		c.JSON(http.StatusNotFound, gin.H{
			"code":    http.StatusNotFound,
			"message": "文件不存在",
		})
	default:
		log.Error("知识库操作失败", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"code":    http.StatusInternalServerError,
			"message": "服务器内部错误",
		})
	}
}
