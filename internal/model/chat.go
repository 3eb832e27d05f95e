package model

// QAPair 是一轮历史问答，下标 0 为问题，下标 1 为回答。
type QAPair [2]string

// ChatMessage 是非流式问答接口的响应体。
// 知识库不存在时，Response 携带一句 "not found" 提示、SourceDocuments 为空，
// 作为一轮普通回答返回，前端按普通消息渲染。
type ChatMessage struct {
	Question        string   `json:"question"`
	Response        string   `json:"response"`
	History         []QAPair `json:"history"`
	SourceDocuments []string `json:"source_documents"`
}

// StreamRequest 是流式问答通道内单轮请求的消息体。
type StreamRequest struct {
	Question        string   `json:"question"`
	History         []QAPair `json:"history"`
	KnowledgeBaseID string   `json:"knowledge_base_id"`
}

// StreamStartFrame 是单轮流式回答的起始帧。
type StreamStartFrame struct {
	Question string `json:"question"`
	Turn     int    `json:"turn"`
	Flag     string `json:"flag"` // 固定为 "start"
}

// StreamEndFrame 是单轮流式回答的结束帧，总在所有增量帧之后发出。
// 字段名 sources_documents 沿用既有线上协议，客户端依赖该拼写。
type StreamEndFrame struct {
	Question         string   `json:"question"`
	Turn             int      `json:"turn"`
	Flag             string   `json:"flag"` // 固定为 "end"
	SourcesDocuments []string `json:"sources_documents"`
	Error            string   `json:"error,omitempty"`
}
