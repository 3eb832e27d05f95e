package model

// VectorChunk 代表存储在 Elasticsearch 知识库索引中的一个文档分块。
type VectorChunk struct {
	ChunkUID    string    `json:"chunk_uid"` // 唯一标识，file_name + chunk_id
	KbID        string    `json:"kb_id"`
	FileName    string    `json:"file_name"`
	ChunkID     int       `json:"chunk_id"`
	TextContent string    `json:"text_content"`
	Vector      []float32 `json:"vector"` // 文本内容的向量表示
}

// RetrievedChunk 是向量检索命中的一个分块及其相关度得分。
type RetrievedChunk struct {
	FileName    string  `json:"fileName"`
	ChunkID     int     `json:"chunkId"`
	TextContent string  `json:"textContent"`
	Score       float64 `json:"score"`
}
