// Package es 提供了基于 Elasticsearch 的向量库客户端。
// 每个知识库对应一个独立索引（index_prefix + 知识库ID），
// 分块向量以 dense_vector + cosine 相似度存储。
package es

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"chatga-go/internal/config"
	"chatga-go/internal/model"
	"chatga-go/pkg/log"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"
)

var ESClient *elasticsearch.Client

var indexPrefix string

// InitES 初始化 Elasticsearch 客户端。索引按知识库在首次写入时创建。
func InitES(esCfg config.ElasticsearchConfig) error {
	cfg := elasticsearch.Config{
		Addresses: []string{esCfg.Addresses},
		Username:  esCfg.Username,
		Password:  esCfg.Password,
		Transport: &http.Transport{
			TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
		},
	}
	client, err := elasticsearch.NewClient(cfg)
	if err != nil {
		return err
	}
	ESClient = client
	indexPrefix = esCfg.IndexPrefix
	if indexPrefix == "" {
		indexPrefix = "kb_"
	}
	return nil
}

// IndexName 返回知识库对应的索引名。
func IndexName(kbID string) string {
	return indexPrefix + strings.ToLower(kbID)
}

// EnsureKBIndex 确保知识库的向量索引存在，不存在则按固定 mapping 创建。
func EnsureKBIndex(ctx context.Context, kbID string, dims int) error {
	indexName := IndexName(kbID)
	res, err := ESClient.Indices.Exists([]string{indexName}, ESClient.Indices.Exists.WithContext(ctx))
	if err != nil {
		return err
	}
	if !res.IsError() && res.StatusCode == http.StatusOK {
		return nil
	}
	if res.StatusCode != http.StatusNotFound {
		return fmt.Errorf("检查索引是否存在时收到意外的状态码: %d", res.StatusCode)
	}

	mapping := fmt.Sprintf(`{
		"mappings": {
			"properties": {
				"chunk_uid": { "type": "keyword" },
				"kb_id": { "type": "keyword" },
				"file_name": { "type": "keyword" },
				"chunk_id": { "type": "integer" },
				"text_content": { "type": "text" },
				"vector": {
					"type": "dense_vector",
					"dims": %d,
					"index": true,
					"similarity": "cosine"
				}
			}
		}
	}`, dims)

	res, err = ESClient.Indices.Create(
		indexName,
		ESClient.Indices.Create.WithContext(ctx),
		ESClient.Indices.Create.WithBody(strings.NewReader(mapping)),
	)
	if err != nil {
		return err
	}
	if res.IsError() {
		log.Errorf("创建索引 '%s' 时 Elasticsearch 返回错误: %s", indexName, res.String())
		return errors.New("创建索引时 Elasticsearch 返回错误")
	}

	log.Infof("索引 '%s' 创建成功", indexName)
	return nil
}

// IndexChunk 将单个文档分块写入知识库索引。
func IndexChunk(ctx context.Context, kbID string, chunk model.VectorChunk) error {
	docBytes, err := json.Marshal(chunk)
	if err != nil {
		return err
	}

	req := esapi.IndexRequest{
		Index:      IndexName(kbID),
		DocumentID: chunk.ChunkUID,
		Body:       bytes.NewReader(docBytes),
		Refresh:    "true",
	}

	res, err := req.Do(ctx, ESClient)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	if res.IsError() {
		log.Errorf("索引分块到 Elasticsearch 出错: %s", res.String())
		return errors.New("failed to index chunk")
	}
	return nil
}

// DeleteFileChunks 删除知识库索引中属于某个文件的全部分块。
func DeleteFileChunks(ctx context.Context, kbID, fileName string) error {
	query := map[string]interface{}{
		"query": map[string]interface{}{
			"term": map[string]interface{}{"file_name": fileName},
		},
	}
	body, err := json.Marshal(query)
	if err != nil {
		return err
	}

	res, err := ESClient.DeleteByQuery(
		[]string{IndexName(kbID)},
		bytes.NewReader(body),
		ESClient.DeleteByQuery.WithContext(ctx),
		ESClient.DeleteByQuery.WithRefresh(true),
	)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	if res.IsError() && res.StatusCode != http.StatusNotFound {
		return fmt.Errorf("delete by query failed: %s", res.String())
	}
	return nil
}

// DeleteKBIndex 删除知识库对应的整个索引。索引不存在不视为错误。
func DeleteKBIndex(ctx context.Context, kbID string) error {
	res, err := ESClient.Indices.Delete(
		[]string{IndexName(kbID)},
		ESClient.Indices.Delete.WithContext(ctx),
	)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	if res.IsError() && res.StatusCode != http.StatusNotFound {
		return fmt.Errorf("delete index failed: %s", res.String())
	}
	return nil
}

// KnnSearch 在知识库索引内做向量近邻检索，返回得分最高的 topK 个分块。
func KnnSearch(ctx context.Context, kbID string, vector []float32, topK int) ([]model.RetrievedChunk, error) {
	query := map[string]interface{}{
		"knn": map[string]interface{}{
			"field":          "vector",
			"query_vector":   vector,
			"k":              topK,
			"num_candidates": topK * 10,
		},
		"size":    topK,
		"_source": []string{"file_name", "chunk_id", "text_content"},
	}
	body, err := json.Marshal(query)
	if err != nil {
		return nil, err
	}

	res, err := ESClient.Search(
		ESClient.Search.WithContext(ctx),
		ESClient.Search.WithIndex(IndexName(kbID)),
		ESClient.Search.WithBody(bytes.NewReader(body)),
	)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()

	if res.IsError() {
		return nil, fmt.Errorf("knn search failed: %s", res.String())
	}

	var parsed struct {
		Hits struct {
			Hits []struct {
				Score  float64 `json:"_score"`
				Source struct {
					FileName    string `json:"file_name"`
					ChunkID     int    `json:"chunk_id"`
					TextContent string `json:"text_content"`
				} `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("failed to decode search response: %w", err)
	}

	chunks := make([]model.RetrievedChunk, 0, len(parsed.Hits.Hits))
	for _, hit := range parsed.Hits.Hits {
		chunks = append(chunks, model.RetrievedChunk{
			FileName:    hit.Source.FileName,
			ChunkID:     hit.Source.ChunkID,
			TextContent: hit.Source.TextContent,
			Score:       hit.Score,
		})
	}
	return chunks, nil
}
