// Package tasks 定义了投递到 Kafka 的后台任务结构。
package tasks

// DocIngestTask 描述一次文档向量化入库任务。
// 上传接口写入对象存储后投递该任务，消费端完成切分、嵌入和索引。
type DocIngestTask struct {
	KbID      string `json:"kbId"`
	FileName  string `json:"fileName"`
	ObjectKey string `json:"objectKey"`
}
