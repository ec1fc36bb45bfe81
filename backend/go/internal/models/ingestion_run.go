package models

import (
	"time"
)

// RunStatus 定义了一次摄取运行的几种可能状态
type RunStatus string

const (
	RunStatusPending   RunStatus = "pending"
	RunStatusRunning   RunStatus = "running"
	RunStatusSucceeded RunStatus = "succeeded"
	RunStatusFailed    RunStatus = "failed"
)

// Terminal reports whether no further transitions can follow s.
func (s RunStatus) Terminal() bool {
	return s == RunStatusSucceeded || s == RunStatusFailed
}

// Counters 是一次运行的单调进度计数器
type Counters struct {
	DocumentsLoaded     int `json:"documents_loaded" bson:"documents_loaded"`
	ChunksProduced      int `json:"chunks_produced" bson:"chunks_produced"`
	EmbeddingsGenerated int `json:"embeddings_generated" bson:"embeddings_generated"`
	BatchesUpserted     int `json:"batches_upserted" bson:"batches_upserted"`
	TotalBatches        int `json:"total_batches" bson:"total_batches"`
}

// IngestionRun 代表一个持久化的摄取运行记录
type IngestionRun struct {
	ID          string    `json:"run_id" bson:"_id"`                                    // 运行唯一ID (UUID string)
	RepoURL     string    `json:"repo_url" bson:"repo_url"`                             // 仓库地址
	Branch      string    `json:"branch" bson:"branch"`                                 // 分支
	Index       string    `json:"index" bson:"index"`                                   // 目标向量索引
	Status      RunStatus `json:"status" bson:"status"`                                 // 运行当前状态
	Stage       string    `json:"stage,omitempty" bson:"stage,omitempty"`               // 当前 (或失败时) 所处阶段
	Counters    Counters  `json:"counters" bson:"counters"`                             // 进度计数
	Error       string    `json:"error,omitempty" bson:"error,omitempty"`               // 失败时的错误信息
	SubmittedAt time.Time `json:"submitted_at" bson:"submitted_at"`                     // 提交时间
	UpdatedAt   time.Time `json:"updated_at" bson:"updated_at"`                         // 最近一次更新时间
	CompletedAt time.Time `json:"completed_at,omitempty" bson:"completed_at,omitempty"` // 完成时间
}

// Snapshot 将运行记录的当前状态表示为一个进度事件。
func (r *IngestionRun) Snapshot() ProgressEvent {
	return ProgressEvent{
		RunID:     r.ID,
		Timestamp: r.UpdatedAt,
		Status:    r.Status,
		Stage:     r.Stage,
		Message:   "Current run state",
		Counters:  r.Counters,
		Error:     r.Error,
	}
}
