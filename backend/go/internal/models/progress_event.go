package models

import "time"

// ProgressEvent 定义了发送给进度上报方 (日志、运行存储、Kafka) 的统一结构。
type ProgressEvent struct {
	RunID     string    `json:"run_id"`
	Timestamp time.Time `json:"timestamp"`
	Status    RunStatus `json:"status"`
	Stage     string    `json:"stage"`
	Message   string    `json:"message"`
	Counters  Counters  `json:"counters"`
	Error     string    `json:"error,omitempty"`
}
