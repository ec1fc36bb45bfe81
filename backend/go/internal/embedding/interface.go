package embedding

import "context"

// Embedding 是单个 embedding 提供商的最小接口。分批、限流与响应校验由
// ingestion/embeddings.BatchEmbedder 完成，这里只负责一次远程调用。
type Embedding interface {
	// EmbedBatch 返回与 texts 按下标对齐的向量。
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// ModelType 对应配置项 embedding.provider。
type ModelType string

const (
	OpenAI      ModelType = "openai"
	Gemini      ModelType = "gemini"
	Ollama      ModelType = "ollama"
	HuggingFace ModelType = "huggingface"
)

// Supported reports whether p names a known provider.
func Supported(p string) bool {
	switch ModelType(p) {
	case OpenAI, Gemini, Ollama, HuggingFace:
		return true
	}
	return false
}
