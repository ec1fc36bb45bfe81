package embedding

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	ollama "github.com/ollama/ollama/api"
)

const (
	defaultOllamaURL   = "http://localhost:11434"
	defaultOllamaModel = "nomic-embed-text"
)

// OllamaModel 通过本地 Ollama 服务生成代码块的嵌入向量。
type OllamaModel struct {
	client *ollama.Client
	model  string
}

// NewOllamaModel 创建 Ollama 客户端，model 与 baseURL 为空时使用默认值。
func NewOllamaModel(model, baseURL string) (*OllamaModel, error) {
	if baseURL == "" {
		baseURL = defaultOllamaURL
	}
	if model == "" {
		model = defaultOllamaModel
	}
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid ollama base URL %q: %w", baseURL, err)
	}
	// 本地模型首次加载较慢
	hc := &http.Client{Timeout: 120 * time.Second}
	return &OllamaModel{client: ollama.NewClient(u, hc), model: model}, nil
}

// EmbedBatch 调用 /api/embed，一次请求处理整批文本。
func (m *OllamaModel) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	resp, err := m.client.Embed(ctx, &ollama.EmbedRequest{Model: m.model, Input: texts})
	if err != nil {
		return nil, fmt.Errorf("ollama embed (%s, %d texts): %w", m.model, len(texts), err)
	}
	return resp.Embeddings, nil
}
