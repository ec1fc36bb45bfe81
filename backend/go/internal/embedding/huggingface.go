package embedding

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	pkghttp "RepoChat/backend/go/pkg/http"
)

const defaultHuggingFaceURL = "https://api-inference.huggingface.co/pipeline/feature-extraction/"

// HuggingFaceModel 是一个用于 Hugging Face Inference API 的 Embedding 客户端。
type HuggingFaceModel struct {
	client  *pkghttp.Client
	model   string
	apiKey  string
	baseURL string
}

type huggingFaceRequest struct {
	Inputs  []string        `json:"inputs"`
	Options map[string]bool `json:"options"`
}

// NewHuggingFaceModel 创建一个新的 HuggingFaceModel 客户端。
// baseURL 为空时使用公共 feature-extraction 端点，模型名追加在其后。
func NewHuggingFaceModel(client *pkghttp.Client, apiKey, modelName, baseURL string) (*HuggingFaceModel, error) {
	if client == nil {
		return nil, fmt.Errorf("huggingface: http client is required")
	}
	if baseURL == "" {
		baseURL = defaultHuggingFaceURL
	}
	if !strings.HasSuffix(baseURL, "/") {
		baseURL += "/"
	}
	return &HuggingFaceModel{client: client, model: modelName, apiKey: apiKey, baseURL: baseURL}, nil
}

// EmbedBatch 使用 Hugging Face Inference API 为一批文本生成嵌入向量。
func (m *HuggingFaceModel) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	header := http.Header{}
	if m.apiKey != "" {
		header.Set("Authorization", "Bearer "+m.apiKey)
	}
	body := huggingFaceRequest{
		Inputs:  texts,
		Options: map[string]bool{"wait_for_model": true}, // 等待模型加载。
	}

	var embeddings [][]float32
	if err := m.client.PostJSON(ctx, m.baseURL+m.model, header, body, &embeddings); err != nil {
		return nil, fmt.Errorf("huggingface feature extraction: %w", err)
	}
	return embeddings, nil
}
