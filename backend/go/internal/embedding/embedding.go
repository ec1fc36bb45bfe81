package embedding

import (
	"context"
	"fmt"

	"RepoChat/backend/go/internal/config"
	pkghttp "RepoChat/backend/go/pkg/http"
)

// New 根据配置中的提供商创建 Embedding 实例。
// httpClient 供基于 REST 的提供商 (huggingface) 使用。
func New(ctx context.Context, cfg config.EmbeddingConfig, httpClient *pkghttp.Client) (Embedding, error) {
	if !Supported(cfg.Provider) {
		return nil, fmt.Errorf("unsupported embedding provider %q", cfg.Provider)
	}
	switch ModelType(cfg.Provider) {
	case Gemini:
		return NewGoogleModel(ctx, cfg.APIKey, cfg.Model)
	case OpenAI:
		return NewOpenAIModel(cfg.APIKey, cfg.Model, cfg.BaseURL)
	case HuggingFace:
		return NewHuggingFaceModel(httpClient, cfg.APIKey, cfg.Model, cfg.BaseURL)
	default:
		return NewOllamaModel(cfg.Model, cfg.BaseURL)
	}
}
