package llm

import (
	"log"
	"time"

	"github.com/tpcreator/tpagent/internal/domain"
)

const (
	// EnvMode is the environment variable name for mode selection.
	EnvMode = "TPAGENT_MODE"
	// ModeMock indicates mock mode should be used.
	ModeMock = "MOCK"
)

// NewGenerator creates the provider router for mode. If mode is MOCK every
// provider is served by a MockClient; otherwise the real backends are used.
func NewGenerator(mode string, pingTimeout time.Duration) *Router {
	if mode == ModeMock {
		log.Printf("%s=MOCK detected, using mock LLM backends", EnvMode)
		mock := NewMockClient()
		return NewRouter(map[domain.ProviderTag]Backend{
			domain.ProviderGrok:   mock,
			domain.ProviderOllama: mock,
		})
	}

	return NewRouter(map[domain.ProviderTag]Backend{
		domain.ProviderGrok:   NewGrokBackend(pingTimeout),
		domain.ProviderOllama: NewOllamaBackend(pingTimeout),
	})
}
