// Package api 暴露网关的 HTTP 接口：LLM 辅助服务、provider 查询与知识库代理。
package api

import (
	"context"
	"errors"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/lgc202/llm-gateway/internal/assistant"
	"github.com/lgc202/llm-gateway/internal/knowledge"
	"github.com/lgc202/llm-gateway/internal/tempkb"
	"github.com/lgc202/llm-gateway/llm"
)

const shutdownTimeout = 5 * time.Second

type Config struct {
	Addr         string
	AllowOrigins []string
	Version      string

	// TempDataset 网页问答临时知识库的数据集名称，为空时使用 tempkb.DefaultDatasetName
	TempDataset string

	Logger zerolog.Logger
}

// backend 是一次加载的 provider 表及其派生服务，热加载时整体替换
type backend struct {
	gw              *llm.Gateway
	assistant       *assistant.Service
	defaultProvider string
}

type Server struct {
	cfg    Config
	logger zerolog.Logger

	backend atomic.Pointer[backend]
	kb      *knowledge.Client
	temp    *tempkb.Service
}

// New 创建 Server；kb 为 nil 时知识库与临时知识库接口返回 503
func New(cfg Config, gw *llm.Gateway, defaultProvider string, kb *knowledge.Client) *Server {
	s := &Server{
		cfg:    cfg,
		logger: cfg.Logger.With().Str("component", "api").Logger(),
		kb:     kb,
	}
	if kb != nil {
		s.temp = tempkb.New(kb, cfg.TempDataset, cfg.Logger)
	}
	s.SetGateway(gw, defaultProvider)
	return s
}

// SetGateway 原子替换当前使用的 Gateway，进行中的请求继续使用旧实例
func (s *Server) SetGateway(gw *llm.Gateway, defaultProvider string) {
	s.backend.Store(&backend{
		gw:              gw,
		assistant:       assistant.New(gw, defaultProvider, s.logger),
		defaultProvider: defaultProvider,
	})
}

func (s *Server) current() *backend { return s.backend.Load() }

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/v1/health", s.health)
	mux.HandleFunc("POST /api/v1/translate", s.translate)
	mux.HandleFunc("POST /api/v1/summarize", s.summarize)
	mux.HandleFunc("POST /api/v1/qa", s.qa)
	mux.HandleFunc("POST /api/v1/chat", s.chat)

	mux.HandleFunc("GET /api/v1/providers", s.listProviders)
	mux.HandleFunc("GET /api/v1/providers/{id}", s.getProvider)

	// 知识库
	mux.HandleFunc("GET /api/v1/datasets", s.listDatasets)
	mux.HandleFunc("POST /api/v1/datasets", s.createDataset)
	mux.HandleFunc("DELETE /api/v1/datasets", s.deleteDatasets)
	mux.HandleFunc("PUT /api/v1/datasets/{id}", s.updateDataset)
	mux.HandleFunc("DELETE /api/v1/datasets/{id}", s.deleteDataset)
	mux.HandleFunc("GET /api/v1/datasets/{id}/documents", s.listDocuments)
	mux.HandleFunc("POST /api/v1/datasets/{id}/documents", s.uploadDocument)
	mux.HandleFunc("DELETE /api/v1/datasets/{id}/documents", s.deleteDocuments)
	mux.HandleFunc("PUT /api/v1/datasets/{id}/documents/{doc}", s.updateDocument)
	mux.HandleFunc("POST /api/v1/datasets/{id}/chunks", s.parseDocuments)
	mux.HandleFunc("DELETE /api/v1/datasets/{id}/chunks", s.stopParsing)
	mux.HandleFunc("POST /api/v1/retrieval", s.retrieve)

	// 临时知识库
	mux.HandleFunc("GET /api/temp-knowledge/documents", s.tempDocuments)
	mux.HandleFunc("POST /api/temp-knowledge/upload", s.tempUpload)
	mux.HandleFunc("POST /api/temp-knowledge/webpage", s.tempWebpage)
	mux.HandleFunc("DELETE /api/temp-knowledge/documents/{id}", s.tempDelete)
	mux.HandleFunc("POST /api/temp-knowledge/clear-unlocked", s.tempClearUnlocked)

	return accessLog(s.logger, cors(s.cfg.AllowOrigins, mux))
}

// Run 启动 HTTP 服务，ctx 结束后优雅关闭
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		s.logger.Info().Str("addr", s.cfg.Addr).Msg("api server online")
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	shutCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutCtx); err != nil {
		return err
	}
	if err := <-errc; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	s.logger.Info().Msg("api server stopped")
	return nil
}
