package handler

import (
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/hitoshi/chatgate/internal/intent"
	"github.com/hitoshi/chatgate/internal/metrics"
	"github.com/hitoshi/chatgate/internal/middleware"
	"github.com/hitoshi/chatgate/internal/pipeline"
	"github.com/hitoshi/chatgate/internal/prompt"
)

// チャットエンドポイントのパス
const (
	ChatbotPath      = "/chatbot/agent_query/"
	MonkeyIslandPath = "/monkeyisland/agent_query/"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	Logger            *slog.Logger
	CORSAllowedOrigin string

	// チャット
	Pipelines *pipeline.Registry
	Gate      *intent.Gate

	// 運用
	Metrics         metrics.MetricsCollector
	MetricsGatherer prometheus.Gatherer
	HealthChecker   HealthChecker

	// アカウント。nilの場合 /api/users 配下は登録しない。
	AccountService AccountServiceInterface
}

// chatRoute はチャットエンドポイントの構成。
type chatRoute struct {
	path    string
	persona prompt.Persona
	gated   bool
}

var chatRoutes = []chatRoute{
	{path: ChatbotPath, persona: prompt.PersonaPirate, gated: true},
	{path: MonkeyIslandPath, persona: prompt.PersonaBanking, gated: false},
}

// NewRouter は全エンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	Logging → Recovery → SecurityHeaders → CORS
//
// チャットエンドポイントは全メソッドをハンドラーに渡し、405の応答もハンドラーが返す。
// 末尾スラッシュの有無はどちらも同じハンドラーに振り分ける。
func NewRouter(deps *RouterDeps) (http.Handler, error) {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	collector := deps.Metrics
	if collector == nil {
		collector = metrics.Nop{}
	}

	r := chi.NewRouter()

	r.Use(middleware.NewLoggingMiddleware(logger))
	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))

	for _, route := range chatRoutes {
		pl, err := deps.Pipelines.Get(route.persona)
		if err != nil {
			return nil, fmt.Errorf("failed to route %s: %w", route.path, err)
		}
		var gate *intent.Gate
		if route.gated {
			gate = deps.Gate
			if gate == nil {
				gate = intent.NewDefaultGate()
			}
		}
		h := NewChatHandler(route.path, pl, gate, collector)
		r.Handle(route.path, h)
		// 末尾スラッシュなしのパス
		r.Handle(strings.TrimSuffix(route.path, "/"), h)
	}

	r.Get("/health", newHealthHandler(deps.HealthChecker))

	if deps.MetricsGatherer != nil {
		r.Method(http.MethodGet, "/metrics", metrics.Handler(deps.MetricsGatherer))
	}

	if deps.AccountService != nil {
		accountHandler := NewAccountHandler(deps.AccountService)
		r.Route("/api/users", func(r chi.Router) {
			r.Post("/", accountHandler.Register)
			r.Post("/verification-code", accountHandler.IssueVerificationCode)
			r.Get("/{id}", accountHandler.GetUser)
		})
	}

	return r, nil
}
