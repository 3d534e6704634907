// Package http exposes the signing service over gin. Handlers stay
// thin: decode the request, call the usecase, translate the error.
// Identity arrives as trusted gateway headers; this layer never mints
// principals of its own.
package http

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"signet/internal/config"
	"signet/internal/domain"
	cryptoinfra "signet/internal/infra/crypto"
	"signet/internal/infra/metrics"
	"signet/internal/usecase"
)

type Server struct {
	cfg    config.Config
	r      *gin.Engine
	logger *zap.Logger

	store usecase.Store

	sign        *usecase.SignDocument
	bulk        *usecase.BulkSign
	createReq   *usecase.CreateSignatureRequest
	cancelReq   *usecase.CancelSignatureRequest
	getReq      *usecase.GetSignatureRequest
	getDoc      *usecase.GetDocument
	trail       *usecase.GetAuditTrail
	revoke      *usecase.RevokeSignature
	certificate *usecase.GenerateCertificate
	verifyCert  *usecase.VerifyCertificate

	metrics        *metrics.Metrics
	metricsHandler http.Handler

	adminAPIKey string

	rateLimiter         domain.RateLimiter
	rateLimitRequests   int
	rateLimitWindow     time.Duration
	rateLimitFailClosed bool
}

// ServerDeps carries the ports the server wires into its usecases.
// Store and Keys are required; everything else degrades gracefully
// (nil policy allows, nil cache skips memoization, nil limiter
// disables rate limiting).
type ServerDeps struct {
	Store    usecase.Store
	Keys     domain.KeyManager
	Storage  domain.ObjectStore
	Crypto   usecase.CryptoService
	Notifier domain.Notifier
	Policy   usecase.PolicyEngine
	Cache    usecase.VerificationCache

	RateLimiter domain.RateLimiter

	Metrics        *metrics.Metrics
	MetricsHandler http.Handler
	Logger         *zap.Logger
	Clock          usecase.Clock
}

func NewServer(cfg config.Config, deps ServerDeps) *Server {
	r := gin.New()
	r.Use(gin.Recovery())

	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	cryptoSvc := deps.Crypto
	if cryptoSvc == nil {
		cryptoSvc = cryptoinfra.NewService()
	}

	s := &Server{
		cfg:                 cfg,
		r:                   r,
		logger:              logger,
		store:               deps.Store,
		metrics:             deps.Metrics,
		metricsHandler:      deps.MetricsHandler,
		adminAPIKey:         cfg.AdminAPIKey,
		rateLimiter:         deps.RateLimiter,
		rateLimitRequests:   cfg.RateLimitRequests,
		rateLimitWindow:     cfg.RateLimitWindow(),
		rateLimitFailClosed: cfg.RateLimitFailClosed,
	}

	s.sign = &usecase.SignDocument{
		Store:    deps.Store,
		Keys:     deps.Keys,
		Storage:  deps.Storage,
		Crypto:   cryptoSvc,
		Notifier: deps.Notifier,
		Policy:   deps.Policy,
		Clock:    deps.Clock,
	}
	s.bulk = &usecase.BulkSign{Sign: s.sign, Store: deps.Store, Storage: deps.Storage}
	s.createReq = &usecase.CreateSignatureRequest{Store: deps.Store, Notifier: deps.Notifier, Clock: deps.Clock}
	s.cancelReq = &usecase.CancelSignatureRequest{Store: deps.Store, Notifier: deps.Notifier, Policy: deps.Policy, Clock: deps.Clock}
	s.getReq = &usecase.GetSignatureRequest{Store: deps.Store}
	s.getDoc = &usecase.GetDocument{Store: deps.Store}
	s.trail = &usecase.GetAuditTrail{Store: deps.Store}
	s.revoke = &usecase.RevokeSignature{Store: deps.Store, Policy: deps.Policy, Clock: deps.Clock}
	s.certificate = &usecase.GenerateCertificate{Store: deps.Store, Keys: deps.Keys, Crypto: cryptoSvc}
	s.verifyCert = &usecase.VerifyCertificate{
		Store:    deps.Store,
		Keys:     deps.Keys,
		Cache:    deps.Cache,
		CacheTTL: cfg.VerifyCacheTTL(),
	}

	s.routes()
	return s
}

func (s *Server) routes() {
	s.r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	metricsHandler := s.metricsHandler
	if metricsHandler == nil {
		metricsHandler = promhttp.Handler()
	}
	s.r.GET("/metrics", gin.WrapH(metricsHandler))

	// Public, unauthenticated, rate limited per client IP.
	s.r.GET("/verify/:certificate_id", s.verifyRateLimit(), s.handlePublicVerify)

	v1 := s.r.Group("/api/v1", s.requirePrincipal())
	{
		v1.POST("/documents/bulk-sign", s.handleBulkSign)
		v1.POST("/documents/:document_id/sign", s.handleSignDocument)
		v1.GET("/documents/:document_id", s.handleGetDocument)
		v1.GET("/documents/:document_id/audit", s.handleAuditTrail)

		v1.POST("/requests", s.handleCreateRequest)
		v1.GET("/requests/:request_id", s.handleGetRequest)
		v1.POST("/requests/:request_id/cancel", s.handleCancelRequest)

		v1.GET("/signatures/:signature_id/certificate", s.handleCertificate)
		v1.POST("/signatures/:signature_id/revoke", s.handleRevokeSignature)

		admin := v1.Group("/admin", s.requireAdminKey())
		admin.GET("/documents/:document_id/audit/verify", s.handleVerifyAuditChain)
	}
}

// Handler exposes the router so callers can run their own http.Server
// (graceful shutdown lives in main).
func (s *Server) Handler() http.Handler {
	return s.r
}

func (s *Server) Run() error {
	return s.r.Run(s.cfg.HTTPAddr)
}
