// Package controlplane 提供只读状态接口：当前周期、最新报价、近期结算与历史行情。
package controlplane

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/betbot/updown/internal/archive"
	"github.com/betbot/updown/internal/events"
	"github.com/betbot/updown/internal/lifecycle"
	"github.com/betbot/updown/internal/risk"
)

// StatusSource 由 lifecycle.Manager 实现
type StatusSource interface {
	Status() (lifecycle.Status, bool)
	RecentSettlements() []events.SettlementEvent
}

// Config 服务配置
type Config struct {
	Listen string // 如 ":8080"
}

// Server 状态接口服务。Archive 为 nil 时历史查询返回 404；
// Breaker 为 nil 时熔断操作返回 404。
type Server struct {
	cfg     Config
	src     StatusSource
	archive *archive.Store
	breaker *risk.Breaker
	log     *logrus.Entry
}

func New(cfg Config, src StatusSource, store *archive.Store, breaker *risk.Breaker) *Server {
	return &Server{
		cfg:     cfg,
		src:     src,
		archive: store,
		breaker: breaker,
		log:     logrus.WithField("component", "controlplane"),
	}
}

// Router 构建路由
func (s *Server) Router() http.Handler {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/healthz", func(c *gin.Context) { c.String(http.StatusOK, "ok") })

	api := r.Group("/api")
	api.GET("/status", s.handleStatus)
	api.GET("/settlements", s.handleSettlements)
	api.GET("/ticks/:slug", s.handleTicks)
	api.GET("/breaker", s.handleBreakerStatus)
	api.POST("/breaker/halt", s.handleBreakerHalt)
	api.POST("/breaker/resume", s.handleBreakerResume)

	return r
}

// Run 启动 HTTP 服务并在 ctx 取消时优雅关闭
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{Addr: s.cfg.Listen, Handler: s.Router()}

	errC := make(chan error, 1)
	go func() {
		s.log.Infof("状态接口已启动: %s", s.cfg.Listen)
		errC <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errC:
		return err
	}
}

func (s *Server) handleStatus(c *gin.Context) {
	status, ok := s.src.Status()
	if !ok {
		// 周期切换窗口内描述符可能暂缺
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "no active market"})
		return
	}
	c.JSON(http.StatusOK, status)
}

func (s *Server) handleSettlements(c *gin.Context) {
	c.JSON(http.StatusOK, s.src.RecentSettlements())
}

func (s *Server) handleBreakerStatus(c *gin.Context) {
	if s.breaker == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "breaker disabled"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"open": s.breaker.Open()})
}

func (s *Server) handleBreakerHalt(c *gin.Context) {
	if s.breaker == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "breaker disabled"})
		return
	}
	s.breaker.Halt()
	s.log.Warn("🚨 已人工熔断下单")
	c.JSON(http.StatusOK, gin.H{"open": true})
}

func (s *Server) handleBreakerResume(c *gin.Context) {
	if s.breaker == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "breaker disabled"})
		return
	}
	s.breaker.Resume()
	s.log.Info("✅ 已人工恢复下单")
	c.JSON(http.StatusOK, gin.H{"open": false})
}

func (s *Server) handleTicks(c *gin.Context) {
	if s.archive == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "archive disabled"})
		return
	}
	ticks, err := s.archive.TicksBySlug(c.Request.Context(), c.Param("slug"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, ticks)
}
