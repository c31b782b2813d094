package http_server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"roomrelay/internal/auth"
	"roomrelay/internal/http/authhandler"
	"roomrelay/internal/http/roomhandler"
	"roomrelay/internal/metrics"
	"roomrelay/internal/services/rooms"
	"roomrelay/internal/services/users"
	"roomrelay/internal/ws"

	ginzap "github.com/gin-contrib/zap"
	"github.com/gin-gonic/gin"
	"github.com/rs/cors"
	"go.uber.org/zap"

	"github.com/abrar71/swaggerfilesv2" // swagger embed files
)

// Deps are the collaborators the HTTP surface routes to.
type Deps struct {
	WsServer    *ws.WsServer
	RoomService rooms.IRoomService
	UserService users.IUserService
	Presence    roomhandler.PresenceReader
	Auth        *auth.JWT

	// Ready reports backing store health for /health. Nil means always ready.
	Ready func(ctx context.Context) error
	// Sessions reports open relay sessions for /health.
	Sessions func() int
}

type httpServer struct {
	listenPort uint16
	clientURL  string
	srv        http.Server
	ln         net.Listener
	deps       Deps
	ctx        context.Context
}

func NewHttpServer(ctx context.Context, listenPort uint16, clientURL string, deps Deps) *httpServer {
	return &httpServer{
		listenPort: listenPort,
		clientURL:  clientURL,
		deps:       deps,
		ctx:        ctx,
	}
}

func (h *httpServer) Start() error {
	var err error
	listenAddr := fmt.Sprintf(":%d", h.listenPort)
	h.ln, err = net.Listen("tcp", listenAddr)
	if err != nil {
		return err
	}

	h.srv = http.Server{
		Handler:           h.handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	if err := h.srv.Serve(h.ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (h *httpServer) handler() http.Handler {
	routerEngine := gin.New()

	// Swagger UI and API specs
	routerEngine.StaticFS("/swagger-apis", http.FS(swaggerfilesv2.FS))
	routerEngine.Static("/api-specs", "api_specs")

	routerEngine.Use(ginzap.Ginzap(zap.L(), time.RFC3339, true))
	routerEngine.Use(ginzap.RecoveryWithZap(zap.L(), true))

	routerEngine.GET("/health", h.health)
	routerEngine.GET("/metrics", gin.WrapH(metrics.Handler()))

	// websocket endpoint; authenticates its own handshake
	routerEngine.GET("/ws", h.deps.WsServer.Handle)

	// REST API
	api := routerEngine.Group("/api")
	authhandler.New(h.deps.UserService).Register(api)

	secured := api.Group("", h.deps.Auth.Middleware())
	roomhandler.New(h.deps.RoomService, h.deps.Presence).Register(secured)

	return cors.New(cors.Options{
		AllowedOrigins:   []string{h.clientURL},
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		AllowCredentials: true,
	}).Handler(routerEngine)
}

func (h *httpServer) health(c *gin.Context) {
	body := gin.H{"status": "ok"}
	if h.deps.Sessions != nil {
		body["sessions"] = h.deps.Sessions()
	}
	if h.deps.Ready != nil {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if err := h.deps.Ready(ctx); err != nil {
			body["status"] = "degraded"
			body["error"] = err.Error()
			c.JSON(http.StatusServiceUnavailable, body)
			return
		}
	}
	c.JSON(http.StatusOK, body)
}

// Dispose gracefully shuts the HTTP server down.
// It waits up to 10 s for in‑flight requests to finish.
func (h *httpServer) Dispose() error {
	// The parent context is usually already cancelled by the signal handler.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(h.ctx), 10*time.Second)
	defer cancel()

	// Ask the server to shut down.
	if err := h.srv.Shutdown(ctx); err != nil {
		zap.L().Error("http_dispose", zap.Error(err))
		return err // e.g. active conns didn’t finish in time
	}

	// If the context’s deadline expired, log it for observability.
	if ctx.Err() == context.DeadlineExceeded {
		zap.L().Error("http_dispose", zap.Error(errors.New("shutdown timed out")))
	}

	return nil
}
