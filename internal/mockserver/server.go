// Package mockserver is a self-contained chat backend used for local
// development and integration tests. It speaks the same REST and websocket
// protocol the client expects from the real service.
package mockserver

import (
	"crypto/rand"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Server struct {
	db        *gorm.DB
	hub       *hub
	logger    *zap.Logger
	jwtSecret []byte
	authBase  string
	engine    *gin.Engine
}

// New opens the backing database at dbPath (":memory:" works for tests) and
// mounts the REST routes under authBase plus the websocket endpoint at /.
func New(dbPath, authBase string, logger *zap.Logger) (*Server, error) {
	db, err := openDB(dbPath)
	if err != nil {
		return nil, err
	}

	secret := make([]byte, 32)
	if _, err := rand.Read(secret); err != nil {
		return nil, err
	}

	s := &Server{
		db:        db,
		hub:       newHub(),
		logger:    logger,
		jwtSecret: secret,
		authBase:  authBase,
	}
	s.engine = s.routes()
	return s, nil
}

func (s *Server) routes() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())

	auth := r.Group(s.authBase)
	{
		auth.POST("/register", s.registerHandler)
		auth.POST("/login", s.loginHandler)
		auth.POST("/logout", s.logoutHandler)
		auth.GET("/current-user", s.authRequired, s.currentUserHandler)
	}

	api := r.Group("/", s.authRequired)
	{
		api.GET("user", s.allUsersHandler)
		api.GET("user/:id", s.userByIDHandler)
		api.POST("channel", s.upsertChannelHandler)
		api.GET("channel", s.historyHandler)
		api.GET("channel/:id", s.channelDetailHandler)
		api.GET("message/:channelId", s.messagesHandler)
		api.GET("voice-settings", s.voiceSettingsHandler)
	}

	r.GET("/", s.wsHandler)
	return r
}

// Handler exposes the router so tests can mount the server on httptest.
func (s *Server) Handler() http.Handler {
	return s.engine
}

func (s *Server) Run(addr string) error {
	s.logger.Info("mock server listening", zap.String("addr", addr))
	return s.engine.Run(addr)
}
