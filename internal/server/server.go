// Package server exposes the crewdeck API over HTTP. Routes live under
// /api/v1; everything except register/login requires a bearer token.
package server

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/imkarma/crewdeck/internal/auth"
	"github.com/imkarma/crewdeck/internal/config"
	"github.com/imkarma/crewdeck/internal/notify"
	"github.com/imkarma/crewdeck/internal/store"
	"github.com/imkarma/crewdeck/internal/workflow"
)

// Server wires the store, the workflow engine and the notification
// dispatcher behind a gin router.
type Server struct {
	cfg      *config.Config
	store    *store.Store
	engine   *workflow.Engine
	sink     workflow.NotificationSink
	mentions workflow.MentionScanner
	tokens   *auth.Tokens
	log      *logrus.Entry
}

// New builds a Server over an open store.
func New(cfg *config.Config, s *store.Store, log *logrus.Entry) *Server {
	sink := notify.NewDispatcher(s, log.WithField("component", "notify"))
	scanner := notify.NewScanner(s, log.WithField("component", "mentions"))
	engine := workflow.New(s, sink, scanner, log.WithField("component", "workflow"))
	tokens := auth.NewTokens(cfg.Auth.JWTSecret, time.Duration(cfg.Auth.TokenTTLHours())*time.Hour)

	return &Server{
		cfg:      cfg,
		store:    s,
		engine:   engine,
		sink:     sink,
		mentions: scanner,
		tokens:   tokens,
		log:      log,
	}
}

// Router builds the gin engine with all routes registered.
func (s *Server) Router() *gin.Engine {
	if s.cfg.Env == "prod" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(s.requestLogger())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := r.Group("/api/v1")

	authGroup := api.Group("/auth")
	authGroup.POST("/register", s.registerAction)
	authGroup.POST("/login", s.loginAction)

	authed := api.Group("")
	authed.Use(s.requireAuth())

	authed.GET("/members", s.listMembersAction)
	authed.GET("/members/me", s.currentMemberAction)
	authed.GET("/members/:id", s.getMemberAction)

	authed.POST("/projects", s.createProjectAction)
	authed.GET("/projects", s.listProjectsAction)
	authed.GET("/projects/:id", s.getProjectAction)
	authed.PUT("/projects/:id", s.updateProjectAction)
	authed.DELETE("/projects/:id", s.deleteProjectAction)
	authed.POST("/projects/:id/members", s.addProjectMemberAction)
	authed.GET("/projects/:id/members", s.listProjectMembersAction)
	authed.DELETE("/projects/:id/members/:memberID", s.removeProjectMemberAction)

	authed.POST("/tasks", s.createTaskAction)
	authed.GET("/tasks", s.listTasksAction)
	authed.GET("/tasks/:id", s.getTaskAction)
	authed.PUT("/tasks/:id", s.updateTaskAction)
	authed.DELETE("/tasks/:id", s.deleteTaskAction)
	authed.PATCH("/tasks/:id/status", s.changeTaskStatusAction)
	authed.POST("/tasks/:id/approve", s.approveTaskAction)
	authed.POST("/tasks/:id/cancel-approval", s.cancelApprovalAction)
	authed.GET("/tasks/:id/history", s.taskHistoryAction)
	authed.POST("/tasks/:id/stakeholders", s.addStakeholderAction)
	authed.PUT("/tasks/:id/stakeholders", s.replaceStakeholdersAction)
	authed.GET("/tasks/:id/stakeholders", s.listStakeholdersAction)
	authed.DELETE("/tasks/:id/stakeholders/:stakeholderID", s.removeStakeholderAction)

	authed.GET("/notifications", s.listNotificationsAction)
	authed.GET("/notifications/unread-count", s.unreadCountAction)
	authed.POST("/notifications/:id/read", s.markNotificationReadAction)

	return r
}

// Run serves the API until the listener fails.
func (s *Server) Run() error {
	r := s.Router()
	s.log.WithField("addr", s.cfg.Server.Addr).Info("starting API server")
	if err := r.Run(s.cfg.Server.Addr); err != nil {
		return fmt.Errorf("serve: %w", err)
	}
	return nil
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.log.WithFields(logrus.Fields{
			"method":  c.Request.Method,
			"path":    c.Request.URL.Path,
			"status":  c.Writer.Status(),
			"elapsed": time.Since(start).String(),
		}).Info("request")
	}
}
