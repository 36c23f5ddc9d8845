package router

import (
	"context"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/stemsi/exstem-proctor/internal/config"
	"github.com/stemsi/exstem-proctor/internal/handler"
	"github.com/stemsi/exstem-proctor/internal/middleware"
	"github.com/stemsi/exstem-proctor/internal/model"
	"github.com/stemsi/exstem-proctor/internal/response"
)

// Handlers groups all handler instances for route setup.
type Handlers struct {
	Exam    *handler.ExamHandler
	Session *handler.SessionHandler
	Grading *handler.GradingHandler
	WS      *handler.WSHandler
	Monitor *handler.MonitorHandler
	System  *handler.SystemHandler
}

// SetupRouter configures all Gin route groups with appropriate middlewares.
// ctx bounds the background sweep of the join rate limiter.
func SetupRouter(
	ctx context.Context,
	auth middleware.TokenValidator,
	handlers *Handlers,
	cfg *config.Config,
) *gin.Engine {
	gin.SetMode(cfg.GinMode)
	router := gin.Default()

	// ─── CORS ──────────────────────────────────────────────────────────
	// If AllowedOrigins is set in config, restrict to that list;
	// otherwise allow all (*) so dev works without extra config.
	corsConfig := cors.DefaultConfig()
	if len(cfg.AllowedOrigins) > 0 {
		corsConfig.AllowOrigins = cfg.AllowedOrigins
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Authorization", "X-Request-ID"}
	corsConfig.ExposeHeaders = []string{"X-Request-ID", "Retry-After"}
	corsConfig.MaxAge = 12 * time.Hour
	router.Use(cors.New(corsConfig))

	// Apply request ID middleware globally so every response includes metadata.
	router.Use(response.RequestIDMiddleware())

	router.GET("/health", handlers.System.Health)

	perm := middleware.RequirePermission

	// ─── 1. Admin Group (Proctor JWT + RBAC) ───────────────────────────
	adminAPI := router.Group("/api/v1/admin")
	adminAPI.Use(middleware.RequireProctorJWT(auth))
	{
		// Exam authoring
		adminAPI.GET("/exams", perm(model.PermissionExamsRead), handlers.Exam.ListExams)
		adminAPI.POST("/exams", perm(model.PermissionExamsWrite), handlers.Exam.CreateExam)
		adminAPI.GET("/exams/:exam_id", perm(model.PermissionExamsRead), handlers.Exam.GetExam)
		adminAPI.POST("/exams/:exam_id/questions", perm(model.PermissionExamsWrite), handlers.Exam.AddQuestion)
		adminAPI.PUT("/exams/:exam_id/questions/:question_id/correct-option",
			perm(model.PermissionExamsWrite),
			handlers.Exam.SetCorrectAnswer,
		)
		adminAPI.POST("/exams/:exam_id/publish", perm(model.PermissionExamsPublish), handlers.Exam.PublishExam)

		// Submissions and grading
		adminAPI.POST("/exams/:exam_id/submissions", perm(model.PermissionGradesOverride), handlers.Grading.SubmitOnBehalf)
		adminAPI.GET("/exams/:exam_id/results", perm(model.PermissionGradesRead), handlers.Grading.ListResults)
		adminAPI.GET("/exams/:exam_id/results/:student_id", perm(model.PermissionGradesRead), handlers.Grading.GetResult)
		adminAPI.PUT("/exams/:exam_id/results/:student_id", perm(model.PermissionGradesOverride), handlers.Grading.OverrideScore)

		// Proctored sessions
		sessions := adminAPI.Group("/sessions")
		{
			watch := middleware.RequireAnyPermission(model.PermissionSessionsManage, model.PermissionSessionsMonitor)

			sessions.GET("", watch, handlers.Session.ListSessions)
			sessions.POST("", perm(model.PermissionSessionsManage), handlers.Session.CreateSession)
			sessions.GET("/:session_id", watch, handlers.Session.GetSession)
			sessions.POST("/:session_id/start", perm(model.PermissionSessionsManage), handlers.Session.StartSession)
			sessions.POST("/:session_id/end", perm(model.PermissionSessionsManage), handlers.Session.EndSession)
			sessions.POST("/:session_id/students", perm(model.PermissionSessionsManage), handlers.Session.RegisterStudent)
			sessions.GET("/:session_id/students/:student_id/log", watch, handlers.Session.StudentLog)
			sessions.GET("/:session_id/snapshot", watch, handlers.Session.MonitorSnapshot)

			// SSE: EventSource cannot send headers, so the token may come as ?token=.
			sessions.GET("/:session_id/monitor", watch, handlers.Monitor.MonitorSessionSSE)
		}

		adminAPI.GET("/system/metrics", perm(model.PermissionSessionsMonitor), handlers.System.Metrics)
	}

	// ─── 2. Student Group (Student JWT) ────────────────────────────────
	joinLimiter := middleware.NewRateLimiter(ctx, cfg.JoinRateLimit, time.Minute).ByClaims()

	studentAPI := router.Group("/api/v1/student")
	studentAPI.Use(middleware.RequireStudentJWT(auth))
	{
		studentAPI.GET("/exams/:exam_id", handlers.Exam.StudentExam)
		studentAPI.GET("/exams/:exam_id/eligibility", handlers.Grading.Eligibility)
		studentAPI.POST("/exams/:exam_id/submit", handlers.Grading.StudentSubmit)
		studentAPI.GET("/exams/:exam_id/result", handlers.Grading.StudentResult)
		studentAPI.POST("/sessions/:session_id/join", joinLimiter.Middleware(), handlers.Session.JoinSession)
	}

	// ─── 3. WebSocket Group (Student WS Auth) ──────────────────────────
	ws := router.Group("/ws/v1")
	ws.Use(middleware.RequireStudentWSAuth(auth))
	{
		ws.GET("/student/sessions/:session_id/stream", handlers.WS.SessionStream)
	}

	return router
}
