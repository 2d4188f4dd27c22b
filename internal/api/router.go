package api

import (
	"errors"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/gorm"

	"github.com/feelize/platform/internal/app"
	iauth "github.com/feelize/platform/internal/auth"
	"github.com/feelize/platform/internal/handlers"
	"github.com/feelize/platform/internal/identity"
	"github.com/feelize/platform/internal/middleware"
	"github.com/feelize/platform/internal/models"
	"github.com/feelize/platform/internal/services"
	"github.com/feelize/platform/pkg/mail"
	"github.com/feelize/platform/pkg/response"
)

// Dependencies carries the collaborators the router wires into handlers.
type Dependencies struct {
	Config    *app.Config
	DB        *gorm.DB
	Provider  identity.Provider
	Issuer    *iauth.SessionIssuer
	Directory *services.UserDirectory
	// Mailer delivers passcodes; nil logs them instead.
	Mailer mail.Mailer
	Clock  func() time.Time
}

func (d Dependencies) validate() error {
	switch {
	case d.Config == nil:
		return errors.New("config must be provided")
	case d.DB == nil:
		return errors.New("database handle must be provided")
	case d.Provider == nil:
		return errors.New("identity provider must be provided")
	case d.Issuer == nil:
		return errors.New("session issuer must be provided")
	case d.Directory == nil:
		return errors.New("user directory must be provided")
	}
	return nil
}

type domainServices struct {
	activities *services.ActivityService
	affiliates *services.AffiliateService
	referrals  *services.ReferralService
	projects   *services.ProjectService
	tasks      *services.TaskService
	messages   *services.MessageService
	engineers  *services.EngineerService
	meetings   *services.MeetingService
}

func newDomainServices(db *gorm.DB, clock services.Clock) (*domainServices, error) {
	var (
		s   domainServices
		err error
	)
	if s.activities, err = services.NewActivityService(db); err != nil {
		return nil, err
	}
	if s.referrals, err = services.NewReferralService(db, clock); err != nil {
		return nil, err
	}
	if s.affiliates, err = services.NewAffiliateService(db); err != nil {
		return nil, err
	}
	if s.projects, err = services.NewProjectService(db, s.referrals, s.activities); err != nil {
		return nil, err
	}
	if s.tasks, err = services.NewTaskService(db, s.activities); err != nil {
		return nil, err
	}
	if s.messages, err = services.NewMessageService(db, s.activities); err != nil {
		return nil, err
	}
	if s.engineers, err = services.NewEngineerService(db); err != nil {
		return nil, err
	}
	if s.meetings, err = services.NewMeetingService(db, s.referrals); err != nil {
		return nil, err
	}
	return &s, nil
}

// NewRouter builds the Gin engine, wires middleware and registers every route.
func NewRouter(deps Dependencies) (*gin.Engine, error) {
	if err := deps.validate(); err != nil {
		return nil, err
	}
	cfg := deps.Config

	svc, err := newDomainServices(deps.DB, deps.Clock)
	if err != nil {
		return nil, err
	}

	response.ExposeInternalErrors(cfg.Server.DebugErrors)

	r := gin.New()
	r.HandleMethodNotAllowed = true

	r.Use(middleware.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger())
	r.Use(middleware.Metrics())
	r.Use(middleware.SecurityHeaders(cfg.Server.DevMode))
	r.Use(middleware.CORS(cfg.Server.ClientOrigin...))
	r.Use(middleware.RateLimit(cfg.Server.RateLimit.Requests, cfg.Server.RateLimit.Window))

	r.NoRoute(middleware.NotFoundHandler)
	r.NoMethod(middleware.MethodNotAllowedHandler)

	r.GET("/health", handlers.Health(deps.DB))
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	meetingHandler, err := handlers.NewMeetingHandler(svc.meetings, cfg.Webhooks.BookingSecret)
	if err != nil {
		return nil, err
	}
	r.POST("/meetings", meetingHandler.Webhook)

	authHandler, err := handlers.NewAuthHandler(deps.Provider, deps.Issuer, deps.Directory, handlers.AuthHandlerOptions{
		Mailer:   deps.Mailer,
		MailFrom: cfg.Email.SMTP.From,
		DevMode:  cfg.Server.DevMode,
		Clock:    deps.Clock,
	})
	if err != nil {
		return nil, err
	}

	public := r.Group("/api")
	protected := r.Group("/api")
	protected.Use(middleware.SessionAuth(deps.Provider, deps.Directory, deps.Issuer.CookieName()))
	adminOnly := middleware.RequireAccess(models.AccessAdmin)

	registerAuthRoutes(public, protected, authHandler, cfg.Auth.Passcode.RateLimit)

	userHandler, err := handlers.NewUserHandler(deps.Directory, deps.Provider, cfg.Auth.RevokeOnBan)
	if err != nil {
		return nil, err
	}
	registerUserRoutes(protected, userHandler, adminOnly)

	affiliateHandler, err := handlers.NewAffiliateHandler(svc.affiliates, svc.referrals)
	if err != nil {
		return nil, err
	}
	referralHandler, err := handlers.NewReferralHandler(svc.referrals, svc.affiliates)
	if err != nil {
		return nil, err
	}
	registerAffiliateRoutes(public, protected, affiliateHandler, referralHandler, adminOnly)

	projectHandler, err := handlers.NewProjectHandler(svc.projects, svc.messages)
	if err != nil {
		return nil, err
	}
	taskHandler, err := handlers.NewTaskHandler(svc.tasks)
	if err != nil {
		return nil, err
	}
	activityHandler, err := handlers.NewActivityHandler(svc.activities)
	if err != nil {
		return nil, err
	}
	registerProjectRoutes(protected, projectHandler, taskHandler, activityHandler)

	engineerHandler, err := handlers.NewEngineerHandler(svc.engineers)
	if err != nil {
		return nil, err
	}
	registerEngineerRoutes(public, protected, engineerHandler, adminOnly)

	protected.GET("/meetings", adminOnly, meetingHandler.List)
	protected.GET("/meetings/:uid", adminOnly, meetingHandler.Get)

	return r, nil
}
