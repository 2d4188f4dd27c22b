package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/feelize/platform/internal/api"
	"github.com/feelize/platform/internal/app"
	"github.com/feelize/platform/internal/app/maintenance"
	iauth "github.com/feelize/platform/internal/auth"
	"github.com/feelize/platform/internal/database"
	"github.com/feelize/platform/internal/identity"
	"github.com/feelize/platform/internal/services"
	"github.com/feelize/platform/pkg/logger"
	"github.com/feelize/platform/pkg/mail"
)

// runtimeStack bundles long-lived services used by the HTTP server.
type runtimeStack struct {
	DB      *gorm.DB
	Cleaner *maintenance.Cleaner
	Router  *gin.Engine
}

// bootstrapRuntime opens the database, wires the identity provider and domain services, and
// builds the HTTP router.
func bootstrapRuntime(ctx context.Context, cfg *app.Config, log *zap.Logger) (*runtimeStack, error) {
	stack := &runtimeStack{}
	var err error
	success := false

	defer func() {
		if !success {
			stack.Shutdown(context.Background(), log)
		}
	}()

	if debug, _ := os.LookupEnv("GIN_DEBUG"); debug != "true" {
		gin.SetMode(gin.ReleaseMode)
	}

	stack.DB, err = initialiseDatabase(cfg)
	if err != nil {
		return nil, err
	}

	verifier, err := identity.NewOIDCVerifier(ctx, cfg.Identity.VerifierConfig())
	if err != nil {
		return nil, fmt.Errorf("initialise id token verifier: %w", err)
	}

	signerCfg, err := cfg.Auth.SessionSignerConfig(cfg.Identity.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("decode session secret: %w", err)
	}
	signer, err := identity.NewSessionSigner(signerCfg)
	if err != nil {
		return nil, fmt.Errorf("initialise session signer: %w", err)
	}

	revocations, err := identity.NewGormRevocationStore(stack.DB)
	if err != nil {
		return nil, err
	}

	provider, err := identity.NewService(identity.Options{
		Verifier:    verifier,
		Signer:      signer,
		Revocations: revocations,
		MaxAuthAge:  cfg.Auth.MaxAuthAgeOrDefault(),
	})
	if err != nil {
		return nil, fmt.Errorf("initialise identity service: %w", err)
	}

	issuer, err := iauth.NewSessionIssuer(provider, cfg.Auth.SessionIssuerConfig(cfg.Server.DevMode))
	if err != nil {
		return nil, fmt.Errorf("initialise session issuer: %w", err)
	}

	directory, err := services.NewUserDirectory(stack.DB, cfg.Auth.DirectoryOptions()...)
	if err != nil {
		return nil, err
	}

	mailer, err := mail.NewSMTPMailer(cfg.Email.SMTPSettings())
	if err != nil {
		return nil, fmt.Errorf("initialise mailer: %w", err)
	}
	if !cfg.Email.SMTP.Enabled {
		log.Warn("smtp disabled; passcodes will only be logged")
	}

	stack.Cleaner = maintenance.NewCleaner(directory, revocations,
		maintenance.WithPasscodeSchedule(cfg.Maintenance.PasscodeCleanup),
		maintenance.WithRevocationSchedule(cfg.Maintenance.RevocationCleanup),
		maintenance.WithRevocationRetention(cfg.Maintenance.RevocationRetention),
	)
	if err := stack.Cleaner.Start(); err != nil {
		return nil, fmt.Errorf("start maintenance jobs: %w", err)
	}

	stack.Router, err = api.NewRouter(api.Dependencies{
		Config:    cfg,
		DB:        stack.DB,
		Provider:  provider,
		Issuer:    issuer,
		Directory: directory,
		Mailer:    mailer,
	})
	if err != nil {
		return nil, fmt.Errorf("build api router: %w", err)
	}

	success = true
	return stack, nil
}

// Shutdown stops background jobs, runs a final cleanup pass and releases the database.
func (s *runtimeStack) Shutdown(ctx context.Context, log *zap.Logger) {
	if s == nil {
		return
	}

	if s.Cleaner != nil {
		<-s.Cleaner.Stop().Done()
		if err := s.Cleaner.RunOnce(ctx); err != nil {
			log.Warn("maintenance shutdown cleanup failed", zap.Error(err))
		}
	}

	if s.DB != nil {
		if err := database.Close(s.DB); err != nil {
			log.Warn("failed to close database", zap.Error(err))
		}
	}
}

func initialiseDatabase(cfg *app.Config) (*gorm.DB, error) {
	dbCfg := cfg.Database.ConnectionConfig()
	db, err := database.Open(dbCfg)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := database.AutoMigrateAndSeed(db, database.SeedOptions{AdminEmails: cfg.Seed.AdminEmails}); err != nil {
		_ = database.Close(db)
		return nil, fmt.Errorf("auto-migrate database: %w", err)
	}

	logger.WithModule("database").Info("database connected",
		zap.String("driver", strings.ToLower(strings.TrimSpace(dbCfg.Driver))),
		zap.Int("admin_seeds", len(cfg.Seed.AdminEmails)),
	)
	return db, nil
}
