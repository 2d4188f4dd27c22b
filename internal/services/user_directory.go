package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/feelize/platform/internal/identity"
	"github.com/feelize/platform/internal/models"
	apperrors "github.com/feelize/platform/pkg/errors"
	"github.com/feelize/platform/pkg/logger"
)

const (
	// DefaultPasscodeTTL is how long an issued passcode stays valid.
	DefaultPasscodeTTL = 10 * time.Minute
	// DefaultPasscodeDigits is the length of issued passcodes.
	DefaultPasscodeDigits = 6
	// DefaultPasscodeMaxAttempts is how many wrong guesses burn an issued passcode.
	DefaultPasscodeMaxAttempts = 5
)

// CreateUserInput describes the fields accepted when creating a user.
type CreateUserInput struct {
	Email       string
	Name        string
	Picture     string
	ExternalID  string
	AccessLevel models.AccessLevel
}

// ListUsersOptions controls filtering and pagination for user listing.
type ListUsersOptions struct {
	PageOptions
	Query       string
	AccessLevel models.AccessLevel
	Banned      *bool
}

// DirectoryOption customises a UserDirectory.
type DirectoryOption func(*UserDirectory)

// WithDirectoryClock overrides the time source.
func WithDirectoryClock(clock Clock) DirectoryOption {
	return func(d *UserDirectory) {
		if clock != nil {
			d.now = clock
		}
	}
}

// WithPasscodePolicy overrides passcode lifetime and length.
func WithPasscodePolicy(ttl time.Duration, digits int) DirectoryOption {
	return func(d *UserDirectory) {
		if ttl > 0 {
			d.passcodeTTL = ttl
		}
		if digits == 6 || digits == 8 {
			d.passcodeDigits = digits
		}
	}
}

// WithPasscodeAttemptLimit sets how many mismatches invalidate an issued passcode.
func WithPasscodeAttemptLimit(limit int) DirectoryOption {
	return func(d *UserDirectory) {
		if limit > 0 {
			d.passcodeMaxAttempts = limit
		}
	}
}

// UserDirectory maps external identities and emails to local user records.
type UserDirectory struct {
	db             *gorm.DB
	now            Clock
	passcodeTTL    time.Duration
	passcodeDigits int
	log            *zap.Logger

	passcodeMaxAttempts int
}

// NewUserDirectory constructs a UserDirectory instance.
func NewUserDirectory(db *gorm.DB, opts ...DirectoryOption) (*UserDirectory, error) {
	if db == nil {
		return nil, errors.New("user directory: db is required")
	}
	d := &UserDirectory{
		db:             db,
		now:            time.Now,
		passcodeTTL:    DefaultPasscodeTTL,
		passcodeDigits: DefaultPasscodeDigits,
		log:            logger.WithModule("users"),

		passcodeMaxAttempts: DefaultPasscodeMaxAttempts,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d, nil
}

// FindByID loads a user by primary key.
func (d *UserDirectory) FindByID(ctx context.Context, id string) (*models.User, error) {
	return d.findOne(ensureContext(ctx), "id = ?", strings.TrimSpace(id))
}

// FindBySubject loads the user bound to an external subject. Local subjects minted for
// passcode sessions resolve by user id.
func (d *UserDirectory) FindBySubject(ctx context.Context, subject string) (*models.User, error) {
	subject = strings.TrimSpace(subject)
	if subject == "" {
		return nil, ErrUserNotFound
	}
	if userID, ok := identity.ParseLocalSubject(subject); ok {
		return d.FindByID(ctx, userID)
	}
	return d.findOne(ensureContext(ctx), "external_id = ?", subject)
}

// FindByEmail loads a user by email, case-insensitively.
func (d *UserDirectory) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	email = normaliseEmail(email)
	if email == "" {
		return nil, ErrUserNotFound
	}
	return d.findOne(ensureContext(ctx), "email = ?", email)
}

func (d *UserDirectory) findOne(ctx context.Context, query string, args ...any) (*models.User, error) {
	var user models.User
	err := d.db.WithContext(ctx).Where(query, args...).Take(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("user directory: load user: %w", err)
	}
	return &user, nil
}

// Create inserts a new user. Email uniqueness is enforced by the database and surfaces as
// ErrDuplicateUser rather than an overwrite.
func (d *UserDirectory) Create(ctx context.Context, input CreateUserInput) (*models.User, error) {
	ctx = ensureContext(ctx)

	email := normaliseEmail(input.Email)
	if email == "" {
		return nil, apperrors.NewBadRequest("email is required")
	}
	level := input.AccessLevel
	if level == "" {
		level = models.AccessClient
	}
	if !level.Valid() {
		return nil, apperrors.NewBadRequest("unknown access level")
	}

	user := &models.User{
		ExternalID:  optionalID(input.ExternalID),
		Email:       email,
		Name:        strings.TrimSpace(input.Name),
		Picture:     strings.TrimSpace(input.Picture),
		AccessLevel: level,
	}
	if err := d.db.WithContext(ctx).Create(user).Error; err != nil {
		if isUniqueConstraintError(err) {
			return nil, ErrDuplicateUser
		}
		return nil, fmt.Errorf("user directory: create user: %w", err)
	}
	return user, nil
}

// MergeSubject binds an external subject to an existing user and refreshes the picture.
// A user already bound to a different subject is left untouched.
func (d *UserDirectory) MergeSubject(ctx context.Context, user *models.User, subject, picture string) error {
	ctx = ensureContext(ctx)
	if user == nil {
		return ErrUserNotFound
	}
	subject = strings.TrimSpace(subject)
	if subject == "" {
		return apperrors.NewBadRequest("subject is required")
	}
	if user.ExternalID != nil && *user.ExternalID != subject {
		return ErrIdentityConflict
	}

	updates := map[string]any{"external_id": subject}
	if picture = strings.TrimSpace(picture); picture != "" {
		updates["picture"] = picture
	}
	if err := d.db.WithContext(ctx).Model(user).Updates(updates).Error; err != nil {
		if isUniqueConstraintError(err) {
			return ErrDuplicateUser
		}
		return fmt.Errorf("user directory: merge subject: %w", err)
	}

	user.ExternalID = &subject
	if picture != "" {
		user.Picture = picture
	}
	return nil
}

// ResolveLogin applies the login policy: by subject, then by email with a subject merge,
// then create.
func (d *UserDirectory) ResolveLogin(ctx context.Context, id identity.Identity) (*models.User, error) {
	ctx = ensureContext(ctx)

	user, err := d.FindBySubject(ctx, id.Subject)
	switch {
	case err == nil:
		return user, d.touchLogin(ctx, user)
	case !errors.Is(err, ErrUserNotFound):
		return nil, err
	}

	email := normaliseEmail(id.Email)
	if email == "" {
		return nil, apperrors.NewBadRequest("identity has no email address")
	}

	user, err = d.FindByEmail(ctx, email)
	switch {
	case err == nil:
		if err := d.MergeSubject(ctx, user, id.Subject, id.Picture); err != nil {
			return nil, err
		}
		d.log.Info("merged identity into existing user",
			zap.String("user_id", user.ID),
			zap.String("subject", id.Subject),
		)
		return user, d.touchLogin(ctx, user)
	case !errors.Is(err, ErrUserNotFound):
		return nil, err
	}

	user, err = d.Create(ctx, CreateUserInput{
		Email:      email,
		Name:       id.Name,
		Picture:    id.Picture,
		ExternalID: id.Subject,
	})
	if errors.Is(err, ErrDuplicateUser) {
		// Lost a race with a concurrent first login for the same identity.
		return d.FindBySubject(ctx, id.Subject)
	}
	if err != nil {
		return nil, err
	}
	return user, d.touchLogin(ctx, user)
}

func (d *UserDirectory) touchLogin(ctx context.Context, user *models.User) error {
	now := d.now()
	if err := d.db.WithContext(ctx).Model(user).Update("last_login_at", now).Error; err != nil {
		return fmt.Errorf("user directory: record login: %w", err)
	}
	user.LastLoginAt = &now
	return nil
}

// SetBan updates the ban fields only. Existing sessions are not revoked here.
func (d *UserDirectory) SetBan(ctx context.Context, userID string, banned bool, reason string, at time.Time) (*models.User, error) {
	ctx = ensureContext(ctx)

	user, err := d.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	updates := map[string]any{"banned": banned}
	if banned {
		if at.IsZero() {
			at = d.now()
		}
		updates["ban_reason"] = strings.TrimSpace(reason)
		updates["banned_at"] = at
	} else {
		updates["ban_reason"] = ""
		updates["banned_at"] = nil
	}

	if err := d.db.WithContext(ctx).Model(user).Updates(updates).Error; err != nil {
		return nil, fmt.Errorf("user directory: set ban: %w", err)
	}
	return d.FindByID(ctx, user.ID)
}

// SetAccessLevel changes the dashboard access level of a user.
func (d *UserDirectory) SetAccessLevel(ctx context.Context, userID string, level models.AccessLevel) (*models.User, error) {
	ctx = ensureContext(ctx)
	if !level.Valid() {
		return nil, apperrors.NewBadRequest("unknown access level")
	}

	user, err := d.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if err := d.db.WithContext(ctx).Model(user).Update("access_level", level).Error; err != nil {
		return nil, fmt.Errorf("user directory: set access level: %w", err)
	}
	user.AccessLevel = level
	return user, nil
}

// List returns users matching the options ordered by newest first.
func (d *UserDirectory) List(ctx context.Context, opts ListUsersOptions) ([]models.User, int64, error) {
	ctx = ensureContext(ctx)

	query := d.db.WithContext(ctx).Model(&models.User{})
	if opts.AccessLevel != "" {
		query = query.Where("access_level = ?", opts.AccessLevel)
	}
	if opts.Banned != nil {
		query = query.Where("banned = ?", *opts.Banned)
	}
	if q := strings.TrimSpace(opts.Query); q != "" {
		pattern := "%" + strings.ToLower(q) + "%"
		query = query.Where("LOWER(name) LIKE ? OR email LIKE ?", pattern, pattern)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("user directory: count users: %w", err)
	}

	var users []models.User
	if err := query.
		Order("created_at DESC").
		Offset(opts.offset()).
		Limit(opts.limit()).
		Find(&users).Error; err != nil {
		return nil, 0, fmt.Errorf("user directory: list users: %w", err)
	}
	return users, total, nil
}
