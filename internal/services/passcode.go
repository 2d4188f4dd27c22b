package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/feelize/platform/internal/models"
	"github.com/feelize/platform/pkg/crypto"
	apperrors "github.com/feelize/platform/pkg/errors"
)

// PasscodeResult is the outcome of a passcode verification attempt.
type PasscodeResult int

const (
	PasscodeMismatch PasscodeResult = iota
	PasscodeExpired
	PasscodeOK
)

func (r PasscodeResult) String() string {
	switch r {
	case PasscodeOK:
		return "ok"
	case PasscodeExpired:
		return "expired"
	default:
		return "mismatch"
	}
}

// IssuePasscode generates a numeric one-time code for the email, creating a shadow user when
// none exists. Only the bcrypt hash is persisted; the plaintext is returned for delivery.
func (d *UserDirectory) IssuePasscode(ctx context.Context, email string) (string, *models.User, error) {
	ctx = ensureContext(ctx)

	email = normaliseEmail(email)
	if email == "" {
		return "", nil, apperrors.NewBadRequest("email is required")
	}

	user, err := d.FindByEmail(ctx, email)
	if errors.Is(err, ErrUserNotFound) {
		user, err = d.Create(ctx, CreateUserInput{Email: email})
		if errors.Is(err, ErrDuplicateUser) {
			user, err = d.FindByEmail(ctx, email)
		}
	}
	if err != nil {
		return "", nil, err
	}

	now := d.now()
	code, err := crypto.GeneratePasscode(d.passcodeDigits, now)
	if err != nil {
		return "", nil, fmt.Errorf("user directory: generate passcode: %w", err)
	}
	hash, err := crypto.HashSecret(code)
	if err != nil {
		return "", nil, fmt.Errorf("user directory: hash passcode: %w", err)
	}

	expires := now.Add(d.passcodeTTL)
	if err := d.db.WithContext(ctx).Model(user).Updates(map[string]any{
		"passcode_hash":       hash,
		"passcode_expires_at": expires,
		"passcode_attempts":   0,
	}).Error; err != nil {
		return "", nil, fmt.Errorf("user directory: store passcode: %w", err)
	}
	user.PasscodeHash = hash
	user.PasscodeExpiresAt = &expires
	user.PasscodeAttempts = 0

	d.log.Info("passcode issued", zap.String("user_id", user.ID), zap.Time("expires_at", expires))
	return code, user, nil
}

// ConsumePasscode verifies a code for the email. A match clears the stored code so it
// cannot be replayed; the expiry instant itself is still accepted. Once the attempt limit
// is reached the code is discarded and every later guess is a mismatch.
func (d *UserDirectory) ConsumePasscode(ctx context.Context, email, code string) (PasscodeResult, *models.User, error) {
	ctx = ensureContext(ctx)

	user, err := d.FindByEmail(ctx, email)
	if errors.Is(err, ErrUserNotFound) {
		return PasscodeMismatch, nil, nil
	}
	if err != nil {
		return PasscodeMismatch, nil, err
	}

	if user.PasscodeHash == "" || user.PasscodeExpiresAt == nil {
		return PasscodeMismatch, user, nil
	}
	if d.now().After(*user.PasscodeExpiresAt) {
		return PasscodeExpired, user, nil
	}
	if !crypto.VerifySecret(user.PasscodeHash, strings.TrimSpace(code)) {
		if err := d.recordPasscodeFailure(ctx, user); err != nil {
			return PasscodeMismatch, nil, err
		}
		return PasscodeMismatch, user, nil
	}

	if err := d.clearPasscode(ctx, user); err != nil {
		return PasscodeMismatch, nil, err
	}
	return PasscodeOK, user, nil
}

func (d *UserDirectory) recordPasscodeFailure(ctx context.Context, user *models.User) error {
	if err := d.db.WithContext(ctx).Model(user).
		UpdateColumn("passcode_attempts", gorm.Expr("passcode_attempts + 1")).Error; err != nil {
		return fmt.Errorf("user directory: record passcode attempt: %w", err)
	}

	var current models.User
	if err := d.db.WithContext(ctx).Select("passcode_attempts").
		Where("id = ?", user.ID).
		Take(&current).Error; err != nil {
		return fmt.Errorf("user directory: load passcode attempts: %w", err)
	}
	user.PasscodeAttempts = current.PasscodeAttempts

	if current.PasscodeAttempts < d.passcodeMaxAttempts {
		return nil
	}
	d.log.Warn("passcode attempt limit reached", zap.String("user_id", user.ID), zap.Int("attempts", current.PasscodeAttempts))
	return d.clearPasscode(ctx, user)
}

func (d *UserDirectory) clearPasscode(ctx context.Context, user *models.User) error {
	if err := d.db.WithContext(ctx).Model(user).Updates(map[string]any{
		"passcode_hash":       "",
		"passcode_expires_at": nil,
		"passcode_attempts":   0,
	}).Error; err != nil {
		return fmt.Errorf("user directory: clear passcode: %w", err)
	}
	user.PasscodeHash = ""
	user.PasscodeExpiresAt = nil
	user.PasscodeAttempts = 0
	return nil
}

// PurgeExpiredPasscodes clears passcodes whose expiry is before cutoff.
func (d *UserDirectory) PurgeExpiredPasscodes(ctx context.Context, cutoff time.Time) (int64, error) {
	res := d.db.WithContext(ensureContext(ctx)).
		Model(&models.User{}).
		Where("passcode_expires_at IS NOT NULL AND passcode_expires_at < ?", cutoff).
		Updates(map[string]any{"passcode_hash": "", "passcode_expires_at": nil})
	if res.Error != nil {
		return 0, fmt.Errorf("user directory: purge passcodes: %w", res.Error)
	}
	return res.RowsAffected, nil
}

// PasscodeTTL reports how long an issued passcode stays valid.
func (d *UserDirectory) PasscodeTTL() time.Duration {
	return d.passcodeTTL
}
