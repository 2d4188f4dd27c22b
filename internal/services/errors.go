package services

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"

	apperrors "github.com/feelize/platform/pkg/errors"
)

var (
	// ErrUserNotFound indicates the requested user does not exist.
	ErrUserNotFound = apperrors.New("USER_NOT_FOUND", "User not found", http.StatusNotFound)
	// ErrDuplicateUser indicates a user with the same email or subject already exists.
	ErrDuplicateUser = apperrors.New("DUPLICATE_USER", "A user with this email already exists", http.StatusBadRequest)
	// ErrIdentityConflict indicates the email is already bound to a different external subject.
	ErrIdentityConflict = apperrors.New("IDENTITY_CONFLICT", "This email is linked to a different sign-in account", http.StatusForbidden)

	// ErrAffiliateNotFound indicates the requested affiliate does not exist.
	ErrAffiliateNotFound = apperrors.New("AFFILIATE_NOT_FOUND", "Affiliate not found", http.StatusNotFound)
	// ErrDuplicateCode indicates the referral code is already taken, in any letter case.
	ErrDuplicateCode = apperrors.New("DUPLICATE_REFERRAL_CODE", "Referral code is already in use", http.StatusBadRequest)
	// ErrDuplicateAffiliate indicates an affiliate already exists for the email.
	ErrDuplicateAffiliate = apperrors.New("DUPLICATE_AFFILIATE", "An affiliate with this email already exists", http.StatusBadRequest)
	// ErrInvalidReferralCode indicates a user-supplied code does not match the accepted pattern.
	ErrInvalidReferralCode = apperrors.New("INVALID_REFERRAL_CODE", "Referral code must be 4-12 letters or digits", http.StatusBadRequest)

	// ErrReferralNotFound indicates the requested referral does not exist.
	ErrReferralNotFound = apperrors.New("REFERRAL_NOT_FOUND", "Referral not found", http.StatusNotFound)
	// ErrInvalidTransition indicates a status change not permitted by the lifecycle.
	ErrInvalidTransition = apperrors.New("INVALID_TRANSITION", "Status transition not allowed", http.StatusBadRequest)

	// ErrProjectNotFound indicates the requested project does not exist or is not visible.
	ErrProjectNotFound = apperrors.New("PROJECT_NOT_FOUND", "Project not found", http.StatusNotFound)
	// ErrTaskNotFound indicates the requested task does not exist.
	ErrTaskNotFound = apperrors.New("TASK_NOT_FOUND", "Task not found", http.StatusNotFound)
	// ErrActivityNotFound indicates the requested activity does not exist.
	ErrActivityNotFound = apperrors.New("ACTIVITY_NOT_FOUND", "Activity not found", http.StatusNotFound)
	// ErrMeetingNotFound indicates no meeting matches the booking uid.
	ErrMeetingNotFound = apperrors.New("MEETING_NOT_FOUND", "Meeting not found", http.StatusNotFound)
	// ErrEngineerNotFound indicates the requested engineer does not exist.
	ErrEngineerNotFound = apperrors.New("ENGINEER_NOT_FOUND", "Engineer not found", http.StatusNotFound)
	// ErrDuplicateEngineer indicates an engineer with the same email exists.
	ErrDuplicateEngineer = apperrors.New("DUPLICATE_ENGINEER", "An engineer with this email already exists", http.StatusBadRequest)
)

// isUniqueConstraintError detects database uniqueness constraint violations across vendors.
func isUniqueConstraintError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr != nil && pgErr.Code == "23505" {
		return true
	}

	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) && myErr != nil && myErr.Number == 1062 {
		return true
	}

	lower := strings.ToLower(err.Error())
	return strings.Contains(lower, "unique constraint") ||
		strings.Contains(lower, "duplicate key") ||
		strings.Contains(lower, "duplicate entry")
}
