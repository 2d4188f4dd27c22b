package validator

import (
	"reflect"
	"regexp"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

var (
	once     sync.Once
	validate *validator.Validate
)

// ReferralCodePattern is the accepted shape of user-supplied referral codes.
var ReferralCodePattern = regexp.MustCompile(`^[A-Z0-9]{4,12}$`)

// ValidationError represents a single field validation failure.
type ValidationError struct {
	Field string `json:"field"`
	Tag   string `json:"tag"`
	Param string `json:"param"`
}

// ValidationErrors collects multiple validation failures.
type ValidationErrors []ValidationError

func (v ValidationErrors) Error() string {
	if len(v) == 0 {
		return "validation failed"
	}

	parts := make([]string, len(v))
	for i, err := range v {
		if err.Param != "" {
			parts[i] = err.Field + " failed on " + err.Tag + "=" + err.Param
		} else {
			parts[i] = err.Field + " failed on " + err.Tag
		}
	}
	return strings.Join(parts, "; ")
}

// ValidateStruct validates a struct using registered rules.
func ValidateStruct(s interface{}) error {
	err := getValidator().Struct(s)
	if err == nil {
		return nil
	}

	if ve, ok := err.(validator.ValidationErrors); ok {
		failures := make(ValidationErrors, 0, len(ve))
		for _, fe := range ve {
			failures = append(failures, ValidationError{
				Field: fe.Field(),
				Tag:   fe.Tag(),
				Param: fe.Param(),
			})
		}
		return failures
	}

	return err
}

// IsReferralCode reports whether the value (upper-cased) is an acceptable referral code.
func IsReferralCode(value string) bool {
	return ReferralCodePattern.MatchString(strings.ToUpper(strings.TrimSpace(value)))
}

// AccessLevels lists the access levels a user can hold.
var AccessLevels = []string{"client", "affiliate", "engineer", "admin"}

// IsAccessLevel reports whether the value names a known access level.
func IsAccessLevel(value string) bool {
	for _, level := range AccessLevels {
		if value == level {
			return true
		}
	}
	return false
}

func getValidator() *validator.Validate {
	once.Do(func() {
		validate = validator.New()
		validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := fld.Tag.Get("json")
			if name == "" {
				return fld.Name
			}

			comma := strings.Index(name, ",")
			if comma != -1 {
				name = name[:comma]
			}

			if name == "-" || name == "" {
				return fld.Name
			}
			return name
		})

		_ = validate.RegisterValidation("referralcode", func(fl validator.FieldLevel) bool {
			return IsReferralCode(fl.Field().String())
		})
		_ = validate.RegisterValidation("accesslevel", func(fl validator.FieldLevel) bool {
			return IsAccessLevel(fl.Field().String())
		})
		_ = validate.RegisterValidation("oneofci", func(fl validator.FieldLevel) bool {
			value := strings.ToLower(strings.TrimSpace(fl.Field().String()))
			for _, allowed := range strings.Fields(fl.Param()) {
				if value == strings.ToLower(allowed) {
					return true
				}
			}
			return false
		})
	})
	return validate
}
