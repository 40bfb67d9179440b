package adminapi

import (
	"os"
	"strings"
	"unicode"

	"github.com/sirupsen/logrus"
)

// SecurityWarning represents a security warning about the admin token.
type SecurityWarning struct {
	Level   string // "CRITICAL", "HIGH", "MEDIUM"
	Code    string
	Message string
}

// ValidateAndWarn checks the configured admin bearer token for weak
// defaults and logs warnings. Returns the warnings found.
func ValidateAndWarn(adminToken string, logger *logrus.Logger) []SecurityWarning {
	var warnings []SecurityWarning

	if isWeakToken(adminToken) {
		w := SecurityWarning{
			Level:   "CRITICAL",
			Code:    "WEAK_ADMIN_TOKEN",
			Message: "CHMERGE_ADMIN_TOKEN is short or a known default. Set a strong, random token for production use.",
		}
		warnings = append(warnings, w)
		if logger != nil {
			logger.Warn("[SECURITY] " + w.Message)
		}
	}

	if isProductionMode() && len(warnings) > 0 && logger != nil {
		logger.Error("[SECURITY] Production mode detected with security warnings. Review configuration immediately!")
	}

	return warnings
}

// LogDefaultCredentialWarnings logs a warning if no admin token is set.
func LogDefaultCredentialWarnings(logger *logrus.Logger) {
	if os.Getenv("CHMERGE_ADMIN_TOKEN") == "" {
		logger.Warn("[CONFIG] CHMERGE_ADMIN_TOKEN not set. The admin server will refuse to start.")
	}
}

func isWeakToken(token string) bool {
	weakDefaults := []string{"admin", "changeme", "secret", "token", "password"}
	lower := strings.ToLower(token)
	for _, weak := range weakDefaults {
		if lower == weak {
			return true
		}
	}
	if len(token) < 16 {
		return true
	}
	return !hasRequiredComplexity(token)
}

func hasRequiredComplexity(s string) bool {
	var hasUpper, hasLower, hasDigit bool
	for _, c := range s {
		switch {
		case unicode.IsUpper(c):
			hasUpper = true
		case unicode.IsLower(c):
			hasLower = true
		case unicode.IsDigit(c):
			hasDigit = true
		}
	}
	complexity := 0
	if hasUpper {
		complexity++
	}
	if hasLower {
		complexity++
	}
	if hasDigit {
		complexity++
	}
	return complexity >= 2
}

func isProductionMode() bool {
	env := strings.ToLower(os.Getenv("GO_ENV"))
	if env == "production" || env == "prod" {
		return true
	}
	env = strings.ToLower(os.Getenv("APP_ENV"))
	return env == "production" || env == "prod"
}
