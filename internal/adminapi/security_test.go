package adminapi

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsWeakToken(t *testing.T) {
	cases := []struct {
		token string
		weak  bool
	}{
		{"admin", true},
		{"changeme", true},
		{"short1A", true},
		{"alllowercaseandlong12345", false},
		{"Str0ngRandomAdminToken!", false},
	}
	for _, c := range cases {
		assert.Equal(t, c.weak, isWeakToken(c.token), c.token)
	}
}

func TestHasRequiredComplexity(t *testing.T) {
	assert.True(t, hasRequiredComplexity("Abc12345"))
	assert.False(t, hasRequiredComplexity("abcdefgh"))
	assert.False(t, hasRequiredComplexity("12345678"))
}

func TestValidateAndWarn_WeakTokenReturnsWarning(t *testing.T) {
	warnings := ValidateAndWarn("admin", nil)
	assert.Len(t, warnings, 1)
	assert.Equal(t, "WEAK_ADMIN_TOKEN", warnings[0].Code)
}

func TestValidateAndWarn_StrongTokenReturnsNoWarning(t *testing.T) {
	warnings := ValidateAndWarn("Str0ngRandomAdminToken!", nil)
	assert.Empty(t, warnings)
}
