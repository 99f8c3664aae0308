package randomgen

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
)

// TestPickNames expects the names to be taken from the lists.
func TestPickNames(t *testing.T) {
	for i := 0; i < 100; i++ {
		assert.Contains(t, firstNames, PickFirstName())
		assert.Contains(t, lastNames, PickLastName())
	}
}

// TestEmail expects well-formed and mostly distinct email addresses.
func TestEmail(t *testing.T) {
	pattern := regexp.MustCompile(`^[^@\s]+\.\d{6}@[a-z.]+$`)
	seen := make(map[string]struct{})
	for i := 0; i < 100; i++ {
		email := Email()
		assert.Regexp(t, pattern, email)
		seen[email] = struct{}{}
	}
	assert.Greater(t, len(seen), 90)
}

// TestPhoneNumber expects ten digit phone numbers without a leading zero.
func TestPhoneNumber(t *testing.T) {
	pattern := regexp.MustCompile(`^[1-9]\d{9}$`)
	for i := 0; i < 100; i++ {
		assert.Regexp(t, pattern, PhoneNumber())
	}
}
