package api

import (
	"regexp"
	"strings"

	"github.com/google/uuid"
)

const verificationIDPrefix = "ver_"

var verificationIDPattern = regexp.MustCompile(`^ver_[a-f0-9]{32}$`)

// NewVerificationID generates a new verification record ID with the "ver_"
// prefix followed by the 32 hex digits of a random UUID.
func NewVerificationID() string {
	return verificationIDPrefix + strings.ReplaceAll(uuid.NewString(), "-", "")
}

// ValidateVerificationID checks whether id is a well-formed verification ID.
func ValidateVerificationID(id string) bool {
	return verificationIDPattern.MatchString(id)
}

// ShortToken returns an 8 character random hex token. It is used to keep
// artifact names unique when several are created within the same second.
func ShortToken() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
}
