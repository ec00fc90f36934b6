package domain

import (
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	dErrors "insurely/pkg/domain-errors"
)

// PolicyID is the dense, 1-based identifier assigned to a policy at issuance.
type PolicyID int64

// ClaimID is the dense, 1-based identifier assigned to a claim at submission.
type ClaimID int64

// Principal identifies an authenticated caller. Authentication happens upstream;
// the core only compares principals for equality and role membership.
type Principal string

const maxPrincipalLength = 256

func (id PolicyID) String() string { return strconv.FormatInt(int64(id), 10) }

func (id ClaimID) String() string { return strconv.FormatInt(int64(id), 10) }

func (p Principal) String() string { return string(p) }

// IsNil reports whether the principal is empty.
func (p Principal) IsNil() bool { return p == "" }

// ParsePolicyID parses a positive decimal policy identifier.
func ParsePolicyID(s string) (PolicyID, error) {
	n, err := parsePositiveID(s, "policy")
	if err != nil {
		return 0, err
	}
	return PolicyID(n), nil
}

// ParseClaimID parses a positive decimal claim identifier.
func ParseClaimID(s string) (ClaimID, error) {
	n, err := parsePositiveID(s, "claim")
	if err != nil {
		return 0, err
	}
	return ClaimID(n), nil
}

func parsePositiveID(s, kind string) (int64, error) {
	if s == "" {
		return 0, dErrors.New(dErrors.CodeBadRequest, kind+" id is required")
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil || n <= 0 {
		return 0, dErrors.New(dErrors.CodeBadRequest, "invalid "+kind+" id")
	}
	return n, nil
}

// ParsePrincipal validates a principal identifier at a trust boundary.
// Surrounding whitespace is trimmed; control characters are rejected.
func ParsePrincipal(s string) (Principal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", dErrors.New(dErrors.CodeBadRequest, "principal is required")
	}
	if len(s) > maxPrincipalLength {
		return "", dErrors.New(dErrors.CodeBadRequest, "principal is too long")
	}
	if !utf8.ValidString(s) {
		return "", dErrors.New(dErrors.CodeBadRequest, "principal must be valid UTF-8")
	}
	for _, r := range s {
		if unicode.IsControl(r) || unicode.Is(unicode.Cf, r) {
			return "", dErrors.New(dErrors.CodeBadRequest, "principal contains invalid characters")
		}
	}
	return Principal(s), nil
}
