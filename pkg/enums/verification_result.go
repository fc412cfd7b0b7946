package enums

import "fmt"

// VerificationResult records the server-side capture check for a gateway reference.
type VerificationResult string

const (
	VerificationResultCaptured VerificationResult = "captured"
	VerificationResultFailed   VerificationResult = "failed"
)

var validVerificationResults = []VerificationResult{
	VerificationResultCaptured,
	VerificationResultFailed,
}

// String implements fmt.Stringer.
func (v VerificationResult) String() string {
	return string(v)
}

// IsValid reports whether the value is a known VerificationResult.
func (v VerificationResult) IsValid() bool {
	for _, candidate := range validVerificationResults {
		if candidate == v {
			return true
		}
	}
	return false
}

// ParseVerificationResult converts raw input into a VerificationResult.
func ParseVerificationResult(value string) (VerificationResult, error) {
	for _, candidate := range validVerificationResults {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid verification result %q", value)
}
