package enums

import "fmt"

// ChallengeChannel identifies the delivery transport for a one-time code.
type ChallengeChannel string

const (
	ChallengeChannelEmail ChallengeChannel = "email"
	ChallengeChannelSMS   ChallengeChannel = "sms"
)

var validChallengeChannels = []ChallengeChannel{
	ChallengeChannelEmail,
	ChallengeChannelSMS,
}

// String implements fmt.Stringer.
func (c ChallengeChannel) String() string {
	return string(c)
}

// IsValid reports whether the value is a known ChallengeChannel.
func (c ChallengeChannel) IsValid() bool {
	for _, candidate := range validChallengeChannels {
		if candidate == c {
			return true
		}
	}
	return false
}

// ParseChallengeChannel converts raw input into a ChallengeChannel.
func ParseChallengeChannel(value string) (ChallengeChannel, error) {
	for _, candidate := range validChallengeChannels {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid challenge channel %q", value)
}
