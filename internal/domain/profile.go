package domain

import (
	"context"
	"fmt"
	"strings"
)

// Gender selects the coefficient of the daily target formula.
type Gender string

const (
	Female Gender = "female"
	Male   Gender = "male"
)

// ParseGender normalises s; unknown values yield ErrInvalidProfile.
func ParseGender(s string) (Gender, error) {
	switch g := Gender(strings.ToLower(strings.TrimSpace(s))); g {
	case Female, Male:
		return g, nil
	}
	return "", fmt.Errorf("%w: unknown gender %q", ErrInvalidProfile, s)
}

// BiometricProfile holds the attributes the calorie target is derived from.
type BiometricProfile struct {
	UserKey  string  `json:"userKey"`
	HeightCm float64 `json:"heightCm"`
	WeightKg float64 `json:"weightKg"`
	Gender   Gender  `json:"gender"`
}

// ProfileRepository is the port for reading and updating biometric
// profiles. GetProfile returns (nil, nil) for an unknown user.
type ProfileRepository interface {
	GetProfile(ctx context.Context, userKey string) (*BiometricProfile, error)
	UpdateProfile(ctx context.Context, p BiometricProfile) error
}
