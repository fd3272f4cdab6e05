package app

import (
	"context"
	"errors"

	"mealtrack/internal/domain"
)

// ProfileService encapsulates biometric profile use cases.
type ProfileService struct {
	repo domain.ProfileRepository
}

// NewProfileService creates a ProfileService backed by the given repository.
func NewProfileService(repo domain.ProfileRepository) *ProfileService {
	return &ProfileService{repo: repo}
}

// ProfileView is a profile with the values derived from it.
type ProfileView struct {
	domain.BiometricProfile
	BMI            float64 `json:"bmi"`
	BMICategory    string  `json:"bmiCategory"`
	TargetCalories int     `json:"targetCalories"`
}

// Get returns the user's profile with BMI and calorie target.
func (s *ProfileService) Get(ctx context.Context, userKey string) (*ProfileView, error) {
	p, err := s.repo.GetProfile(ctx, userKey)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, domain.ErrProfileNotFound
	}
	return view(*p)
}

// Update validates and stores new biometric values, returning the updated
// view.
func (s *ProfileService) Update(ctx context.Context, userKey string, heightCm, weightKg float64, gender string) (*ProfileView, error) {
	p, err := ValidateProfile(userKey, heightCm, weightKg, gender)
	if err != nil {
		return nil, err
	}
	if err := s.repo.UpdateProfile(ctx, p); err != nil {
		return nil, err
	}
	return view(p)
}

// ValidateProfile checks biometric input and normalises the gender.
func ValidateProfile(userKey string, heightCm, weightKg float64, gender string) (domain.BiometricProfile, error) {
	if heightCm <= 0 || heightCm > 300 {
		return domain.BiometricProfile{}, errors.Join(domain.ErrInvalidProfile, errors.New("heightCm must be within (0, 300]"))
	}
	if weightKg <= 0 || weightKg > 500 {
		return domain.BiometricProfile{}, errors.Join(domain.ErrInvalidProfile, errors.New("weightKg must be within (0, 500]"))
	}
	g, err := domain.ParseGender(gender)
	if err != nil {
		return domain.BiometricProfile{}, err
	}
	return domain.BiometricProfile{UserKey: userKey, HeightCm: heightCm, WeightKg: weightKg, Gender: g}, nil
}

func view(p domain.BiometricProfile) (*ProfileView, error) {
	target, err := domain.TargetCalories(p.HeightCm, p.Gender)
	if err != nil {
		return nil, err
	}
	v := &ProfileView{BiometricProfile: p, TargetCalories: target}
	if bmi, err := domain.BMI(p.HeightCm, p.WeightKg); err == nil {
		v.BMI = bmi
		v.BMICategory = domain.BMICategory(bmi)
	}
	return v, nil
}
