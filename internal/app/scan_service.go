package app

import (
	"context"

	"go.uber.org/zap"

	"mealtrack/internal/domain"
	"mealtrack/internal/logging"
)

// Detector identifies food in an image file.
type Detector interface {
	Detect(ctx context.Context, imagePath string) ([]domain.Detection, error)
}

// ScanResult pairs each detection with its catalog match, slot for slot.
type ScanResult struct {
	Detections []domain.Detection         `json:"detections"`
	Labels     []string                   `json:"detectedFoods"`
	Foods      []*domain.ResolvedFoodInfo `json:"foodInfo"`
}

// ScanService runs recognition on an uploaded image and resolves the labels.
type ScanService struct {
	detector Detector
	resolver *Resolver
	log      *zap.Logger
}

// NewScanService creates a ScanService.
func NewScanService(detector Detector, resolver *Resolver, log *zap.Logger) *ScanService {
	return &ScanService{detector: detector, resolver: resolver, log: logging.OrNop(log)}
}

// Scan detects food in the image and resolves every label. An image with no
// detections yields an empty result.
func (s *ScanService) Scan(ctx context.Context, imagePath string) (*ScanResult, error) {
	detections, err := s.detector.Detect(ctx, imagePath)
	if err != nil {
		return nil, err
	}
	labels := domain.Labels(detections)
	foods, err := s.resolver.Resolve(ctx, labels)
	if err != nil {
		return nil, err
	}

	matched := 0
	for _, f := range foods {
		if f != nil {
			matched++
		}
	}
	s.log.Info("image scanned",
		zap.String("image", imagePath),
		zap.Int("detections", len(detections)),
		zap.Int("matched", matched),
	)
	return &ScanResult{Detections: detections, Labels: labels, Foods: foods}, nil
}
