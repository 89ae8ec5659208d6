package service

import (
	"context"
	"time"

	"restaurant-ordering/internal/domain"
	"restaurant-ordering/internal/repository"
)

type TrackerServiceInterface interface {
	Tracking(ctx context.Context, id string) (domain.TrackingResponse, error)
	Workers(ctx context.Context) ([]domain.Worker, error)
}

type trackingRepo interface {
	repository.OrderRepository
	ListWorkers(ctx context.Context) ([]domain.Worker, error)
}

type TrackerService struct {
	repo trackingRepo
}

func NewTrackerService(repo trackingRepo) *TrackerService {
	return &TrackerService{repo: repo}
}

// Tracking is the customer-facing view: current status, ticket and timeline.
func (s *TrackerService) Tracking(ctx context.Context, id string) (domain.TrackingResponse, error) {
	o, err := s.repo.GetOrder(ctx, id)
	if err != nil {
		return domain.TrackingResponse{}, err
	}
	timeline, err := s.repo.StatusHistory(ctx, id)
	if err != nil {
		return domain.TrackingResponse{}, err
	}
	return domain.TrackingResponse{
		OrderID:      o.ID,
		TicketNumber: o.TicketNumber,
		Status:       o.Status,
		UpdatedAt:    o.UpdatedAt.UTC().Format(time.RFC3339),
		Timeline:     timeline,
	}, nil
}

// Workers lists kitchen workers with their last heartbeat.
func (s *TrackerService) Workers(ctx context.Context) ([]domain.Worker, error) {
	ws, err := s.repo.ListWorkers(ctx)
	if err != nil {
		return nil, err
	}
	if ws == nil {
		ws = []domain.Worker{}
	}
	return ws, nil
}
