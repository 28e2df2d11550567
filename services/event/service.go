package event

import (
	"context"

	"donorplane/pkg/errutil"
	"donorplane/pkg/repository"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Service struct {
	db   *gorm.DB
	node *snowflake.Node
	repo repository.Repository[Event]
}

type ServiceParams struct {
	fx.In
	DB   *gorm.DB
	Node *snowflake.Node
}

func NewService(p ServiceParams) *Service {
	return &Service{
		db:   p.DB,
		node: p.Node,
		repo: repository.ProvideStore[Event](p.DB),
	}
}

type CreateEventInput struct {
	Title     string  `json:"title" binding:"required"`
	CreatedBy *string `json:"created_by"`
}

func (s *Service) CreateEvent(ctx context.Context, in CreateEventInput) (*Event, error) {
	record := &Event{
		ID:        s.node.Generate().String(),
		Title:     in.Title,
		CreatedBy: in.CreatedBy,
	}

	if err := s.repo.Create(ctx, record); err != nil {
		zap.L().Error("failed to create event", zap.Error(err))
		return nil, errutil.Internal("failed to create event", errutil.WithErr(err))
	}

	return record, nil
}

// GetEvent returns (nil, nil) when the event does not exist so callers can
// decide whether absence is an error; the routing engine treats it as a
// fall-through to platform credentials.
func (s *Service) GetEvent(ctx context.Context, eventID string) (*Event, error) {
	record, err := s.repo.FindOne(ctx, &Event{ID: eventID})
	if err != nil {
		zap.L().Error("failed query get event by id", zap.Error(err))
		return nil, errutil.Internal("failed to get event", errutil.WithErr(err))
	}

	return record, nil
}
