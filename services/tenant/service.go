package tenant

import (
	"context"

	"donorplane/pkg/db/option"
	"donorplane/pkg/db/pagination"
	"donorplane/pkg/errutil"
	"donorplane/pkg/repository"

	"github.com/bwmarrin/snowflake"
	"github.com/gosimple/slug"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Service struct {
	db   *gorm.DB
	node *snowflake.Node
	repo repository.Repository[Tenant]
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
		repo: repository.ProvideStore[Tenant](p.DB),
	}
}

type CreateTenantInput struct {
	Name  string   `json:"name" binding:"required"`
	Slug  string   `json:"slug"`
	Roles []string `json:"roles"`
}

func (s *Service) CreateTenant(ctx context.Context, in CreateTenantInput) (*Tenant, error) {
	span := trace.SpanFromContext(ctx)
	zapLog := zap.L().With(
		zap.String("trace_id", span.SpanContext().TraceID().String()),
		zap.String("span_id", span.SpanContext().SpanID().String()),
	)

	slugName := in.Slug
	if slugName == "" {
		slugName = slug.Make(in.Name)
	}

	exist, err := s.repo.FindOne(ctx, &Tenant{Slug: slugName})
	if err != nil {
		zapLog.Error("failed query get tenant by slug", zap.Error(err))
		return nil, errutil.Internal("failed to check existing tenant", errutil.WithErr(err))
	}

	if exist != nil {
		zapLog.Warn("tenant already exists", zap.String("slug", slugName))
		return nil, errutil.Conflict("tenant already exists")
	}

	record := &Tenant{
		ID:     s.node.Generate().String(),
		Name:   in.Name,
		Slug:   slugName,
		Roles:  in.Roles,
		Status: Active,
	}

	if err := s.repo.Create(ctx, record); err != nil {
		zapLog.Error("failed to create tenant", zap.Error(err))
		return nil, errutil.Internal("failed to create tenant", errutil.WithErr(err))
	}

	return record, nil
}

func (s *Service) GetTenant(ctx context.Context, tenantID string) (*Tenant, error) {
	record, err := s.repo.FindOne(ctx, &Tenant{ID: tenantID})
	if err != nil {
		zap.L().Error("failed query get tenant by id", zap.Error(err))
		return nil, errutil.Internal("failed to get tenant", errutil.WithErr(err))
	}

	if record == nil {
		return nil, errutil.NotFound("tenant not found")
	}

	return record, nil
}

// FindTenant returns (nil, nil) when the tenant does not exist, leaving the
// caller to decide whether absence matters. A non-nil error always means the
// lookup itself failed.
func (s *Service) FindTenant(ctx context.Context, tenantID string) (*Tenant, error) {
	record, err := s.repo.FindOne(ctx, &Tenant{ID: tenantID})
	if err != nil {
		zap.L().Error("failed query get tenant by id", zap.Error(err))
		return nil, errutil.Internal("failed to get tenant", errutil.WithErr(err))
	}

	return record, nil
}

func (s *Service) ListTenants(ctx context.Context, page pagination.Pagination) ([]*Tenant, error) {
	tenants, err := s.repo.Find(ctx, &Tenant{}, option.ApplyPagination(page))
	if err != nil {
		zap.L().Error("failed to list tenants", zap.Error(err))
		return nil, errutil.Internal("failed to list tenants", errutil.WithErr(err))
	}

	return tenants, nil
}
