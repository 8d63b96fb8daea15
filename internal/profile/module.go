// Package profile provides the user health profile bounded context module.
package profile

import (
	"github.com/jackc/pgx/v5/pgxpool"

	apphttp "healthlens_backend/internal/http"
	"healthlens_backend/internal/profile/handler"
	"healthlens_backend/internal/profile/repository"
	"healthlens_backend/internal/profile/service"
	"healthlens_backend/platform/validator"
)

// Module is the profile bounded context module implementing http.Module.
type Module struct {
	handler *handler.Handler
	service *service.Service
}

// NewModule creates and initializes the profile module.
func NewModule(pool *pgxpool.Pool, val *validator.Validator) *Module {
	repo := repository.New(pool)
	svc := service.New(repo)
	h := handler.New(svc, val)

	return &Module{handler: h, service: svc}
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "profile"
}

// Service returns the service layer for external use.
func (m *Module) Service() *service.Service {
	return m.service
}

// RegisterRoutes mounts profile routes on the provided router context.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	ctx.Protected.GET("/profile", m.handler.GetProfile)
	ctx.Protected.PUT("/profile", m.handler.UpsertProfile)
}

// Compile-time check that Module implements http.Module
var _ apphttp.Module = (*Module)(nil)
