package marketplace

import (
	"github.com/smallbiznis/collabhub/internal/marketplace/domain"
	"github.com/smallbiznis/collabhub/internal/marketplace/repository"
	"github.com/smallbiznis/collabhub/internal/marketplace/service"
	"go.uber.org/fx"
)

var Module = fx.Module("marketplace.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewService),
	fx.Provide(func(s *service.Service) domain.Service { return s }),
)
