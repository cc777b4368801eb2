//go:build wireinject
// +build wireinject

package di

import (
	"context"

	"github.com/charmbracelet/log"
	"github.com/google/wire"

	"github.com/PaulBabatuyi/messenger-core/internal/config"
)

// InitializeApplication builds the Application for cfg.
func InitializeApplication(ctx context.Context, cfg *config.Config, logger *log.Logger) (*Application, func(), error) {
	wire.Build(
		ProviderSet,
		wire.Struct(new(Application), "*"),
	)
	return &Application{}, nil, nil
}
