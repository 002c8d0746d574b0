package main

import (
	"context"

	config "github.com/NordCoder/checkengine/internal/config/engine"
	"github.com/NordCoder/checkengine/internal/obs"
)

func initOTel(ctx context.Context, cfg *config.Config) (func(context.Context) error, error) {
	closer, err := obs.SetupOTel(ctx, cfg.OTELConfig())
	if err != nil {
		return nil, err
	}
	return closer.Shutdown, nil
}
