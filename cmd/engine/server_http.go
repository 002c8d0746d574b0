package main

import (
	"net/http"

	"github.com/NordCoder/checkengine/internal/obs"
	pg "github.com/NordCoder/checkengine/internal/repository/postgres"
	"github.com/NordCoder/checkengine/internal/services/control"
	"go.uber.org/zap"
)

// buildHTTPServer serves /metrics, /healthz and the control routes on one
// listener.
func buildHTTPServer(addr string, db *pg.DB, ctrl *control.Handler, logger *zap.Logger) *http.Server {
	return obs.BootstrapMetricsServer(addr, db.Ping, ctrl.Routes(), logger)
}
