package main

import (
	"context"
	"log"
	"os"

	config "github.com/NordCoder/checkengine/internal/config/engine"
	"github.com/NordCoder/checkengine/internal/obs"
	"github.com/NordCoder/checkengine/migrations"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	"go.uber.org/zap"
)

// migrator applies the embedded migrations. The DSN comes from the engine
// config, so DB_DSN overrides it the same way it does for the engine.
func main() {
	path := os.Getenv("CONFIG_PATH")
	if path == "" {
		path = "config/engine.yaml"
	}
	cfg, err := config.Load(path)
	if err != nil {
		log.Fatal(err)
	}
	l, err := obs.NewLogger(obs.LogConfig{Level: cfg.Log.Level, Pretty: cfg.Log.Pretty, App: "checkengine/migrator", Env: cfg.App.Env})
	if err != nil {
		log.Fatal(err)
	}
	defer func() { _ = l.Sync() }()

	cmd := "up"
	if len(os.Args) > 1 {
		cmd = os.Args[1]
	}

	goose.SetBaseFS(migrations.FS)
	goose.SetLogger(zap.NewStdLog(l))
	if err := goose.SetDialect("postgres"); err != nil {
		l.Fatal("set dialect", zap.Error(err))
	}
	db, err := goose.OpenDBWithDriver("pgx", cfg.DB.DSN)
	if err != nil {
		l.Fatal("open db", zap.Error(err))
	}
	defer db.Close()

	if err := goose.RunContext(context.Background(), cmd, db, "."); err != nil {
		l.Fatal("migrate", zap.String("command", cmd), zap.Error(err))
	}
	l.Info("migrations applied", zap.String("command", cmd))
}
