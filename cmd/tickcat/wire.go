//go:build wireinject
// +build wireinject

package main

import (
	"log/slog"

	"tick-catalog/internal/app"
	"tick-catalog/internal/catalog"
	"tick-catalog/internal/saver"

	"github.com/google/wire"
)

// App holds application dependencies built by Wire.
type App struct {
	Config  *app.Config
	Logger  *slog.Logger
	Catalog *catalog.Catalog
	Saver   saver.PacketSaver
}

// InitializeApp builds App (Config + Logger + registered Catalog + PacketSaver) via Wire.
// Caller must call the returned cleanup, which closes the catalog and the log file.
func InitializeApp() (*App, func(), error) {
	wire.Build(
		app.ProvideConfig,
		app.ProvideLogger,
		app.ProvideLedger,
		app.ProvideManifest,
		app.ProvidePacketSaver,
		app.ProvideCatalog,
		wire.Struct(new(App), "Config", "Logger", "Catalog", "Saver"),
	)
	return nil, nil, nil
}
