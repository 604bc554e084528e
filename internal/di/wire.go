//go:build wireinject
// +build wireinject

package di

import (
	"SessionOverlay/pkg/config"
	"SessionOverlay/pkg/server"

	"github.com/google/wire"
)

// InitializeHub wires the marker hub: ingest, broker, channel fan-out and
// candle history.
func InitializeHub(cfg *config.Config) (*server.App, error) {
	wire.Build(
		ProvideLogger,
		ProvideMetrics,
		ProvideLocation,

		// Storage
		ProvideClickHouseClient,
		ProvideBarStore,
		ProvideCache,
		ProvideSnapshotStore,

		// Fan-out
		ProvideCandlePoller,
		ProvideHubManager,
		ProvideMarkerDelivery,
		ProvideMarkerBroker,
		ProvideKafkaConsumer,
		ProvideKafkaMarkersHandler,

		// Use cases
		ProvideRateLimiter,
		ProvideMarkerIngest,
		ProvideHistoryUseCase,
		ProvideFlowEventStore,
		ProvideBuyFlowUseCase,

		ProvideHubHandler,
		ProvideHubApp,
	)
	return &server.App{}, nil
}

// InitializeViewer wires the overlay viewer for one symbol.
func InitializeViewer(cfg *config.Config) (*server.App, error) {
	wire.Build(
		ProvideLogger,
		ProvideMetrics,
		ProvideLocation,

		ProvideMarkerStream,
		ProvideHistoryFetcher,

		ProvideSurface,
		ProvideResolver,
		ProvideCalculator,
		ProvideOverlayManager,
		ProvideSession,

		ProvideViewerHandler,
		ProvideViewerApp,
	)
	return &server.App{}, nil
}
