package config

import "github.com/studybuddyai/buddy/pkg/backend"

// Storage drivers accepted by storage.driver.
const (
	StorageInMemory = backend.DriverInMemory
	StorageSQLite   = backend.DriverSQLite
	StoragePostgres = backend.DriverPostgres

	storageDriversHelp = "inmemory, sqlite, postgres"
)

// Event providers accepted by events.provider.
const (
	EventsNone  = backend.PublisherNone
	EventsKafka = backend.PublisherKafka
)

const (
	defaultGatewayListen = ":8080"
	defaultUpstream      = "https://ai.gateway.lovable.dev/v1/chat/completions"
	defaultModel         = "google/gemini-3-flash-preview"
	defaultCORSOrigins   = "*"
	defaultAPIListen     = ":8081"

	defaultClientEndpoint  = "http://localhost:8080/chat"
	defaultClientAPITarget = "http://localhost:8081"

	defaultStorageDriver = StorageSQLite
	defaultSQLitePath    = "buddy.sqlite"

	defaultEventsProvider = EventsNone
	defaultEventsTopic    = "buddy.events"
)

// NewDefaultConfig returns a Config with sane defaults for all fields.
// This is the single source of truth for default values.
func NewDefaultConfig() *Config {
	return &Config{
		Version: CurrentV,
		Gateway: GatewayConfig{
			Listen:      defaultGatewayListen,
			Upstream:    defaultUpstream,
			Model:       defaultModel,
			CORSOrigins: defaultCORSOrigins,
		},
		API: APIConfig{
			Listen: defaultAPIListen,
		},
		Client: ClientConfig{
			Endpoint:  defaultClientEndpoint,
			APITarget: defaultClientAPITarget,
		},
		Storage: StorageConfig{
			Driver:     defaultStorageDriver,
			SQLitePath: defaultSQLitePath,
		},
		Events: EventsConfig{
			Provider: defaultEventsProvider,
			Topic:    defaultEventsTopic,
		},
	}
}

func isValidStorageDriver(v string) bool {
	switch v {
	case StorageInMemory, StorageSQLite, StoragePostgres:
		return true
	}
	return false
}
