package httpapi

// Config defines HTTP API settings.
type Config struct {
	Addr     string
	BasePath string
	// HubHistory bounds the number of events kept for SSE replay.
	HubHistory int
}
