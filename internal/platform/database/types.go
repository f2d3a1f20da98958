package database

type Configuration struct {
	LogLevel  string `json:"logLevel"`
	Port      int    `json:"port"`      // port the server is listening on. 80/443 will be omitted from URLs
	Host      string `json:"host"`      // host the server is listening on
	ProxyPort int    `json:"proxyPort"` // port a reverse proxy is listening on, 0 = no proxy. 80/443 will be omitted from URLs

	// RateLimitPerMinute caps /analyze requests per client identity within a
	// trailing 60s window. 0 = package default.
	RateLimitPerMinute int `json:"rateLimitPerMinute"`

	// MediaDirName is the directory under the storage dir where completed
	// downloads live.
	MediaDirName string `json:"mediaDirName"`

	// FallbackBackendURL is the secondary backend the fetch client retries
	// against when the primary is unreachable.
	FallbackBackendURL string `json:"fallbackBackendURL"`
}
