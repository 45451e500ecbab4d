package relay

import (
	"net/http"

	"github.com/papercomputeco/glossa/pkg/platform"
)

// DefaultBodyLimit caps request bodies, uploads included.
const DefaultBodyLimit = 50 * 1024 * 1024

// Config is the relay server configuration.
type Config struct {
	// ListenAddr is the address to listen on (e.g., ":5000")
	ListenAddr string

	// OutputDir holds translated files served under /download/.
	OutputDir string

	// UploadDir holds uploaded files while they are being translated.
	UploadDir string

	// Fallback holds the last-resort upstream settings from config.toml.
	// It can be replaced at runtime with SetFallback.
	Fallback platform.Fallback

	// Env resolves <PLATFORM>_API_KEY style variables. Defaults to the
	// process environment.
	Env platform.LookupFunc

	// HTTPClient is used for upstream calls. Nil uses the translator's
	// default client.
	HTTPClient *http.Client

	// CaptureUpstream logs every raw upstream stream line at debug level.
	CaptureUpstream bool

	// BodyLimit overrides DefaultBodyLimit when positive.
	BodyLimit int
}
