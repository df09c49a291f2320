package config

import (
	"errors"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// ViewerConfig configures the console viewer client.
type ViewerConfig struct {
	Session Session
	Display Display
	Timing  Timing
	HTTP    HTTP

	Diagnostics bool   `envconfig:"CONSOLE_DIAGNOSTICS" default:"false"` // Arms the Ctrl+Alt+Shift+Space overlay
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`
}

type Session struct {
	EventURL  string `envconfig:"CONSOLE_EVENT_URL"`
	UpdateURL string `envconfig:"CONSOLE_UPDATE_URL"`
	ImageURL  string `envconfig:"CONSOLE_IMAGE_URL"`
	PanelID   string `envconfig:"CONSOLE_PANEL_ID" default:"main"`

	Locale         string `envconfig:"CONSOLE_LOCALE" default:"en-us" description:"One of en-us, en-gb, ja or fr"`
	GuestOS        string `envconfig:"CONSOLE_GUEST_OS" default:""`
	Browser        string `envconfig:"CONSOLE_BROWSER" default:"chrome"`
	BrowserVersion string `envconfig:"CONSOLE_BROWSER_VERSION" default:""`
}

type Display struct {
	Width      int  `envconfig:"CONSOLE_WIDTH" default:"1024"`
	Height     int  `envconfig:"CONSOLE_HEIGHT" default:"768"`
	TileWidth  int  `envconfig:"CONSOLE_TILE_WIDTH" default:"64"`
	TileHeight int  `envconfig:"CONSOLE_TILE_HEIGHT" default:"64"`
	FullImage  bool `envconfig:"CONSOLE_FULL_IMAGE" default:"true"`
}

type Timing struct {
	Heartbeat     time.Duration `envconfig:"CONSOLE_HEARTBEAT" default:"50ms"`
	DoubleClick   time.Duration `envconfig:"CONSOLE_DOUBLE_CLICK" default:"300ms"`
	ScriptTimeout time.Duration `envconfig:"CONSOLE_SCRIPT_TIMEOUT" default:"1s"`
}

type HTTP struct {
	Timeout            time.Duration `envconfig:"CONSOLE_HTTP_TIMEOUT" default:"30s"`
	RetryMax           int           `envconfig:"CONSOLE_HTTP_RETRY_MAX" default:"0"` // Events and polls are resumed by the heartbeat instead
	ImageRetryAttempts uint          `envconfig:"CONSOLE_IMAGE_RETRY_ATTEMPTS" default:"3"`
	TLSSkipVerify      bool          `envconfig:"CONSOLE_TLS_SKIP_VERIFY" default:"false"`
}

// LoadViewerConfig reads the viewer config from the environment, after
// loading a .env file if there is one.
func LoadViewerConfig() (ViewerConfig, error) {
	_ = godotenv.Load()

	var cfg ViewerConfig
	err := envconfig.Process("", &cfg)
	if err != nil {
		return ViewerConfig{}, err
	}
	return cfg, nil
}

// Validate checks the settings a session cannot start without.
func (c ViewerConfig) Validate() error {
	var errs []error
	if c.Session.EventURL == "" {
		errs = append(errs, errors.New("event URL is required (CONSOLE_EVENT_URL)"))
	}
	if c.Session.UpdateURL == "" {
		errs = append(errs, errors.New("update URL is required (CONSOLE_UPDATE_URL)"))
	}
	if c.Display.Width <= 0 || c.Display.Height <= 0 {
		errs = append(errs, errors.New("display size must be positive"))
	}
	if c.Display.TileWidth <= 0 || c.Display.TileHeight <= 0 {
		errs = append(errs, errors.New("tile size must be positive"))
	}
	return errors.Join(errs...)
}

// HostConfig configures the reference console host.
type HostConfig struct {
	ListenAddress string `envconfig:"CONSOLE_HOST_LISTEN_ADDRESS" default:"127.0.0.1:8090"`
	Width         int    `envconfig:"CONSOLE_HOST_WIDTH" default:"640"`
	Height        int    `envconfig:"CONSOLE_HOST_HEIGHT" default:"480"`
	TileWidth     int    `envconfig:"CONSOLE_HOST_TILE_WIDTH" default:"64"`
	TileHeight    int    `envconfig:"CONSOLE_HOST_TILE_HEIGHT" default:"64"`

	// How long an update request waits for screen changes before answering
	LongPoll   time.Duration `envconfig:"CONSOLE_HOST_LONG_POLL" default:"1s"`
	SessionTTL time.Duration `envconfig:"CONSOLE_HOST_SESSION_TTL" default:"30m"`

	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`
}

func LoadHostConfig() (HostConfig, error) {
	_ = godotenv.Load()

	var cfg HostConfig
	err := envconfig.Process("", &cfg)
	if err != nil {
		return HostConfig{}, err
	}
	return cfg, nil
}
