// internal/config/model.go
//
// Typed configuration model for hostmap.
//
// Context
// -------
// These structs define the shape of the configuration tree that
// `internal/config/loader.go` builds from three overlay layers:
//
//   • optional `.env`                           dotenv values,
//   • `conf/hostmap.yaml`                       primary static file,
//   • `HOSTMAP_`-prefixed environment overrides highest precedence.
//
// Secrets may be written as `vault:<mount>/<path>#<key>`.  The loader
// leaves them as-is; cmd/web resolves them through internal/vault before
// opening connections.
//
// Notes
// -----
//   • Struct tags use `koanf:"…"`, not `yaml:"…"`.  Koanf ignores `yaml`
//     tags unless configured otherwise.
//   • Durations accept Go syntax ("30s", "5m").
//   • The `Paths` block is filled at runtime; YAML must not try to set it.

package config

import (
	"time"

	"github.com/yanizio/hostmap/internal/policy"
)

//
// HTTP section
//

// HTTP holds web-server tunables.
type HTTP struct {
	ListenAddr   string        `koanf:"listen_addr"   validate:"required,hostname_port"`
	ForceHTTPS   bool          `koanf:"force_https"`
	TrustProxy   bool          `koanf:"trust_proxy"`
	ReadTimeout  time.Duration `koanf:"read_timeout"  validate:"gte=0"`
	WriteTimeout time.Duration `koanf:"write_timeout" validate:"gte=0"`
	IdleTimeout  time.Duration `koanf:"idle_timeout"  validate:"gte=0"`
}

//
// Database section
//

// Database holds the control-plane DSN template and its secret.
//
// The *template* (`GlobalDSN`) is kept in YAML so operators can tweak
// host, port, or flags without touching Vault.  It carries a `{password}`
// placeholder.  The *secret* (`GlobalPassword`) is usually a `vault:`
// reference injected at runtime, keeping credentials out of flat files
// and git history.
type Database struct {
	GlobalDSN       string        `koanf:"global_dsn"        validate:"required"`
	GlobalPassword  string        `koanf:"global_password"`
	MaxOpen         int           `koanf:"max_open"          validate:"gte=0"`
	MaxIdle         int           `koanf:"max_idle"          validate:"gte=0"`
	ConnMaxLifetime time.Duration `koanf:"conn_max_lifetime" validate:"gte=0"`
}

//
// Cache section
//

// Cache tunes the in-process LRU and the optional shared redis tier.
type Cache struct {
	Shards        int           `koanf:"shards"         validate:"gte=0"`
	Size          int           `koanf:"size"           validate:"gte=0"`
	TTL           time.Duration `koanf:"ttl"            validate:"gte=0"`
	NegativeTTL   time.Duration `koanf:"negative_ttl"   validate:"gte=0"`
	CleanInterval time.Duration `koanf:"clean_interval"`
	Redis         Redis         `koanf:"redis"`
}

// Redis configures the shared cache tier.  An empty Addr disables it.
type Redis struct {
	Addr     string        `koanf:"addr"     validate:"omitempty,hostname_port"`
	Password string        `koanf:"password"`
	DB       int           `koanf:"db"       validate:"gte=0"`
	Timeout  time.Duration `koanf:"timeout"  validate:"gte=0"`
	Prefix   string        `koanf:"prefix"`
}

//
// Platform section
//

// Platform describes the hosting platform the service sits in front of.
type Platform struct {
	AdminPaths       []string `koanf:"admin_paths"`
	AuthCookiePrefix string   `koanf:"auth_cookie_prefix"`
	LocalhostAlias   string   `koanf:"localhost_alias"`
}

//
// API section
//

// API guards the /v1 admin surface.
type API struct {
	RequireToken bool `koanf:"require_token"`
}

//
// Log section
//

// Log controls the file logger.
type Log struct {
	Level      string `koanf:"level"        validate:"omitempty,oneof=debug info warn error"`
	Dir        string `koanf:"dir"`
	Console    bool   `koanf:"console"`
	MaxSizeMB  int    `koanf:"max_size_mb"  validate:"gte=0"`
	MaxBackups int    `koanf:"max_backups"  validate:"gte=0"`
	MaxAgeDays int    `koanf:"max_age_days" validate:"gte=0"`
}

//
// Paths section (runtime only)
//

// Paths is resolved at runtime, never set in YAML or env.  The loader
// discovers `Root` (repo root or HOSTMAP_ROOT override) so later code can
// build absolute file paths.
type Paths struct {
	Root string // HOSTMAP_ROOT or discovered parent
}

//
// Root aggregate
//

// Config is the immutable aggregate returned by Load() and cached in an
// atomic.Pointer for lock-free reads throughout the app lifetime.
type Config struct {
	HTTP     HTTP         `koanf:"http"`
	Database Database     `koanf:"database"`
	Cache    Cache        `koanf:"cache"`
	Policy   policy.Flags `koanf:"policy"`
	Platform Platform     `koanf:"platform"`
	API      API          `koanf:"api"`
	Log      Log          `koanf:"log"`
	Paths    Paths        `koanf:"-"` // not loaded from config files
}

// Defaults returns the values used for anything the file and environment
// leave unset.
func Defaults() Config {
	return Config{
		HTTP: HTTP{
			ListenAddr:   ":8080",
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 15 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		Database: Database{
			MaxOpen:         15,
			MaxIdle:         5,
			ConnMaxLifetime: 30 * time.Minute,
		},
		Cache: Cache{
			Shards:        16,
			Size:          4096,
			TTL:           5 * time.Minute,
			NegativeTTL:   30 * time.Second,
			CleanInterval: time.Minute,
			Redis: Redis{
				Timeout: 50 * time.Millisecond,
				Prefix:  "hostmap:",
			},
		},
		Platform: Platform{
			AdminPaths:       []string{"/wp-admin/", "/wp-login.php"},
			AuthCookiePrefix: "wordpress_logged_in_",
		},
		API: API{RequireToken: true},
		Log: Log{
			Level:      "info",
			Dir:        "logs",
			MaxSizeMB:  50,
			MaxBackups: 7,
			MaxAgeDays: 14,
		},
	}
}
