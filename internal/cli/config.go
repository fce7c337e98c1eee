package cli

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/matzehuels/snackager/pkg/cache"
	"github.com/matzehuels/snackager/pkg/integrations/npm"
)

// Duration is a time.Duration read from a Go duration string ("90s").
type Duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// Config is the service configuration.
type Config struct {
	Listen        string   `toml:"listen"`
	Debug         bool     `toml:"debug"`
	RegistryURL   string   `toml:"registry_url"`
	MetadataTTL   Duration `toml:"metadata_ttl"`
	ExternalsFile string   `toml:"externals_file"` // Optional policy override

	Redis   RedisConfig   `toml:"redis"`
	Storage StorageConfig `toml:"storage"`
	Cache   CacheConfig   `toml:"cache"`
	Build   BuildConfig   `toml:"build"`
}

type RedisConfig struct {
	URL string `toml:"url"`
}

// StorageConfig selects the artifact backend: "s3", "file" or "memory".
type StorageConfig struct {
	Backend   string `toml:"backend"`
	Dir       string `toml:"dir"`
	Bucket    string `toml:"bucket"`
	Prefix    string `toml:"prefix"`
	Region    string `toml:"region"`
	Endpoint  string `toml:"endpoint"`
	AccessKey string `toml:"access_key"`
	SecretKey string `toml:"secret_key"`
}

// CacheConfig holds the cache epochs.
type CacheConfig struct {
	Epoch    int                  `toml:"epoch"`
	Packages []PackageEpochConfig `toml:"packages"`
}

type PackageEpochConfig struct {
	Pattern string `toml:"pattern"`
	Epoch   int    `toml:"epoch"`
}

type BuildConfig struct {
	WorkDir        string   `toml:"work_dir"`
	MaxAttempts    int      `toml:"max_attempts"`
	PendingTTL     Duration `toml:"pending_ttl"`
	ErrorTTL       Duration `toml:"error_ttl"`
	InstallCommand []string `toml:"install_command"`
	RenewLeases    bool     `toml:"renew_leases"`
}

// DefaultConfig returns the configuration used when no file is given.
func DefaultConfig() Config {
	return Config{
		Listen:      ":3012",
		RegistryURL: npm.DefaultRegistry,
		MetadataTTL: Duration{npm.MetadataTTL},
		Redis:       RedisConfig{URL: "redis://localhost:6379/0"},
		Storage:     StorageConfig{Backend: "file"},
		Build: BuildConfig{
			MaxAttempts: 10,
			PendingTTL:  Duration{5 * time.Minute},
			ErrorTTL:    Duration{time.Minute},
		},
	}
}

// LoadConfig reads path over the defaults and applies SNACKAGER_*
// environment overrides. An empty path skips the file.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	if path != "" {
		md, err := toml.DecodeFile(path, &cfg)
		if err != nil {
			return cfg, fmt.Errorf("read config %s: %w", path, err)
		}
		if undecoded := md.Undecoded(); len(undecoded) > 0 {
			return cfg, fmt.Errorf("config %s: unknown keys %v", path, undecoded)
		}
	}
	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return cfg, err
	}
	return cfg, cfg.Validate()
}

// applyEnv overrides scalar settings from the environment, e.g.
// SNACKAGER_REDIS_URL or SNACKAGER_BUILD_ERROR_TTL.
func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	strs := map[string]*string{
		"LISTEN":             &c.Listen,
		"REGISTRY_URL":       &c.RegistryURL,
		"EXTERNALS_FILE":     &c.ExternalsFile,
		"REDIS_URL":          &c.Redis.URL,
		"STORAGE_BACKEND":    &c.Storage.Backend,
		"STORAGE_DIR":        &c.Storage.Dir,
		"STORAGE_BUCKET":     &c.Storage.Bucket,
		"STORAGE_PREFIX":     &c.Storage.Prefix,
		"STORAGE_REGION":     &c.Storage.Region,
		"STORAGE_ENDPOINT":   &c.Storage.Endpoint,
		"STORAGE_ACCESS_KEY": &c.Storage.AccessKey,
		"STORAGE_SECRET_KEY": &c.Storage.SecretKey,
		"BUILD_WORK_DIR":     &c.Build.WorkDir,
	}
	ints := map[string]*int{
		"CACHE_EPOCH":        &c.Cache.Epoch,
		"BUILD_MAX_ATTEMPTS": &c.Build.MaxAttempts,
	}
	bools := map[string]*bool{
		"DEBUG":              &c.Debug,
		"BUILD_RENEW_LEASES": &c.Build.RenewLeases,
	}
	durations := map[string]*Duration{
		"METADATA_TTL":      &c.MetadataTTL,
		"BUILD_PENDING_TTL": &c.Build.PendingTTL,
		"BUILD_ERROR_TTL":   &c.Build.ErrorTTL,
	}

	for name, dst := range strs {
		if v, ok := lookup(envPrefix + name); ok {
			*dst = v
		}
	}
	for name, dst := range ints {
		if v, ok := lookup(envPrefix + name); ok {
			n, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("%s%s: %w", envPrefix, name, err)
			}
			*dst = n
		}
	}
	for name, dst := range bools {
		if v, ok := lookup(envPrefix + name); ok {
			b, err := strconv.ParseBool(v)
			if err != nil {
				return fmt.Errorf("%s%s: %w", envPrefix, name, err)
			}
			*dst = b
		}
	}
	for name, dst := range durations {
		if v, ok := lookup(envPrefix + name); ok {
			if err := dst.UnmarshalText([]byte(v)); err != nil {
				return fmt.Errorf("%s%s: %w", envPrefix, name, err)
			}
		}
	}
	if v, ok := lookup(envPrefix + "BUILD_INSTALL_COMMAND"); ok {
		c.Build.InstallCommand = strings.Fields(v)
	}
	return nil
}

const envPrefix = "SNACKAGER_"

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	switch c.Storage.Backend {
	case "file", "memory":
	case "s3":
		if c.Storage.Bucket == "" {
			return fmt.Errorf("storage.bucket is required for the s3 backend")
		}
	default:
		return fmt.Errorf("unknown storage.backend %q (want s3, file or memory)", c.Storage.Backend)
	}
	if c.Build.MaxAttempts < 1 {
		return fmt.Errorf("build.max_attempts must be at least 1")
	}
	if c.Build.PendingTTL.Duration <= 0 || c.Build.ErrorTTL.Duration <= 0 {
		return fmt.Errorf("build.pending_ttl and build.error_ttl must be positive")
	}
	if _, err := c.Epochs(); err != nil {
		return err
	}
	return nil
}

// Epochs compiles the cache epochs.
func (c *Config) Epochs() (cache.Epochs, error) {
	epochs := cache.Epochs{Global: c.Cache.Epoch}
	for _, p := range c.Cache.Packages {
		pe, err := cache.NewPackageEpoch(p.Pattern, p.Epoch)
		if err != nil {
			return epochs, err
		}
		epochs.Packages = append(epochs.Packages, pe)
	}
	return epochs, nil
}
