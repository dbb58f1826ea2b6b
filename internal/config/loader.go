package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	gfconfig "github.com/fulmenhq/gofulmen/config"
	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"

	"github.com/3leaps/gospool/pkg/spool"
)

// Identity names the application for config paths and env vars.
type Identity struct {
	Name      string
	EnvPrefix string
}

// DefaultIdentity is used until SetIdentity is called.
var DefaultIdentity = Identity{Name: "gospool", EnvPrefix: "GOSPOOL"}

var (
	configMu    sync.RWMutex
	appIdentity = &DefaultIdentity
	appConfig   *Config
)

// SetIdentity replaces the application identity.
func SetIdentity(id Identity) {
	configMu.Lock()
	defer configMu.Unlock()
	appIdentity = &id
}

// EnvSpec maps an environment variable onto a config key.
type EnvSpec struct {
	Name string
	Path string
}

// envKeys lists short env names; every key also resolves through the
// automatic PREFIX_SECTION_KEY form.
var envKeys = []struct{ suffix, path string }{
	{"HOST", "server.host"},
	{"PORT", "server.port"},
	{"READ_TIMEOUT", "server.read_timeout"},
	{"WRITE_TIMEOUT", "server.write_timeout"},
	{"SHUTDOWN_TIMEOUT", "server.shutdown_timeout"},
	{"LOG_LEVEL", "logging.level"},
	{"DATA_DIR", "data_dir"},
	{"LP", "spool.binary"},
	{"LPSTAT", "spool.status_binary"},
	{"STRATEGY", "spool.strategy"},
	{"PAGE_LOG", "spool.log_path"},
	{"SUBMIT_RATE", "spool.submit_rate"},
	{"MIN_WORKERS", "pool.min_workers"},
	{"MAX_WORKERS", "pool.max_workers"},
	{"JOB_TIMEOUT", "pool.job_timeout"},
	{"DB", "store.path"},
	{"DB_URL", "store.url"},
	{"DB_AUTH_TOKEN", "store.auth_token"},
	{"CATALOG", "printers.catalog"},
	{"BATCHES", "batches.root"},
	{"WORK_DIR", "source.work_dir"},
	{"S3_REGION", "source.s3.region"},
	{"S3_ENDPOINT", "source.s3.endpoint"},
	{"S3_PROFILE", "source.s3.profile"},
}

func getEnvSpecs() []EnvSpec {
	configMu.RLock()
	id := appIdentity
	configMu.RUnlock()
	if id == nil || id.EnvPrefix == "" {
		return []EnvSpec{}
	}
	specs := make([]EnvSpec, 0, len(envKeys))
	for _, k := range envKeys {
		specs = append(specs, EnvSpec{Name: id.EnvPrefix + "_" + k.suffix, Path: k.path})
	}
	return specs
}

// getUserConfigPaths lists candidate config files, most specific first.
func getUserConfigPaths() []string {
	configMu.RLock()
	id := appIdentity
	configMu.RUnlock()
	if id == nil || id.Name == "" {
		return []string{}
	}

	var paths []string
	if explicit := os.Getenv(id.EnvPrefix + "_CONFIG"); explicit != "" {
		paths = append(paths, explicit)
	}
	paths = append(paths, filepath.Join(".", id.Name+".yaml"))
	return append(paths, gfconfig.GetAppConfigPaths(id.Name)...)
}

// SetDefaults registers every key with its default value.
func SetDefaults(v *viper.Viper, dataDir string) {
	v.SetDefault("data_dir", dataDir)

	v.SetDefault("server.host", "localhost")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "30s")
	v.SetDefault("server.idle_timeout", "120s")
	v.SetDefault("server.shutdown_timeout", "10s")

	v.SetDefault("logging.level", "info")

	v.SetDefault("spool.binary", "lp")
	v.SetDefault("spool.status_binary", spool.DefaultStatusBinary)
	v.SetDefault("spool.strategy", StrategyLog)
	v.SetDefault("spool.log_path", spool.DefaultPageLogPath)
	v.SetDefault("spool.poll_interval", spool.DefaultPollInterval.String())
	v.SetDefault("spool.poll_attempts", spool.DefaultPollAttempts)
	v.SetDefault("spool.watch_timeout", spool.DefaultWatchTimeout.String())
	v.SetDefault("spool.submit_rate", 0.0)

	v.SetDefault("pool.min_workers", spool.DefaultMinWorkers)
	v.SetDefault("pool.max_workers", spool.DefaultMaxWorkers)
	v.SetDefault("pool.job_timeout", spool.DefaultJobTimeout.String())
	v.SetDefault("pool.keep_alive", spool.DefaultKeepAlive.String())

	v.SetDefault("store.path", dataPath(dataDir, "jobs.db"))
	v.SetDefault("store.url", "")
	v.SetDefault("store.auth_token", "")

	v.SetDefault("printers.catalog", dataPath(dataDir, "printers.yaml"))
	v.SetDefault("batches.root", dataPath(dataDir, "batches"))

	v.SetDefault("source.work_dir", dataPath(dataDir, "work"))
	v.SetDefault("source.s3.region", "")
	v.SetDefault("source.s3.endpoint", "")
	v.SetDefault("source.s3.profile", "")
	v.SetDefault("source.s3.access_key_id", "")
	v.SetDefault("source.s3.secret_access_key", "")
	v.SetDefault("source.s3.force_path_style", false)
	v.SetDefault("source.s3.imds_region", false)
}

// DefaultDataDir is the per-user data directory.
func DefaultDataDir() string {
	configMu.RLock()
	name := DefaultIdentity.Name
	if appIdentity != nil && appIdentity.Name != "" {
		name = appIdentity.Name
	}
	configMu.RUnlock()
	return gfconfig.GetAppDataDir(name)
}

// Load builds the configuration. Precedence, highest first: overrides,
// environment, config file, defaults.
func Load(ctx context.Context, overrides ...map[string]any) (*Config, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	v := viper.New()
	SetDefaults(v, DefaultDataDir())

	if err := readConfigFile(v); err != nil {
		return nil, err
	}

	configMu.RLock()
	prefix := DefaultIdentity.EnvPrefix
	if appIdentity != nil && appIdentity.EnvPrefix != "" {
		prefix = appIdentity.EnvPrefix
	}
	configMu.RUnlock()
	v.SetEnvPrefix(prefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for _, spec := range getEnvSpecs() {
		if err := v.BindEnv(spec.Path, spec.Name, prefix+"_"+strings.ToUpper(strings.ReplaceAll(spec.Path, ".", "_"))); err != nil {
			return nil, fmt.Errorf("bind %s: %w", spec.Name, err)
		}
	}

	for _, o := range overrides {
		for key, val := range flatten("", o) {
			v.Set(key, val)
		}
	}

	// Keys derived from data_dir follow an overridden data dir unless set.
	if dataDir := v.GetString("data_dir"); dataDir != DefaultDataDir() {
		rebase(v, dataDir)
	}

	var cfg Config
	err := v.Unmarshal(&cfg, viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	)))
	if err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	configMu.Lock()
	appConfig = &cfg
	configMu.Unlock()
	return &cfg, nil
}

// GetConfig returns the last loaded configuration, or nil.
func GetConfig() *Config {
	configMu.RLock()
	defer configMu.RUnlock()
	return appConfig
}

func readConfigFile(v *viper.Viper) error {
	for _, path := range getUserConfigPaths() {
		if _, err := os.Stat(path); err != nil {
			if errors.Is(err, os.ErrNotExist) {
				continue
			}
			return fmt.Errorf("stat config %s: %w", path, err)
		}
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("read config %s: %w", path, err)
		}
		return nil
	}
	return nil
}

func rebase(v *viper.Viper, dataDir string) {
	for key, name := range map[string]string{
		"store.path":       "jobs.db",
		"printers.catalog": "printers.yaml",
		"batches.root":     "batches",
		"source.work_dir":  "work",
	} {
		if v.GetString(key) == dataPath(DefaultDataDir(), name) {
			v.Set(key, dataPath(dataDir, name))
		}
	}
}

func flatten(prefix string, m map[string]any) map[string]any {
	out := make(map[string]any)
	for k, val := range m {
		key := k
		if prefix != "" {
			key = prefix + "." + k
		}
		if nested, ok := val.(map[string]any); ok {
			for nk, nv := range flatten(key, nested) {
				out[nk] = nv
			}
			continue
		}
		out[key] = val
	}
	return out
}
