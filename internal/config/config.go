package config

import (
	"errors"
	"fmt"
	"net/netip"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/dropDatabas3/memberkeys/internal/keys"
	"github.com/dropDatabas3/memberkeys/internal/keystore"
)

type Config struct {
	App struct {
		// dev | staging | prod
		Env string `yaml:"env"`
	} `yaml:"app"`

	Log struct {
		Level string `yaml:"level"`
	} `yaml:"log"`

	Keys struct {
		// ED25519 | RS256 (INVALID_ALGORITHM solo para pruebas negativas)
		Algorithm string `yaml:"algorithm"`
	} `yaml:"keys"`

	Keystore struct {
		Driver    string        `yaml:"driver"` // memory | fs | redis | postgres
		FSRoot    string        `yaml:"fs_root"`
		MasterKey string        `yaml:"master_key"` // base64 o hex de 32 bytes; vacío = sin sellar
		CacheTTL  time.Duration `yaml:"cache_ttl"`
	} `yaml:"keystore"`

	Redis struct {
		Addr     string `yaml:"addr"`
		DB       int    `yaml:"db"`
		Password string `yaml:"password"`
		Prefix   string `yaml:"prefix"`
	} `yaml:"redis"`

	Postgres struct {
		DSN string `yaml:"dsn"`
	} `yaml:"postgres"`

	Server struct {
		Addr string `yaml:"addr"`
		// Límite de POST /verify por member + IP. max 0 = sin límite.
		VerifyRate struct {
			Max    int           `yaml:"max"`
			Window time.Duration `yaml:"window"`
		} `yaml:"verify_rate"`
		// Proxies (CIDR o IP) de los que se acepta X-Forwarded-For. Vacío: se usa la IP de la conexión.
		TrustedProxies []string `yaml:"trusted_proxies"`
	} `yaml:"server"`

	fsRootFromEnv bool
}

// Default devuelve la config sin archivo ni env.
func Default() *Config {
	var c Config
	c.setDefaults()
	return &c
}

// Load lee el YAML (si path no está vacío), aplica defaults, pisa con env y valida.
func Load(path string) (*Config, error) {
	var c Config
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		if err := yaml.Unmarshal(b, &c); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	}

	c.setDefaults()

	// Overrides por env
	c.applyEnvOverrides()

	// fs_root relativo se resuelve contra el directorio del YAML
	if path != "" && c.Keystore.FSRoot != "" && !filepath.IsAbs(c.Keystore.FSRoot) && !c.fsRootFromEnv {
		c.Keystore.FSRoot = filepath.Clean(filepath.Join(filepath.Dir(path), c.Keystore.FSRoot))
	}

	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

func (c *Config) setDefaults() {
	if c.App.Env == "" {
		c.App.Env = "dev"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Keys.Algorithm == "" {
		c.Keys.Algorithm = string(keys.AlgorithmEd25519)
	}
	if c.Keystore.Driver == "" {
		c.Keystore.Driver = keystore.DriverFS
	}
	if c.Keystore.FSRoot == "" {
		c.Keystore.FSRoot = "./data/keys"
	}
	if c.Redis.Addr == "" {
		c.Redis.Addr = "localhost:6379"
	}
	if c.Redis.Prefix == "" {
		c.Redis.Prefix = keystore.DefaultRedisPrefix
	}
	if c.Server.Addr == "" {
		c.Server.Addr = ":8080"
	}
	if c.Server.VerifyRate.Window == 0 {
		c.Server.VerifyRate.Window = time.Minute
	}
}

func (c *Config) Validate() error {
	var errs []error

	if _, err := keys.ParseAlgorithm(c.Keys.Algorithm); err != nil {
		errs = append(errs, fmt.Errorf("keys.algorithm: %w", err))
	}

	switch c.Keystore.Driver {
	case keystore.DriverMemory:
	case keystore.DriverFS:
		if strings.TrimSpace(c.Keystore.FSRoot) == "" {
			errs = append(errs, errors.New("keystore.fs_root required for driver fs"))
		}
	case keystore.DriverRedis:
		if strings.TrimSpace(c.Redis.Addr) == "" {
			errs = append(errs, errors.New("redis.addr required for driver redis"))
		}
	case keystore.DriverPostgres:
		if strings.TrimSpace(c.Postgres.DSN) == "" {
			errs = append(errs, errors.New("postgres.dsn required for driver postgres"))
		}
	default:
		errs = append(errs, fmt.Errorf("keystore.driver: unknown %q", c.Keystore.Driver))
	}

	if c.Server.VerifyRate.Max < 0 || c.Server.VerifyRate.Window <= 0 {
		errs = append(errs, errors.New("server.verify_rate: max must be >= 0 and window > 0"))
	}

	for _, p := range c.Server.TrustedProxies {
		if strings.TrimSpace(p) == "" {
			continue
		}
		if _, err := parseProxy(p); err != nil {
			errs = append(errs, fmt.Errorf("server.trusted_proxies: %w", err))
		}
	}

	if c.Keystore.CacheTTL < 0 {
		errs = append(errs, errors.New("keystore.cache_ttl must not be negative"))
	}

	// En prod las privadas nunca quedan en claro fuera de memoria.
	if c.IsProd() && c.Keystore.Driver != keystore.DriverMemory && c.Keystore.MasterKey == "" {
		errs = append(errs, errors.New("keystore.master_key required in prod"))
	}

	return errors.Join(errs...)
}

// IsProd reporta si app.env es prod.
func (c *Config) IsProd() bool { return strings.EqualFold(c.App.Env, "prod") }

// Algorithm devuelve keys.algorithm ya parseado. Llamar después de Validate.
func (c *Config) Algorithm() keys.Algorithm {
	alg, _ := keys.ParseAlgorithm(c.Keys.Algorithm)
	return alg
}

// KeystoreConfig arma la config del paquete keystore.
func (c *Config) KeystoreConfig() keystore.Config {
	return keystore.Config{
		Driver:        c.Keystore.Driver,
		FSRoot:        c.Keystore.FSRoot,
		MasterKey:     c.Keystore.MasterKey,
		CacheTTL:      c.Keystore.CacheTTL,
		RedisAddr:     c.Redis.Addr,
		RedisPassword: c.Redis.Password,
		RedisDB:       c.Redis.DB,
		RedisPrefix:   c.Redis.Prefix,
		PostgresDSN:   c.Postgres.DSN,
	}
}

func getEnvStr(key string) (string, bool) {
	v := os.Getenv(key)
	return v, v != ""
}
func getEnvInt(key string) (int, bool) {
	if s, ok := getEnvStr(key); ok {
		if i, err := strconv.Atoi(strings.TrimSpace(s)); err == nil {
			return i, true
		}
	}
	return 0, false
}
func getEnvDur(key string) (time.Duration, bool) {
	if s, ok := getEnvStr(key); ok {
		if d, err := time.ParseDuration(strings.TrimSpace(s)); err == nil {
			return d, true
		}
	}
	return 0, false
}

// applyEnvOverrides: pisa el YAML con variables de entorno.
func (c *Config) applyEnvOverrides() {
	// APP
	if v, ok := getEnvStr("APP_ENV"); ok {
		c.App.Env = strings.ToLower(v)
	}
	if v, ok := getEnvStr("LOG_LEVEL"); ok {
		c.Log.Level = strings.ToLower(v)
	}

	// KEYS
	if v, ok := getEnvStr("KEYS_ALGORITHM"); ok {
		c.Keys.Algorithm = v
	}

	// KEYSTORE
	if v, ok := getEnvStr("KEYSTORE_DRIVER"); ok {
		c.Keystore.Driver = strings.ToLower(v)
	}
	if v, ok := getEnvStr("KEYSTORE_FS_ROOT"); ok {
		c.Keystore.FSRoot = v
		c.fsRootFromEnv = true
	}
	if v, ok := getEnvStr("KEYSTORE_MASTER_KEY"); ok {
		c.Keystore.MasterKey = v
	}
	if v, ok := getEnvDur("KEYSTORE_CACHE_TTL"); ok {
		c.Keystore.CacheTTL = v
	}

	// REDIS
	if v, ok := getEnvStr("REDIS_ADDR"); ok {
		c.Redis.Addr = v
	}
	if v, ok := getEnvInt("REDIS_DB"); ok {
		c.Redis.DB = v
	}
	if v, ok := getEnvStr("REDIS_PASSWORD"); ok {
		c.Redis.Password = v
	}
	if v, ok := getEnvStr("REDIS_PREFIX"); ok {
		c.Redis.Prefix = v
	}

	// POSTGRES
	if v, ok := getEnvStr("POSTGRES_DSN"); ok {
		c.Postgres.DSN = v
	}

	// SERVER
	if v, ok := getEnvStr("SERVER_ADDR"); ok {
		c.Server.Addr = v
	}
	if v, ok := getEnvInt("SERVER_VERIFY_RATE_MAX"); ok {
		c.Server.VerifyRate.Max = v
	}
	if v, ok := getEnvDur("SERVER_VERIFY_RATE_WINDOW"); ok {
		c.Server.VerifyRate.Window = v
	}
	if v, ok := getEnvStr("SERVER_TRUSTED_PROXIES"); ok {
		c.Server.TrustedProxies = strings.Split(v, ",")
	}
}

// parseProxy valida una entrada de server.trusted_proxies (CIDR o IP).
func parseProxy(s string) (netip.Prefix, error) {
	s = strings.TrimSpace(s)
	if strings.Contains(s, "/") {
		return netip.ParsePrefix(s)
	}
	addr, err := netip.ParseAddr(s)
	if err != nil {
		return netip.Prefix{}, err
	}
	return netip.PrefixFrom(addr, addr.BitLen()), nil
}
