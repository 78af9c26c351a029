package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig
	Feishu    FeishuConfig
	Redis     RedisConfig
	RateLimit RateLimitConfig
	Image     ImageConfig
	Catalog   CatalogConfig
}

type ServerConfig struct {
	Port               string `validate:"required,numeric"`
	Env                string `validate:"oneof=development production test"`
	CORSAllowedOrigins []string
}

type FeishuConfig struct {
	BaseURL            string `validate:"required,http_url"`
	AppID              string
	AppSecret          string
	AppToken           string
	TableID            string
	PageSize           int     `validate:"min=1,max=100"`
	RateLimit          float64 `validate:"min=0"` // requests per second, 0 disables
	Timeout            time.Duration
	TokenRefreshMargin time.Duration `validate:"min=0"`
}

type RedisConfig struct {
	Enabled  bool
	Host     string
	Port     string
	Password string
	DB       int `validate:"min=0"`
}

type RateLimitConfig struct {
	Requests int           `validate:"min=0"`
	Window   time.Duration `validate:"min=0"`
}

type ImageConfig struct {
	AllowedHosts []string
	CacheMaxAge  time.Duration `validate:"min=0"`
}

type CatalogConfig struct {
	APIURL string `validate:"required,http_url"`
}

// Deployment aliases for the provider identifiers, checked after the
// canonical key.
var envAliases = map[string][]string{
	"FEISHU_APP_ID":     {"VITE_FEISHU_APP_ID"},
	"FEISHU_APP_SECRET": {"VITE_FEISHU_APP_SECRET"},
	"FEISHU_APP_TOKEN":  {"VITE_FEISHU_APP_TOKEN", "APP_TOKEN"},
	"FEISHU_TABLE_ID":   {"VITE_FEISHU_TABLE_ID", "TABLE_ID"},
}

func Load() *Config {
	// .env.local overrides nothing already set in the process environment
	if err := godotenv.Load(".env.local"); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Printf("Warning: Could not read .env.local: %v", err)
	}

	v := viper.New()
	v.SetConfigName(".env")
	v.SetConfigType("env")
	v.AddConfigPath(".")
	v.AutomaticEnv()

	for key, aliases := range envAliases {
		v.BindEnv(append([]string{key, key}, aliases...)...)
	}

	// Set defaults
	v.SetDefault("SERVER_PORT", "8080")
	v.SetDefault("SERVER_ENV", "development")
	v.SetDefault("CORS_ALLOWED_ORIGINS", "")
	v.SetDefault("FEISHU_BASE_URL", "https://open.feishu.cn")
	v.SetDefault("FEISHU_PAGE_SIZE", 100)
	v.SetDefault("FEISHU_RATE_LIMIT", 0)
	v.SetDefault("FEISHU_TIMEOUT", "15s")
	v.SetDefault("TOKEN_REFRESH_MARGIN", "5m")
	v.SetDefault("REDIS_ENABLED", false)
	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", "6379")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("RATE_LIMIT_REQUESTS", 120)
	v.SetDefault("RATE_LIMIT_WINDOW", "1m")
	v.SetDefault("IMAGE_ALLOWED_HOSTS", "open.feishu.cn,internal-api-drive-stream.feishu.cn")
	v.SetDefault("IMAGE_CACHE_MAX_AGE", "1h")
	v.SetDefault("CATALOG_API_URL", "http://localhost:8080")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			log.Printf("Warning: Could not read config file: %v", err)
		}
	}

	return &Config{
		Server: ServerConfig{
			Port:               v.GetString("SERVER_PORT"),
			Env:                v.GetString("SERVER_ENV"),
			CORSAllowedOrigins: splitList(v.GetString("CORS_ALLOWED_ORIGINS")),
		},
		Feishu: FeishuConfig{
			BaseURL:            v.GetString("FEISHU_BASE_URL"),
			AppID:              v.GetString("FEISHU_APP_ID"),
			AppSecret:          v.GetString("FEISHU_APP_SECRET"),
			AppToken:           v.GetString("FEISHU_APP_TOKEN"),
			TableID:            v.GetString("FEISHU_TABLE_ID"),
			PageSize:           v.GetInt("FEISHU_PAGE_SIZE"),
			RateLimit:          v.GetFloat64("FEISHU_RATE_LIMIT"),
			Timeout:            v.GetDuration("FEISHU_TIMEOUT"),
			TokenRefreshMargin: v.GetDuration("TOKEN_REFRESH_MARGIN"),
		},
		Redis: RedisConfig{
			Enabled:  v.GetBool("REDIS_ENABLED"),
			Host:     v.GetString("REDIS_HOST"),
			Port:     v.GetString("REDIS_PORT"),
			Password: v.GetString("REDIS_PASSWORD"),
			DB:       v.GetInt("REDIS_DB"),
		},
		RateLimit: RateLimitConfig{
			Requests: v.GetInt("RATE_LIMIT_REQUESTS"),
			Window:   v.GetDuration("RATE_LIMIT_WINDOW"),
		},
		Image: ImageConfig{
			AllowedHosts: splitList(v.GetString("IMAGE_ALLOWED_HOSTS")),
			CacheMaxAge:  v.GetDuration("IMAGE_CACHE_MAX_AGE"),
		},
		Catalog: CatalogConfig{
			APIURL: v.GetString("CATALOG_API_URL"),
		},
	}
}

// Validate checks value ranges. Missing provider identifiers are not an
// error here; the API reports them per request.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s failed %s", fe.Namespace(), fe.Tag()))
			}
			return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
		}
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// RedisAddr joins host and port
func (c *Config) RedisAddr() string {
	return c.Redis.Host + ":" + c.Redis.Port
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
