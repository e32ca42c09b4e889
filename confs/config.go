package confs

import (
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/viper"
)

// fallbackSecret is only acceptable outside production.
const fallbackSecret = "dev-only-change-me"

type Config struct {
	Port          string
	Env           string
	JWTSecret     string
	TokenTTL      time.Duration
	CookieName    string
	UploadsDir    string
	CORSOrigins   []string
	AuthRateLimit string
	BcryptCost    int
}

// LoadConfig loads environment variables from a .env file if present.
func LoadConfig(log zerolog.Logger) error {
	if err := godotenv.Load(); err != nil {
		// a missing .env is normal at runtime
		if !os.IsNotExist(err) {
			log.Warn().Err(err).Msg("could not load .env")
		}
	}
	return nil
}

// Load reads the process environment into a Config.
func Load(log zerolog.Logger) (*Config, error) {
	v := viper.New()
	v.AutomaticEnv()
	v.SetDefault("PORT", "3000")
	v.SetDefault("APP_ENV", "development")
	v.SetDefault("TOKEN_TTL", "24h")
	v.SetDefault("COOKIE_NAME", "jwt")
	v.SetDefault("UPLOADS_DIR", "uploads")
	v.SetDefault("AUTH_RATE_LIMIT", "20-M")
	v.SetDefault("BCRYPT_COST", 10)

	cfg := &Config{
		Port:          v.GetString("PORT"),
		Env:           v.GetString("APP_ENV"),
		JWTSecret:     v.GetString("JWT_SECRET"),
		TokenTTL:      v.GetDuration("TOKEN_TTL"),
		CookieName:    v.GetString("COOKIE_NAME"),
		UploadsDir:    v.GetString("UPLOADS_DIR"),
		CORSOrigins:   splitList(v.GetString("CORS_ORIGINS")),
		AuthRateLimit: v.GetString("AUTH_RATE_LIMIT"),
		BcryptCost:    v.GetInt("BCRYPT_COST"),
	}
	if cfg.JWTSecret == "" {
		log.Warn().Msg("JWT_SECRET is not set; using an insecure development secret")
		cfg.JWTSecret = fallbackSecret
	}
	if cfg.TokenTTL <= 0 {
		cfg.TokenTTL = 24 * time.Hour
	}
	return cfg, nil
}

func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Env, "production")
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
