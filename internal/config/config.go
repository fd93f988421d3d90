package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

type Config struct {
	Mode           string        `mapstructure:"mode"`
	Port           int           `mapstructure:"port"`
	BridgePort     int           `mapstructure:"bridge_port"`
	MatchMode      string        `mapstructure:"match_mode"`
	Backpressure   string        `mapstructure:"backpressure"`
	StaticPath     string        `mapstructure:"static_path"`
	ReadLimit      int64         `mapstructure:"read_limit"`
	SendBuffer     int           `mapstructure:"send_buffer"`
	PingPeriod     time.Duration `mapstructure:"ping_period"`
	Secret         string        `mapstructure:"secret"`
	StrictPayloads bool          `mapstructure:"strict_payloads"`
	Log            LogConfig     `mapstructure:"log"`
	RegisterRate   RateConfig    `mapstructure:"register_rate"`
	ICEServers     []ICEServer   `mapstructure:"ice_servers"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type RateConfig struct {
	Limit    int           `mapstructure:"limit"`
	Interval time.Duration `mapstructure:"interval"`
}

type ICEServer struct {
	URLs       []string `mapstructure:"urls"`
	Username   string   `mapstructure:"username"`
	Credential string   `mapstructure:"credential"`
}

// WebRTC converts the configured servers to the form browsers and pion
// expect in an RTCConfiguration.
func (c *Config) WebRTC() []webrtc.ICEServer {
	out := make([]webrtc.ICEServer, 0, len(c.ICEServers))
	for _, s := range c.ICEServers {
		urls := make([]string, 0, len(s.URLs))
		for _, u := range s.URLs {
			if u = strings.TrimSpace(u); u != "" {
				urls = append(urls, u)
			}
		}
		if len(urls) == 0 {
			continue
		}
		srv := webrtc.ICEServer{URLs: urls, Username: s.Username}
		if s.Credential != "" {
			srv.Credential = s.Credential
		}
		out = append(out, srv)
	}
	return out
}

// Flags declares the command-line overrides. Names match config keys with
// dashes instead of underscores.
func Flags(fs *pflag.FlagSet) {
	fs.String("config", "", "path to a config file (overrides CONFIG_ENV lookup)")
	fs.Int("port", 0, "HTTP/WebSocket listen port")
	fs.Int("bridge-port", 0, "raw TCP bridge listen port (0 disables)")
	fs.String("match-mode", "", "symmetric or room")
}

// Load reads config/config.<CONFIG_ENV>.yaml (if present), RENDEZVOUS_*
// environment variables and the flags in fs, in increasing precedence.
func Load(fs *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")

	env := os.Getenv("CONFIG_ENV")
	if env == "" {
		env = "dev"
	}
	fileName := fmt.Sprintf("config/config.%s.yaml", env)
	if fs != nil {
		if f := fs.Lookup("config"); f != nil && f.Value.String() != "" {
			fileName = f.Value.String()
		}
	}
	v.SetConfigFile(fileName)

	v.SetEnvPrefix("RENDEZVOUS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if fs != nil {
		for key, flag := range map[string]string{
			"port":        "port",
			"bridge_port": "bridge-port",
			"match_mode":  "match-mode",
		} {
			if f := fs.Lookup(flag); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("bind flag %s: %w", flag, err)
				}
			}
		}
	}

	if err := v.ReadInConfig(); err != nil {
		log.Warn().Str("module", "config").Str("file", fileName).Msg("config file not found, using defaults")
	} else {
		log.Info().Str("module", "config").Str("file", fileName).Msg("loaded config")
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	log.Info().
		Str("module", "config").
		Str("mode", cfg.Mode).
		Int("port", cfg.Port).
		Int("bridge_port", cfg.BridgePort).
		Str("match_mode", cfg.MatchMode).
		Msg("config ready")
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("mode", "release")
	v.SetDefault("port", 8080)
	v.SetDefault("bridge_port", 8081)
	v.SetDefault("match_mode", "symmetric")
	v.SetDefault("backpressure", "kick")
	v.SetDefault("static_path", "")
	v.SetDefault("read_limit", 32768)
	v.SetDefault("send_buffer", 64)
	v.SetDefault("ping_period", "54s")
	v.SetDefault("secret", "rendezvous-dev-secret")
	v.SetDefault("strict_payloads", false)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
	v.SetDefault("register_rate.limit", 10)
	v.SetDefault("register_rate.interval", "1m")
	v.SetDefault("ice_servers", []map[string]any{
		{"urls": []string{"stun:stun.l.google.com:19302"}},
	})
}

var (
	ErrInvalidMatchMode    = errors.New("match_mode must be symmetric or room")
	ErrInvalidBackpressure = errors.New("backpressure must be kick or drop")
	ErrInvalidPort         = errors.New("port out of range")
)

func (c *Config) Validate() error {
	switch c.MatchMode {
	case "symmetric", "room":
	default:
		return fmt.Errorf("%w: %q", ErrInvalidMatchMode, c.MatchMode)
	}
	switch c.Backpressure {
	case "kick", "drop":
	default:
		return fmt.Errorf("%w: %q", ErrInvalidBackpressure, c.Backpressure)
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("%w: port %d", ErrInvalidPort, c.Port)
	}
	if c.BridgePort < 0 || c.BridgePort > 65535 {
		return fmt.Errorf("%w: bridge_port %d", ErrInvalidPort, c.BridgePort)
	}
	return nil
}
