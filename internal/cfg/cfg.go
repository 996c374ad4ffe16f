package cfg

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/sethvargo/go-envconfig"
	flag "github.com/spf13/pflag"
	"gopkg.in/yaml.v3"
)

// DiscordConfig holds the bot account settings
type DiscordConfig struct {
	Token      string `yaml:"token" env:"ERADIO_DISCORD_TOKEN, overwrite"`
	OwnerID    string `yaml:"owner_id,omitempty" env:"ERADIO_DISCORD_OWNER_ID, overwrite"`
	ShardID    int    `yaml:"shard_id,omitempty" env:"ERADIO_DISCORD_SHARD_ID, overwrite"`
	ShardCount int    `yaml:"shard_count,omitempty" env:"ERADIO_DISCORD_SHARD_COUNT, overwrite"`
}

// RadioConfig holds the default station every guild starts with
type RadioConfig struct {
	StationURL    string        `yaml:"station_url" env:"ERADIO_STATION_URL, overwrite"`
	VoiceChannel  string        `yaml:"voice_channel,omitempty" env:"ERADIO_VOICE_CHANNEL, overwrite"`
	CommandPrefix string        `yaml:"command_prefix,omitempty" env:"ERADIO_COMMAND_PREFIX, overwrite"`
	Volume        float64       `yaml:"volume,omitempty" env:"ERADIO_VOLUME, overwrite"`
	StatusTimeout time.Duration `yaml:"status_timeout,omitempty" env:"ERADIO_STATUS_TIMEOUT, overwrite"`
	Database      string        `yaml:"database,omitempty" env:"ERADIO_DATABASE, overwrite"`
}

// OauthConfig is the Discord application used for the web login
type OauthConfig struct {
	ClientID     string `yaml:"client_id" env:"ERADIO_OAUTH_CLIENT_ID, overwrite"`
	ClientSecret string `yaml:"client_secret" env:"ERADIO_OAUTH_CLIENT_SECRET, overwrite"`
	RedirectURI  string `yaml:"redirect_uri" env:"ERADIO_OAUTH_REDIRECT_URI, overwrite"`
}

// WebConfig configures the optional control panel
type WebConfig struct {
	Oauth         OauthConfig `yaml:"oauth"`
	Port          int         `yaml:"port,omitempty" env:"ERADIO_WEB_PORT, overwrite"`
	SessionSecret string      `yaml:"session_secret,omitempty" env:"ERADIO_WEB_SESSION_SECRET, overwrite"`
}

// Config struct with all parameters
type Config struct {
	Discord DiscordConfig `yaml:"discord"`
	Radio   RadioConfig   `yaml:"radio"`
	Web     WebConfig     `yaml:"web"`
	DevMode bool          `yaml:"dev_mode,omitempty" env:"ERADIO_DEV_MODE, overwrite"`
}

const (
	defaultConfigFile    = "config.yaml"
	defaultVoiceChannel  = "General"
	defaultCommandPrefix = "-"
	defaultVolume        = 50
	defaultStatusTimeout = 10 * time.Second
	defaultDatabase      = "eradio.sqlite"
)

// ErrIncomplete is returned by Validate when a required setting is missing.
var ErrIncomplete = errors.New("the config was not populated")

// GetConfig parses the command line and builds the config from the config
// file, .env, the environment and positional arguments, in that order.
func GetConfig() (*Config, error) {
	return parse(os.Args[1:])
}

func parse(args []string) (*Config, error) {
	fs := flag.NewFlagSet("eradio", flag.ContinueOnError)
	path := fs.StringP("config", "c", defaultConfigFile, "path to the config file")
	if err := fs.Parse(args); err != nil {
		return nil, errors.Wrap(err, "parse flags")
	}

	conf := loadFile(*path)

	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		slog.Warn("Could not load .env file.", "error", err)
	}
	if err := applyEnv(context.Background(), conf); err != nil {
		return nil, err
	}

	applyArgs(conf, fs.Args())
	conf.applyDefaults()

	return conf, conf.Validate()
}

func loadFile(cf string) *Config {
	config := &Config{}
	configFile, err := os.Open(cf)
	if err != nil {
		slog.Warn("Could not load config file.", "file", cf, "error", err)
		return config
	}
	defer configFile.Close()

	d := yaml.NewDecoder(configFile)

	if err := d.Decode(config); err != nil {
		slog.Error("could not decode config.", "file", cf, "error", err)
	}

	return config
}

func applyEnv(ctx context.Context, conf *Config) error {
	if err := envconfig.Process(ctx, conf); err != nil {
		return errors.Wrap(err, "read environment")
	}
	return nil
}

// applyArgs accepts the classic "<token> <station url> <voice channel>" form.
func applyArgs(conf *Config, args []string) {
	if len(args) < 3 {
		return
	}
	conf.Discord.Token = args[0]
	conf.Radio.StationURL = args[1]
	conf.Radio.VoiceChannel = args[2]
}

func (c *Config) applyDefaults() {
	if c.Radio.VoiceChannel == "" {
		c.Radio.VoiceChannel = defaultVoiceChannel
	}
	if c.Radio.CommandPrefix == "" {
		c.Radio.CommandPrefix = defaultCommandPrefix
	}
	if c.Radio.Volume == 0 {
		c.Radio.Volume = defaultVolume
	}
	if c.Radio.StatusTimeout <= 0 {
		c.Radio.StatusTimeout = defaultStatusTimeout
	}
	if c.Radio.Database == "" {
		c.Radio.Database = defaultDatabase
	}
	if c.Discord.ShardCount <= 0 {
		c.Discord.ShardCount = 1
	}
}

// Validate reports missing required settings.
func (c *Config) Validate() error {
	if c.Discord.Token == "" {
		return errors.Wrap(ErrIncomplete, "discord token is missing")
	}
	if c.Radio.StationURL == "" {
		return errors.Wrap(ErrIncomplete, "station url is missing")
	}
	return nil
}

// WebEnabled reports whether the control panel has everything it needs.
func (c *Config) WebEnabled() bool {
	return c.Web.Port > 0 && c.Web.Oauth.ClientID != "" && c.Web.Oauth.ClientSecret != "" && c.Web.Oauth.RedirectURI != ""
}
