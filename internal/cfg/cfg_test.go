package cfg

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/pkg/errors"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	f, err := os.CreateTemp("", "config*.yaml")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { os.Remove(f.Name()) })

	if _, err := f.WriteString(content); err != nil {
		t.Fatal(err)
	}
	f.Close()
	return f.Name()
}

func TestLoadFile(t *testing.T) {
	name := writeConfig(t, `
discord:
  token: mytoken
  owner_id: me
  shard_id: 1
  shard_count: 4
radio:
  station_url: http://radio.example:8000/mystream
  voice_channel: Ethereal Radio
  command_prefix: "!"
  volume: 75
  status_timeout: 3s
  database: /tmp/eradio.sqlite
web:
  port: 8080
  session_secret: cookiesecret
  oauth:
    client_id: "42"
    client_secret: mysecretstring
    redirect_uri: http://localhost:8080
dev_mode: true
`)

	config := loadFile(name)
	if config.Discord.Token != "mytoken" {
		t.Errorf("unexpected token: %s", config.Discord.Token)
	}
	if config.Discord.OwnerID != "me" {
		t.Errorf("unexpected owner: %s", config.Discord.OwnerID)
	}
	if config.Discord.ShardID != 1 || config.Discord.ShardCount != 4 {
		t.Errorf("unexpected shard info: %d/%d", config.Discord.ShardID, config.Discord.ShardCount)
	}
	if config.Radio.StationURL != "http://radio.example:8000/mystream" {
		t.Errorf("unexpected station url: %s", config.Radio.StationURL)
	}
	if config.Radio.VoiceChannel != "Ethereal Radio" {
		t.Errorf("unexpected voice channel: %s", config.Radio.VoiceChannel)
	}
	if config.Radio.CommandPrefix != "!" {
		t.Errorf("unexpected prefix: %s", config.Radio.CommandPrefix)
	}
	if config.Radio.Volume != 75 {
		t.Errorf("unexpected volume: %v", config.Radio.Volume)
	}
	if config.Radio.StatusTimeout != 3*time.Second {
		t.Errorf("unexpected status timeout: %v", config.Radio.StatusTimeout)
	}
	if config.Web.Port != 8080 {
		t.Errorf("unexpected port: %d", config.Web.Port)
	}
	if config.Web.Oauth.ClientID != "42" || config.Web.Oauth.ClientSecret != "mysecretstring" {
		t.Errorf("unexpected oauth settings: %+v", config.Web.Oauth)
	}
	if !config.DevMode {
		t.Errorf("unexpected dev mode: %v", config.DevMode)
	}
	if !config.WebEnabled() {
		t.Errorf("WebEnabled() = false, want true")
	}
}

func TestLoadFile_Missing(t *testing.T) {
	config := loadFile("does-not-exist.yaml")
	if config == nil {
		t.Fatal("loadFile() = nil, want empty config")
	}
	if config.Discord.Token != "" {
		t.Errorf("unexpected token: %s", config.Discord.Token)
	}
}

func TestApplyEnv(t *testing.T) {
	t.Setenv("ERADIO_DISCORD_TOKEN", "envtoken")
	t.Setenv("ERADIO_VOLUME", "20")
	t.Setenv("ERADIO_STATUS_TIMEOUT", "7s")

	conf := &Config{}
	conf.Discord.Token = "filetoken"
	conf.Radio.StationURL = "http://file.example/stream"

	if err := applyEnv(context.Background(), conf); err != nil {
		t.Fatalf("applyEnv() error = %v", err)
	}
	if conf.Discord.Token != "envtoken" {
		t.Errorf("token = %q, want env value", conf.Discord.Token)
	}
	if conf.Radio.StationURL != "http://file.example/stream" {
		t.Errorf("station url = %q, want file value kept", conf.Radio.StationURL)
	}
	if conf.Radio.Volume != 20 {
		t.Errorf("volume = %v, want 20", conf.Radio.Volume)
	}
	if conf.Radio.StatusTimeout != 7*time.Second {
		t.Errorf("status timeout = %v, want 7s", conf.Radio.StatusTimeout)
	}
}

func TestParse(t *testing.T) {
	name := writeConfig(t, `
discord:
  token: filetoken
radio:
  station_url: http://file.example/stream
`)

	tests := []struct {
		name      string
		args      []string
		wantToken string
		wantURL   string
		wantVoice string
	}{
		{
			name:      "config file only",
			args:      []string{"--config", name},
			wantToken: "filetoken",
			wantURL:   "http://file.example/stream",
			wantVoice: defaultVoiceChannel,
		},
		{
			name:      "positional arguments win",
			args:      []string{"-c", name, "argtoken", "http://arg.example/live", "Lounge"},
			wantToken: "argtoken",
			wantURL:   "http://arg.example/live",
			wantVoice: "Lounge",
		},
		{
			name:      "incomplete positional arguments are ignored",
			args:      []string{"-c", name, "argtoken"},
			wantToken: "filetoken",
			wantURL:   "http://file.example/stream",
			wantVoice: defaultVoiceChannel,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			conf, err := parse(tt.args)
			if err != nil {
				t.Fatalf("parse() error = %v", err)
			}
			if conf.Discord.Token != tt.wantToken {
				t.Errorf("token = %q, want %q", conf.Discord.Token, tt.wantToken)
			}
			if conf.Radio.StationURL != tt.wantURL {
				t.Errorf("station url = %q, want %q", conf.Radio.StationURL, tt.wantURL)
			}
			if conf.Radio.VoiceChannel != tt.wantVoice {
				t.Errorf("voice channel = %q, want %q", conf.Radio.VoiceChannel, tt.wantVoice)
			}
			if conf.Radio.CommandPrefix != defaultCommandPrefix {
				t.Errorf("prefix = %q, want default", conf.Radio.CommandPrefix)
			}
			if conf.Radio.Volume != defaultVolume {
				t.Errorf("volume = %v, want default", conf.Radio.Volume)
			}
			if conf.Discord.ShardCount != 1 {
				t.Errorf("shard count = %d, want 1", conf.Discord.ShardCount)
			}
		})
	}
}

func TestValidate(t *testing.T) {
	conf := &Config{}
	if err := conf.Validate(); !errors.Is(err, ErrIncomplete) {
		t.Errorf("Validate() error = %v, want ErrIncomplete", err)
	}
	conf.Discord.Token = "t"
	if err := conf.Validate(); !errors.Is(err, ErrIncomplete) {
		t.Errorf("Validate() error = %v, want ErrIncomplete", err)
	}
	conf.Radio.StationURL = "http://radio.example/stream"
	if err := conf.Validate(); err != nil {
		t.Errorf("Validate() error = %v, want nil", err)
	}
}
