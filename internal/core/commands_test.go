package eradio

import (
	"context"
	"strings"
	"testing"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/toksikk/eradio/internal/radio"
)

func TestParseCommand(t *testing.T) {
	tests := []struct {
		content string
		prefix  string
		wantCmd string
		wantArg string
		wantOK  bool
	}{
		{content: "-play", prefix: "-", wantCmd: "play", wantOK: true},
		{content: "  -NowPlaying  ", prefix: "-", wantCmd: "nowplaying", wantOK: true},
		{content: "-volume 42", prefix: "-", wantCmd: "volume", wantArg: "42", wantOK: true},
		{content: "-station http://Radio.example/Live", prefix: "-", wantCmd: "station", wantArg: "http://Radio.example/Live", wantOK: true},
		{content: "!play", prefix: "!", wantCmd: "play", wantOK: true},
		{content: "!play", prefix: "-", wantOK: false},
		{content: "-dance", prefix: "-", wantOK: false},
		{content: "play", prefix: "-", wantOK: false},
		{content: "", prefix: "-", wantOK: false},
		{content: "-play", prefix: "", wantOK: false},
	}

	for _, tt := range tests {
		t.Run(tt.content, func(t *testing.T) {
			cmd, arg, ok := parseCommand(tt.content, tt.prefix)
			if ok != tt.wantOK {
				t.Fatalf("parseCommand() ok = %v, want %v", ok, tt.wantOK)
			}
			if cmd != tt.wantCmd || arg != tt.wantArg {
				t.Errorf("parseCommand() = %q, %q, want %q, %q", cmd, arg, tt.wantCmd, tt.wantArg)
			}
		})
	}
}

func TestParseVolume(t *testing.T) {
	tests := []struct {
		arg     string
		want    float64
		wantErr bool
	}{
		{arg: "50", want: 50},
		{arg: "50%", want: 50},
		{arg: " 7.5 ", want: 7.5},
		{arg: "101", want: 100},
		{arg: "-1", want: 0},
		{arg: "NaN", wantErr: true},
		{arg: "Inf", wantErr: true},
		{arg: "abc", wantErr: true},
		{arg: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.arg, func(t *testing.T) {
			got, err := parseVolume(tt.arg)
			if (err != nil) != tt.wantErr {
				t.Fatalf("parseVolume() error = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("parseVolume() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestDCAVolume(t *testing.T) {
	tests := []struct {
		percent float64
		want    int
	}{
		{percent: 100, want: 256},
		{percent: 50, want: 128},
		{percent: 0, want: 0},
		{percent: -5, want: 0},
		{percent: 33.3, want: 85},
	}
	for _, tt := range tests {
		if got := dcaVolume(tt.percent); got != tt.want {
			t.Errorf("dcaVolume(%v) = %d, want %d", tt.percent, got, tt.want)
		}
	}
	if opts := encodeOptions(50); opts.Volume != 128 || !opts.RawOutput {
		t.Errorf("encodeOptions(50) = %+v", opts)
	}
}

func TestNowPlayingMessage(t *testing.T) {
	tests := []struct {
		name string
		info radio.StationInfo
		want string
	}{
		{
			name: "artist and song",
			info: radio.StationInfo{Station: "Radio1", Artist: "Band", Song: "Song A", Info: "Band - Song A"},
			want: "***Radio1***\n**Artist:** Band\n**Song:** Song A",
		},
		{
			name: "song only",
			info: radio.StationInfo{Station: "Radio1", Artist: radio.Unknown, Song: "Song A", Info: radio.Unknown},
			want: "***Radio1***\n**Artist:** Unknown\n**Song:** Song A",
		},
		{
			name: "info only",
			info: radio.StationInfo{Station: "Radio1", Artist: radio.Unknown, Song: radio.Unknown, Info: "Live"},
			want: "**Radio Station:** Radio1\n**Song:** Live",
		},
		{
			name: "nothing known",
			info: radio.StationInfo{Station: radio.Unknown, Artist: radio.Unknown, Song: radio.Unknown, Info: radio.Unknown},
			want: "**Radio Station:** Unknown\n**Song:** Unknown",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := nowPlayingMessage(tt.info); got != tt.want {
				t.Errorf("nowPlayingMessage() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestHelpMessage(t *testing.T) {
	got := helpMessage("!")
	if !strings.HasPrefix(got, "__**Commands:**__\n```\n") || !strings.HasSuffix(got, "```") {
		t.Errorf("helpMessage() is not a code block: %q", got)
	}
	for _, c := range commandHelp {
		if !strings.Contains(got, "!"+c.name) {
			t.Errorf("helpMessage() misses %s", c.name)
		}
	}
}

func TestRunCommand(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	g := env.session(t, "g1")

	before := testutil.ToFloat64(commandsTotal.WithLabelValues(cmdPlay))

	tests := []struct {
		cmd  string
		arg  string
		want []string
	}{
		{cmd: cmdNowPlaying, want: []string{msgNotPlaying}},
		{cmd: cmdJoin},
		{cmd: cmdPlay, want: []string{"***Radio1***\n**Artist:** Band\n**Song:** Song A"}},
		{cmd: cmdPlay, want: []string{msgAlreadyPlaying}},
		{cmd: cmdVolume, arg: "80", want: []string{"**Volume Set to:** 80.00%"}},
		{cmd: cmdMute, want: []string{msgMuted}},
		{cmd: cmdUnmute, want: []string{msgUnmuted}},
		{cmd: cmdStation, want: []string{"**Current Station:** " + env.server.URL + "/mystream"}},
		{cmd: cmdStop, want: []string{msgStopped}},
		{cmd: cmdLeave},
	}

	for _, tt := range tests {
		got, err := runCommand(ctx, g, testChannels, env.resolver, tt.cmd, tt.arg)
		if err != nil {
			t.Fatalf("runCommand(%s) error = %v", tt.cmd, err)
		}
		if strings.Join(got, "|") != strings.Join(tt.want, "|") {
			t.Errorf("runCommand(%s %s) = %q, want %q", tt.cmd, tt.arg, got, tt.want)
		}
	}

	if got := testutil.ToFloat64(commandsTotal.WithLabelValues(cmdPlay)) - before; got != 2 {
		t.Errorf("commands_total{command=play} grew by %v, want 2", got)
	}

	if _, err := runCommand(ctx, g, testChannels, env.resolver, "dance", ""); !errors.Is(err, errUnknownCommand) {
		t.Errorf("runCommand(dance) error = %v, want errUnknownCommand", err)
	}
}

func TestObserveFetch(t *testing.T) {
	before := testutil.ToFloat64(statusFetches.WithLabelValues("connect"))
	observeFetch(&radio.StatusError{Kind: radio.KindConnect, Endpoint: "http://h/status-json.xsl"})
	if got := testutil.ToFloat64(statusFetches.WithLabelValues("connect")) - before; got != 1 {
		t.Errorf("status_fetch_total{outcome=connect} grew by %v, want 1", got)
	}

	before = testutil.ToFloat64(statusFetches.WithLabelValues("ok"))
	observeFetch(nil)
	if got := testutil.ToFloat64(statusFetches.WithLabelValues("ok")) - before; got != 1 {
		t.Errorf("status_fetch_total{outcome=ok} grew by %v, want 1", got)
	}
}
