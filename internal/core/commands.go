package eradio

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/bwmarrin/discordgo"
	"github.com/pkg/errors"
	"github.com/toksikk/eradio/internal/radio"
)

const (
	msgNoVoiceChannel = "There isn't a VoiceChannel called: '%s'! Please create one to use this bot!"
	msgAlreadyPlaying = "eRadio is already playing!"
	msgAlreadyStopped = "eRadio is already stopped!"
	msgStopped        = "eRadio has stopped."
	msgNotPlaying     = "eRadio is not currently playing anything!"
	msgCurrentVolume  = "**Current Volume:** %.2f%%"
	msgVolumeSet      = "**Volume Set to:** %.2f%%"
	msgInvalidNumber  = "'%s' is not a valid number!"
	msgMuted          = "Playback muted!"
	msgAlreadyMuted   = "Playback already muted!"
	msgUnmuted        = "Playback un-muted!"
	msgAlreadyUnmuted = "Playback already un-muted!"
	msgCurrentStation = "**Current Station:** %s"
	msgStationSet     = "**Station Set to:** %s"
)

const (
	cmdJoin       = "join"
	cmdLeave      = "leave"
	cmdPlay       = "play"
	cmdStop       = "stop"
	cmdNowPlaying = "nowplaying"
	cmdVolume     = "volume"
	cmdMute       = "mute"
	cmdUnmute     = "unmute"
	cmdStation    = "station"
	cmdHelp       = "help"
)

var commandHelp = []struct {
	name string
	args string
	text string
}{
	{cmdJoin, "", "Joins the configured VoiceChannel if possible."},
	{cmdLeave, "", "Leaves the current VoiceChannel if in one."},
	{cmdPlay, "", "Starts playback."},
	{cmdNowPlaying, "", "Gets the current song's info if possible."},
	{cmdStop, "", "Stops playback."},
	{cmdVolume, " [0-100]", "Shows or sets the playback volume."},
	{cmdMute, "", "Mutes playback."},
	{cmdUnmute, "", "Un-mutes playback."},
	{cmdStation, " [url]", "Shows or changes the station of this server."},
	{cmdHelp, "", "Messages the user a list of commands."},
}

var errUnknownCommand = errors.New("unknown command")

// parseCommand splits "<prefix><command> [argument]". The command is matched
// case-insensitively, the argument is kept as typed.
func parseCommand(content string, prefix string) (cmd string, arg string, ok bool) {
	content = strings.TrimSpace(content)
	if prefix == "" || !strings.HasPrefix(content, prefix) {
		return "", "", false
	}
	content = strings.TrimPrefix(content, prefix)

	name, rest, _ := strings.Cut(content, " ")
	name = strings.ToLower(name)
	for _, c := range commandHelp {
		if c.name == name {
			return name, strings.TrimSpace(rest), true
		}
	}
	return "", "", false
}

func parseVolume(arg string) (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSuffix(strings.TrimSpace(arg), "%"), 64)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, errors.Errorf("%s is not a finite number", arg)
	}
	return math.Max(0, math.Min(100, v)), nil
}

func known(value string) bool {
	return value != "" && !strings.EqualFold(value, radio.Unknown)
}

func nowPlayingMessage(info radio.StationInfo) string {
	if known(info.Artist) || known(info.Song) {
		return fmt.Sprintf("***%s***\n**Artist:** %s\n**Song:** %s", info.Station, info.Artist, info.Song)
	}
	return fmt.Sprintf("**Radio Station:** %s\n**Song:** %s", info.Station, info.Info)
}

func helpMessage(prefix string) string {
	var b strings.Builder
	b.WriteString("__**Commands:**__\n```\n")
	for _, c := range commandHelp {
		fmt.Fprintf(&b, "%s%s%s // %s\n", prefix, c.name, c.args, c.text)
	}
	b.WriteString("```")
	return b.String()
}

// runCommand executes a guild command and returns the replies for the text
// channel in order. help is answered by the caller since it goes to a DM.
func runCommand(ctx context.Context, g *guildSession, channels []*discordgo.Channel, resolver infoResolver, cmd string, arg string) ([]string, error) {
	commandsTotal.WithLabelValues(cmd).Inc()

	switch cmd {
	case cmdJoin:
		reply, err := g.join(channels)
		return replies(reply), err
	case cmdLeave:
		return nil, g.leave()
	case cmdPlay:
		reply, err := g.play(channels)
		if reply != "" || err != nil {
			return replies(reply), err
		}
		return replies(g.nowPlaying(ctx, resolver)), nil
	case cmdStop:
		return replies(g.stop()), nil
	case cmdNowPlaying:
		return replies(g.nowPlaying(ctx, resolver)), nil
	case cmdVolume:
		return replies(g.setVolume(arg)), nil
	case cmdMute:
		return replies(g.setMuted(true)), nil
	case cmdUnmute:
		return replies(g.setMuted(false)), nil
	case cmdStation:
		return replies(g.setStation(arg)), nil
	}
	return nil, errors.Wrap(errUnknownCommand, cmd)
}

func replies(reply string) []string {
	if reply == "" {
		return nil
	}
	return []string{reply}
}
