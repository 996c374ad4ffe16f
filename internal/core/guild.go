package eradio

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"github.com/bwmarrin/discordgo"
	"github.com/toksikk/eradio/internal/datastore"
	"github.com/toksikk/eradio/internal/radio"
)

type settingsStore interface {
	EnsureGuildSetting(guildID string, defaults datastore.GuildSetting) (*datastore.GuildSetting, error)
	SetVolume(guildID string, volume float64) error
	SetMuted(guildID string, muted bool) error
	SetStationURL(guildID string, stationURL string) error
}

type infoResolver interface {
	Resolve(ctx context.Context, streamURL string) (radio.StationInfo, error)
}

// guildSession is the radio state of one guild. Every guild has its own
// station, volume and player.
type guildSession struct {
	mu sync.Mutex

	guildID      string
	stationURL   string
	voiceChannel string
	volume       float64
	muted        bool
	playing      bool

	// bumped on every start and stop so a late end-of-stream callback of an
	// old stream does not touch the current one
	generation uint64

	player audioPlayer
	store  settingsStore
}

// sessionStatus is a point in time copy of a guildSession.
type sessionStatus struct {
	GuildID      string  `json:"guild_id"`
	StationURL   string  `json:"station_url"`
	VoiceChannel string  `json:"voice_channel"`
	Volume       float64 `json:"volume"`
	Muted        bool    `json:"muted"`
	Playing      bool    `json:"playing"`
}

func findVoiceChannel(channels []*discordgo.Channel, name string) *discordgo.Channel {
	for _, c := range channels {
		if c.Type == discordgo.ChannelTypeGuildVoice && strings.EqualFold(c.Name, name) {
			return c
		}
	}
	return nil
}

func (g *guildSession) effectiveVolume() float64 {
	if g.muted {
		return 0
	}
	return g.volume
}

func (g *guildSession) status() sessionStatus {
	g.mu.Lock()
	defer g.mu.Unlock()
	return sessionStatus{
		GuildID:      g.guildID,
		StationURL:   g.stationURL,
		VoiceChannel: g.voiceChannel,
		Volume:       g.volume,
		Muted:        g.muted,
		Playing:      g.playing,
	}
}

func (g *guildSession) join(channels []*discordgo.Channel) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.joinLocked(channels)
}

func (g *guildSession) joinLocked(channels []*discordgo.Channel) (string, error) {
	channel := findVoiceChannel(channels, g.voiceChannel)
	if channel == nil {
		return fmt.Sprintf(msgNoVoiceChannel, g.voiceChannel), nil
	}
	return "", g.player.Join(channel.ID)
}

func (g *guildSession) leave() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.stopLocked()
	return g.player.Leave()
}

// play joins the voice channel if needed and starts the station. An empty
// reply means playback started.
func (g *guildSession) play(channels []*discordgo.Channel) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.playing {
		return msgAlreadyPlaying, nil
	}
	if !g.player.Connected() {
		if reply, err := g.joinLocked(channels); reply != "" || err != nil {
			return reply, err
		}
	}
	return "", g.startLocked()
}

func (g *guildSession) startLocked() error {
	g.generation++
	gen := g.generation
	err := g.player.Play(g.stationURL, g.effectiveVolume(), func(err error) {
		g.streamEnded(gen, err)
	})
	if err != nil {
		return err
	}
	g.playing = true
	activeStreams.Inc()
	slog.Info("Started playback", "guild", g.guildID, "station", g.stationURL, "volume", g.effectiveVolume())
	return nil
}

func (g *guildSession) stopLocked() bool {
	if !g.playing {
		return false
	}
	g.generation++
	g.player.Stop()
	g.playing = false
	activeStreams.Dec()
	return true
}

// restartLocked applies changed settings to a running stream.
func (g *guildSession) restartLocked() {
	if !g.stopLocked() {
		return
	}
	if err := g.startLocked(); err != nil {
		slog.Error("could not restart playback", "guild", g.guildID, "error", err)
	}
}

func (g *guildSession) streamEnded(gen uint64, err error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if gen != g.generation || !g.playing {
		return
	}
	g.playing = false
	activeStreams.Dec()
	if err != nil {
		slog.Error("Stream ended with error", "guild", g.guildID, "station", g.stationURL, "error", err)
		return
	}
	slog.Info("Stream ended", "guild", g.guildID, "station", g.stationURL)
}

func (g *guildSession) stop() string {
	g.mu.Lock()
	defer g.mu.Unlock()

	if !g.stopLocked() {
		return msgAlreadyStopped
	}
	return msgStopped
}

func (g *guildSession) nowPlaying(ctx context.Context, resolver infoResolver) string {
	g.mu.Lock()
	playing, stationURL := g.playing, g.stationURL
	g.mu.Unlock()

	if !playing {
		return msgNotPlaying
	}

	info, err := resolver.Resolve(ctx, stationURL)
	observeFetch(err)
	if err != nil {
		slog.Warn("could not resolve station info", "guild", g.guildID, "station", stationURL, "error", err)
		return err.Error()
	}
	return nowPlayingMessage(info)
}

func (g *guildSession) setVolume(arg string) string {
	g.mu.Lock()
	defer g.mu.Unlock()

	if arg == "" {
		return fmt.Sprintf(msgCurrentVolume, g.volume)
	}

	volume, err := parseVolume(arg)
	if err != nil {
		return fmt.Sprintf(msgInvalidNumber, arg)
	}

	g.volume = volume
	g.persist("volume", g.store.SetVolume(g.guildID, volume))
	if g.muted {
		g.muted = false
		g.persist("muted", g.store.SetMuted(g.guildID, false))
	}
	g.restartLocked()

	return fmt.Sprintf(msgVolumeSet, volume)
}

func (g *guildSession) setMuted(muted bool) string {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.muted == muted {
		if muted {
			return msgAlreadyMuted
		}
		return msgAlreadyUnmuted
	}

	g.muted = muted
	g.persist("muted", g.store.SetMuted(g.guildID, muted))
	g.restartLocked()

	if muted {
		return msgMuted
	}
	return msgUnmuted
}

func (g *guildSession) setStation(arg string) string {
	g.mu.Lock()
	defer g.mu.Unlock()

	if arg == "" {
		return fmt.Sprintf(msgCurrentStation, g.stationURL)
	}
	if _, err := radio.DeriveMountPoint(arg); err != nil {
		return err.Error()
	}

	g.stationURL = arg
	g.persist("station", g.store.SetStationURL(g.guildID, arg))
	g.restartLocked()

	return fmt.Sprintf(msgStationSet, arg)
}

func (g *guildSession) persist(what string, err error) {
	if err != nil {
		slog.Error("could not persist guild setting", "guild", g.guildID, "setting", what, "error", err)
	}
}

// sessionManager hands out one guildSession per guild, created lazily from
// the stored settings.
type sessionManager struct {
	mu        sync.Mutex
	sessions  map[string]*guildSession
	store     settingsStore
	defaults  datastore.GuildSetting
	newPlayer func(guildID string) audioPlayer
}

func newSessionManager(store settingsStore, defaults datastore.GuildSetting, newPlayer func(guildID string) audioPlayer) *sessionManager {
	return &sessionManager{
		sessions:  make(map[string]*guildSession),
		store:     store,
		defaults:  defaults,
		newPlayer: newPlayer,
	}
}

func (m *sessionManager) get(guildID string) (*guildSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if g, ok := m.sessions[guildID]; ok {
		return g, nil
	}

	setting, err := m.store.EnsureGuildSetting(guildID, m.defaults)
	if err != nil {
		return nil, err
	}
	g := &guildSession{
		guildID:      guildID,
		stationURL:   setting.StationURL,
		voiceChannel: setting.VoiceChannel,
		volume:       setting.Volume,
		muted:        setting.Muted,
		player:       m.newPlayer(guildID),
		store:        m.store,
	}
	m.sessions[guildID] = g
	return g, nil
}

func (m *sessionManager) snapshot() []sessionStatus {
	m.mu.Lock()
	sessions := make([]*guildSession, 0, len(m.sessions))
	for _, g := range m.sessions {
		sessions = append(sessions, g)
	}
	m.mu.Unlock()

	statuses := make([]sessionStatus, 0, len(sessions))
	for _, g := range sessions {
		statuses = append(statuses, g.status())
	}
	sort.Slice(statuses, func(i, j int) bool { return statuses[i].GuildID < statuses[j].GuildID })
	return statuses
}

// shutdown stops every stream and leaves all voice channels.
func (m *sessionManager) shutdown() {
	m.mu.Lock()
	defer m.mu.Unlock()

	for id, g := range m.sessions {
		if err := g.leave(); err != nil {
			slog.Warn("could not leave voice channel", "guild", id, "error", err)
		}
	}
}
