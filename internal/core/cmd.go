package eradio

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"runtime"
	"strings"
	"syscall"
	"time"

	"github.com/bwmarrin/discordgo"
	humanize "github.com/dustin/go-humanize"
	"github.com/lmittmann/tint"
	"github.com/toksikk/eradio/internal/cfg"
	"github.com/toksikk/eradio/internal/datastore"
	"github.com/toksikk/eradio/internal/radio"
)

var (
	// discordgo session
	discord *discordgo.Session

	// Config struct to pass around
	conf *cfg.Config

	// per guild radio state
	guilds *sessionManager

	// station metadata lookups
	resolver *radio.Resolver

	logLevel = new(slog.LevelVar)

	// Start time for uptime calculation
	startTime = time.Now()
)

func setupLogging() {
	// set log level to debug if env var is set
	if os.Getenv("DEBUG") != "" {
		logLevel.Set(slog.LevelDebug)
	}
	slog.SetDefault(slog.New(tint.NewHandler(os.Stderr, &tint.Options{
		Level:      logLevel,
		TimeFormat: time.DateTime,
	})))
}

func onReady(s *discordgo.Session, event *discordgo.Ready) {
	slog.Info("Received READY payload.", "guilds", len(event.Guilds))
	err := s.UpdateListeningStatus(conf.Radio.CommandPrefix + cmdHelp)
	if err != nil {
		slog.Warn("could not set listening status", "error", err)
	}
}

func scontains(key string, options ...string) bool {
	for _, item := range options {
		if item == key {
			return true
		}
	}
	return false
}

func botStats() string {
	stats := runtime.MemStats{}
	runtime.ReadMemStats(&stats)

	guildCount := 0
	if discord != nil && discord.State != nil {
		guildCount = len(discord.State.Guilds)
	}

	playing := 0
	statuses := guilds.snapshot()
	for _, s := range statuses {
		if s.Playing {
			playing++
		}
	}

	uptime := time.Since(startTime).Round(time.Second)
	startDateTime := startTime.Format("2006-01-02 15:04:05")

	return fmt.Sprintf(`eRadio:          %s
Discordgo:       %s
Go:              %s

Memory:
  Alloc:         %s
  Sys:           %s
  TotalAlloc:    %s

Heap:
  Alloc:         %s
  InUse:         %s
  Sys:           %s

Stack:
  InUse:         %s
  Sys:           %s

Tasks:           %d
Servers:         %d
Sessions:        %d
Streaming:       %d

Uptime:          %s (since %s)
`, appVersion(), discordgo.VERSION, runtime.Version(),
		humanize.Bytes(stats.Alloc), humanize.Bytes(stats.Sys), humanize.Bytes(stats.TotalAlloc),
		humanize.Bytes(stats.HeapAlloc), humanize.Bytes(stats.HeapInuse), humanize.Bytes(stats.HeapSys),
		humanize.Bytes(stats.StackInuse), humanize.Bytes(stats.StackSys),
		runtime.NumGoroutine(), guildCount, len(statuses), playing, uptime, startDateTime)
}

// Handles bot operator messages
func handleBotControlMessages(s *discordgo.Session, m *discordgo.MessageCreate, parts []string) {
	if len(parts) > 1 && scontains(parts[1], "status") {
		sendMessage(s, m.ChannelID, "```"+botStats()+"```")
	}
}

func sendMessage(s *discordgo.Session, channelID string, content string) {
	msg, err := s.ChannelMessageSend(channelID, content)
	if err != nil {
		slog.Error("could not send channel message", "message", msg, "error", err)
	}
}

func sendHelp(s *discordgo.Session, userID string) {
	st, err := s.UserChannelCreate(userID)
	if err != nil {
		slog.Error("could not create private channel", "user", userID, "error", err)
		return
	}
	sendMessage(s, st.ID, helpMessage(conf.Radio.CommandPrefix))
}

func mentionsBot(s *discordgo.Session, m *discordgo.MessageCreate) bool {
	for _, mention := range m.Mentions {
		if mention.ID == s.State.User.ID {
			return true
		}
	}
	return false
}

func onMessageCreate(s *discordgo.Session, m *discordgo.MessageCreate) {
	if m.Author == nil || m.Author.Bot || m.Author.ID == s.State.User.ID {
		return
	}

	// If this is a mention, it should come from the owner (otherwise we don't care)
	if len(m.Mentions) > 0 && m.Author.ID == conf.Discord.OwnerID && mentionsBot(s, m) {
		msg := strings.Replace(m.ContentWithMentionsReplaced(), s.State.User.Username, "username", 1)
		handleBotControlMessages(s, m, strings.Split(strings.ToLower(msg), " "))
		return
	}

	cmd, arg, ok := parseCommand(m.Content, conf.Radio.CommandPrefix)
	if !ok {
		return
	}

	if cmd == cmdHelp {
		commandsTotal.WithLabelValues(cmd).Inc()
		sendHelp(s, m.Author.ID)
		return
	}

	if m.GuildID == "" {
		return
	}
	guild, err := s.State.Guild(m.GuildID)
	if err != nil {
		slog.Warn("Failed to grab guild", "guild", m.GuildID, "message", m.ID, "error", err)
		return
	}

	g, err := guilds.get(guild.ID)
	if err != nil {
		slog.Error("could not load guild session", "guild", guild.ID, "error", err)
		return
	}

	slog.Debug("Handling command", "command", cmd, "argument", arg, "guild", guild.Name, "user", m.Author.Username)
	out, err := runCommand(context.Background(), g, guild.Channels, resolver, cmd, arg)
	if err != nil {
		slog.Error("command failed", "command", cmd, "guild", guild.ID, "error", err)
		out = append(out, fmt.Sprintf("Could not %s: %s", cmd, err))
	}
	for _, reply := range out {
		sendMessage(s, m.ChannelID, reply)
	}
}

func notifyOwner(message string) {
	if conf.Discord.OwnerID == "" {
		return
	}
	st, err := discord.UserChannelCreate(conf.Discord.OwnerID)
	if err != nil {
		slog.Warn("could not reach owner", "error", err)
		return
	}
	sendMessage(discord, st.ID, message)
}

func defaultSetting(c *cfg.Config) datastore.GuildSetting {
	return datastore.GuildSetting{
		StationURL:   c.Radio.StationURL,
		VoiceChannel: c.Radio.VoiceChannel,
		Volume:       c.Radio.Volume,
	}
}

// StartERadio runs the bot until SIGINT or SIGTERM.
func StartERadio() {
	setupLogging()
	LogVersion()

	var err error
	conf, err = cfg.GetConfig()
	if err != nil {
		slog.Error("Invalid configuration", "error", err)
		os.Exit(1)
	}
	slog.Info("Dev Mode", "enabled", conf.DevMode)
	if conf.DevMode {
		logLevel.Set(slog.LevelDebug)
	}

	db, err := datastore.InitDB(conf.Radio.Database)
	if err != nil {
		slog.Error("Failed to open database", "file", conf.Radio.Database, "error", err)
		os.Exit(1)
	}
	store := datastore.NewStore(db)
	resolver = radio.NewResolver(conf.Radio.StatusTimeout)

	// Create a discord session
	slog.Info("Starting discord session...")
	discord, err = discordgo.New("Bot " + conf.Discord.Token)
	if err != nil {
		slog.Error("Failed to create discord session", "error", err)
		os.Exit(1)
	}

	// Set sharding info
	discord.ShardID = conf.Discord.ShardID
	discord.ShardCount = conf.Discord.ShardCount
	discord.Identify.Intents = discordgo.IntentsGuilds |
		discordgo.IntentsGuildMessages |
		discordgo.IntentsGuildVoiceStates |
		discordgo.IntentsDirectMessages |
		discordgo.IntentMessageContent

	guilds = newSessionManager(store, defaultSetting(conf), func(guildID string) audioPlayer {
		return newDCAPlayer(discord, guildID)
	})

	// Start Webserver if a valid port is provided and if ClientID and ClientSecret are set
	if conf.WebEnabled() {
		slog.Info("Starting web server", "port", conf.Web.Port)
		go startWebServer(conf)
	} else {
		slog.Info("Required web server arguments missing or invalid. Skipping web server start.")
	}

	discord.AddHandler(onReady)
	discord.AddHandler(onMessageCreate)

	err = discord.Open()
	if err != nil {
		slog.Error("Failed to create discord websocket connection", "error", err)
		os.Exit(1)
	}

	// We're running!
	Banner(nil, conf.Radio.StationURL)
	slog.Info("eRadio is ready. Quit with CTRL-C.")

	if conf.DevMode {
		banner := new(bytes.Buffer)
		Banner(banner, conf.Radio.StationURL)
		notifyOwner("```I just started!\n" + banner.String() + "```")
	}

	// Wait for a signal to quit
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	<-c

	slog.Info("Shutting down.")
	guilds.shutdown()
	if err := discord.Close(); err != nil {
		slog.Warn("could not close discord session", "error", err)
	}
}
