package eradio

import (
	"io"
	"log/slog"
	"sync"

	"github.com/bwmarrin/discordgo"
	"github.com/jonas747/dca"
	"github.com/pkg/errors"
)

// audioPlayer streams a station into one guild's voice channel.
type audioPlayer interface {
	Join(channelID string) error
	Leave() error
	Connected() bool
	// Play starts streaming url at volume percent. done is called once from
	// another goroutine when the stream ends, with a nil error on a clean end.
	Play(url string, volume float64, done func(error)) error
	Stop()
}

var errNotConnected = errors.New("not connected to a voice channel")

// dcaVolume maps a 0..100 percentage onto dca's scale where 256 is unchanged.
func dcaVolume(percent float64) int {
	if percent < 0 {
		percent = 0
	}
	return int(percent*256/100 + 0.5)
}

func encodeOptions(volume float64) *dca.EncodeOptions {
	opts := *dca.StdEncodeOptions
	opts.RawOutput = true
	opts.Bitrate = 128
	opts.Application = dca.AudioApplicationAudio
	opts.Volume = dcaVolume(volume)
	return &opts
}

// dcaPlayer encodes the station with ffmpeg through dca and sends the opus
// frames to the voice connection.
type dcaPlayer struct {
	session *discordgo.Session
	guildID string

	mu      sync.Mutex
	vc      *discordgo.VoiceConnection
	encoder *dca.EncodeSession
}

func newDCAPlayer(s *discordgo.Session, guildID string) audioPlayer {
	return &dcaPlayer{session: s, guildID: guildID}
}

func (p *dcaPlayer) Join(channelID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.vc != nil {
		if p.vc.ChannelID == channelID {
			return nil
		}
		if err := p.vc.ChangeChannel(channelID, false, true); err != nil {
			return errors.Wrap(err, "could not change voice channel")
		}
		return nil
	}

	vc, err := p.session.ChannelVoiceJoin(p.guildID, channelID, false, true)
	if err != nil {
		return errors.Wrap(err, "could not join voice channel")
	}
	p.vc = vc
	return nil
}

func (p *dcaPlayer) Leave() error {
	p.stop()

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.vc == nil {
		return nil
	}
	err := p.vc.Disconnect()
	p.vc = nil
	return err
}

func (p *dcaPlayer) Connected() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.vc != nil
}

func (p *dcaPlayer) Play(url string, volume float64, done func(error)) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.vc == nil {
		return errNotConnected
	}
	if p.encoder != nil {
		p.encoder.Stop() // nolint:errcheck
		p.encoder = nil
	}

	encoder, err := dca.EncodeFile(url, encodeOptions(volume))
	if err != nil {
		return errors.Wrap(err, "could not start encoder")
	}
	p.encoder = encoder

	vc := p.vc
	if err := vc.Speaking(true); err != nil {
		slog.Warn("error setting speaking to true", "guild", p.guildID, "error", err)
	}

	finished := make(chan error, 1)
	dca.NewStream(encoder, vc, finished)

	go func() {
		err := <-finished

		p.settle(encoder, vc)
		encoder.Cleanup()

		if err == io.EOF {
			err = nil
		}
		if err == nil {
			if msg := encoder.FFMPEGMessages(); msg != "" {
				slog.Debug("ffmpeg finished", "guild", p.guildID, "output", msg)
			}
		}
		done(err)
	}()
	return nil
}

type speaker interface {
	Speaking(b bool) error
}

// settle retires a finished encoder. Speaking is only cleared when no newer
// stream took over, and under the lock so it cannot follow a new stream's
// Speaking(true).
func (p *dcaPlayer) settle(encoder *dca.EncodeSession, vc speaker) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.encoder == encoder {
		p.encoder = nil
	}
	if p.encoder != nil {
		return
	}
	if err := vc.Speaking(false); err != nil {
		slog.Debug("error setting speaking to false", "guild", p.guildID, "error", err)
	}
}

func (p *dcaPlayer) Stop() {
	p.stop()
}

func (p *dcaPlayer) stop() {
	p.mu.Lock()
	encoder := p.encoder
	p.encoder = nil
	p.mu.Unlock()

	if encoder == nil {
		return
	}
	if err := encoder.Stop(); err != nil {
		slog.Debug("could not stop encoder", "guild", p.guildID, "error", err)
	}
}
