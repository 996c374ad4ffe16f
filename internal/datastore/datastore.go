package datastore

import (
	"log/slog"
	"sync"

	"github.com/pkg/errors"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// GuildSetting is the persisted radio configuration of one guild.
type GuildSetting struct {
	gorm.Model
	GuildID      string  `gorm:"not null;unique"`
	StationURL   string  `gorm:"not null"`
	VoiceChannel string  `gorm:"not null"`
	Volume       float64 `gorm:"not null"`
	Muted        bool    `gorm:"not null;default:false"`
}

// Store represents the data store.
type Store struct {
	db *gorm.DB
	mu sync.Mutex
}

// InitDB opens the sqlite database at path and performs migrations.
func InitDB(path string) (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{})
	if err != nil {
		return nil, errors.Wrap(err, "failed to connect database")
	}

	if err := db.AutoMigrate(&GuildSetting{}); err != nil {
		return nil, errors.Wrap(err, "failed to migrate database")
	}

	slog.Debug("database ready", "path", path)
	return db, nil
}

// NewStore creates a new Store instance.
func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

// EnsureGuildSetting returns the settings of guildID, creating them from
// defaults on first use.
func (s *Store) EnsureGuildSetting(guildID string, defaults GuildSetting) (*GuildSetting, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var setting GuildSetting
	result := s.db.Where("guild_id = ?", guildID).First(&setting)
	if result.Error == nil {
		return &setting, nil
	}
	if !errors.Is(result.Error, gorm.ErrRecordNotFound) {
		return nil, result.Error
	}

	setting = GuildSetting{
		GuildID:      guildID,
		StationURL:   defaults.StationURL,
		VoiceChannel: defaults.VoiceChannel,
		Volume:       defaults.Volume,
		Muted:        defaults.Muted,
	}
	if result := s.db.Create(&setting); result.Error != nil {
		return nil, result.Error
	}
	return &setting, nil
}

// GetGuildSetting retrieves the settings of a guild.
func (s *Store) GetGuildSetting(guildID string) (*GuildSetting, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var setting GuildSetting
	result := s.db.Where("guild_id = ?", guildID).First(&setting)
	if result.Error != nil {
		return nil, result.Error
	}
	return &setting, nil
}

// GetGuildSettings retrieves the settings of all guilds.
func (s *Store) GetGuildSettings() ([]GuildSetting, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var settings []GuildSetting
	result := s.db.Order("guild_id").Find(&settings)
	if result.Error != nil {
		return nil, result.Error
	}
	return settings, nil
}

// SetVolume stores the volume of a guild.
func (s *Store) SetVolume(guildID string, volume float64) error {
	return s.update(guildID, "volume", volume)
}

// SetMuted stores the mute flag of a guild.
func (s *Store) SetMuted(guildID string, muted bool) error {
	return s.update(guildID, "muted", muted)
}

// SetStationURL stores the station of a guild.
func (s *Store) SetStationURL(guildID string, stationURL string) error {
	return s.update(guildID, "station_url", stationURL)
}

func (s *Store) update(guildID string, column string, value interface{}) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	result := s.db.Model(&GuildSetting{}).Where("guild_id = ?", guildID).Update(column, value)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return errors.Wrapf(gorm.ErrRecordNotFound, "guild %s", guildID)
	}
	return nil
}
