package config

import (
	"errors"
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/gopxl/beep"
	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"

	"github.com/lixenwraith/crusher/audio"
	"github.com/lixenwraith/crusher/game"
	"github.com/lixenwraith/crusher/particle"
)

// Config is the full client and dev-server configuration
type Config struct {
	Backend   BackendConfig  `toml:"backend"`
	Audio     AudioConfig    `toml:"audio"`
	Haptic    HapticConfig   `toml:"haptic"`
	Particles ParticleConfig `toml:"particles"`
	Game      GameConfig     `toml:"game"`
	Arena     ArenaConfig    `toml:"arena"`
	Server    ServerConfig   `toml:"server"`
	Log       LogConfig      `toml:"log"`
}

type BackendConfig struct {
	URL       string `toml:"url"`
	TimeoutMs int    `toml:"timeout_ms"`
}

type AudioConfig struct {
	Enabled    bool    `toml:"enabled"`
	Volume     float64 `toml:"volume"` // 0..1
	SampleDir  string  `toml:"sample_dir"`
	SampleRate int     `toml:"sample_rate"`
	BufferMs   int     `toml:"buffer_ms"`
	Ambient    bool    `toml:"ambient"`
}

type HapticConfig struct {
	Enabled  bool    `toml:"enabled"`
	Strength float64 `toml:"strength"`
	Ambient  bool    `toml:"ambient"`
	Bell     bool    `toml:"bell"` // ring the terminal bell per pulse
}

type ParticleConfig struct {
	Gravity            float64 `toml:"gravity"`
	AirResistance      float64 `toml:"air_resistance"`
	BounceDeceleration float64 `toml:"bounce_deceleration"`
	LifeDecrement      float64 `toml:"life_decrement"`
	StepMs             int     `toml:"step_ms"`
	BaseCount          int     `toml:"base_count"`
	MaxParticles       int     `toml:"max_particles"`
}

type GameConfig struct {
	AutoMinMs      int `toml:"auto_min_ms"`
	AutoMaxMs      int `toml:"auto_max_ms"` // exclusive
	MilestoneEvery int `toml:"milestone_every"`
	RippleMs       int `toml:"ripple_ms"`
}

// ArenaConfig is the particle space and its mapping onto terminal cells
type ArenaConfig struct {
	Width      float64 `toml:"width"`
	Height     float64 `toml:"height"`
	CellWidth  int     `toml:"cell_width"`
	CellHeight int     `toml:"cell_height"`
}

type ServerConfig struct {
	Addr    string `toml:"addr"`
	Release bool   `toml:"release"`
}

type LogConfig struct {
	Debug     bool   `toml:"debug"`
	Dir       string `toml:"dir"`
	MaxSizeMB int    `toml:"max_size_mb"`
}

// Default returns the tuned defaults
func Default() Config {
	return Config{
		Backend: BackendConfig{URL: "http://localhost:8000", TimeoutMs: 15000},
		Audio: AudioConfig{
			Enabled:    true,
			Volume:     0.7,
			SampleDir:  "sounds",
			SampleRate: int(audio.DefaultSampleRate),
			BufferMs:   100,
			Ambient:    true,
		},
		Haptic: HapticConfig{Enabled: true, Strength: 1.0, Ambient: true, Bell: true},
		Particles: ParticleConfig{
			Gravity:            0.5,
			AirResistance:      0.98,
			BounceDeceleration: 0.7,
			LifeDecrement:      0.02,
			StepMs:             16,
			BaseCount:          15,
			MaxParticles:       2000,
		},
		Game: GameConfig{AutoMinMs: 3000, AutoMaxMs: 5000, MilestoneEvery: 10, RippleMs: 1000},
		Arena: ArenaConfig{Width: 800, Height: 600, CellWidth: 8, CellHeight: 16},
		Server: ServerConfig{Addr: ":8000"},
		Log:    LogConfig{Dir: "logs", MaxSizeMB: 10},
	}
}

// Load reads defaults, then the TOML file at path if non-empty, then env overrides
// envFiles are loaded with godotenv first; with none given a local .env is tried
// Existing process variables always win over file values
func Load(path string, envFiles ...string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read config: %w", err)
		}
		if err := toml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if len(envFiles) == 0 {
		// Missing .env is normal
		_ = godotenv.Load()
	} else if err := godotenv.Load(envFiles...); err != nil {
		return cfg, fmt.Errorf("load env: %w", err)
	}
	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// applyEnv overrides fields from CRUSHER_* variables, malformed values are ignored
func (c *Config) applyEnv() {
	c.Backend.URL = getEnv("CRUSHER_BACKEND_URL", c.Backend.URL)
	c.Audio.Enabled = getEnvBool("CRUSHER_AUDIO_ENABLED", c.Audio.Enabled)
	c.Audio.SampleDir = getEnv("CRUSHER_SAMPLE_DIR", c.Audio.SampleDir)
	if v, ok := lookupFloat("CRUSHER_MASTER_VOLUME"); ok {
		c.Audio.Volume = v / 100
	}
	c.Haptic.Enabled = getEnvBool("CRUSHER_VIBRATION_ENABLED", c.Haptic.Enabled)
	if v, ok := lookupFloat("CRUSHER_VIBRATION_STRENGTH"); ok {
		c.Haptic.Strength = v
	}
	c.Log.Debug = getEnvBool("CRUSHER_DEBUG", c.Log.Debug)
	c.Server.Addr = getEnv("CRUSHER_ADDR", c.Server.Addr)
}

// Validate clamps soft ranges and rejects unusable timing or geometry
func (c *Config) Validate() error {
	c.Audio.Volume = clamp(c.Audio.Volume, 0, 1)
	c.Haptic.Strength = clamp(c.Haptic.Strength, 0.1, 2.0)

	var errs []error
	if strings.TrimSpace(c.Backend.URL) == "" {
		errs = append(errs, errors.New("backend.url is empty"))
	}
	if c.Backend.TimeoutMs <= 0 {
		errs = append(errs, fmt.Errorf("backend.timeout_ms must be positive, got %d", c.Backend.TimeoutMs))
	}
	if c.Particles.StepMs <= 0 {
		errs = append(errs, fmt.Errorf("particles.step_ms must be positive, got %d", c.Particles.StepMs))
	}
	if c.Game.AutoMinMs <= 0 || c.Game.AutoMaxMs <= c.Game.AutoMinMs {
		errs = append(errs, fmt.Errorf("game auto window [%d, %d) is empty", c.Game.AutoMinMs, c.Game.AutoMaxMs))
	}
	if c.Arena.Width <= 0 || c.Arena.Height <= 0 {
		errs = append(errs, fmt.Errorf("arena %gx%g is empty", c.Arena.Width, c.Arena.Height))
	}
	if c.Arena.CellWidth <= 0 || c.Arena.CellHeight <= 0 {
		errs = append(errs, fmt.Errorf("arena cell %dx%d is empty", c.Arena.CellWidth, c.Arena.CellHeight))
	}
	if c.Audio.SampleRate <= 0 {
		errs = append(errs, fmt.Errorf("audio.sample_rate must be positive, got %d", c.Audio.SampleRate))
	}
	return errors.Join(errs...)
}

// ParticleSim maps the particle section onto the simulation config
func (c Config) ParticleSim() particle.Config {
	return particle.Config{
		Gravity:            c.Particles.Gravity,
		AirResistance:      c.Particles.AirResistance,
		BounceDeceleration: c.Particles.BounceDeceleration,
		LifeDecrement:      c.Particles.LifeDecrement,
		Width:              c.Arena.Width,
		Height:             c.Arena.Height,
		BaseCount:          c.Particles.BaseCount,
		MaxParticles:       c.Particles.MaxParticles,
	}
}

// StepInterval is the particle physics cadence
func (c Config) StepInterval() time.Duration {
	return time.Duration(c.Particles.StepMs) * time.Millisecond
}

// AudioEngine maps the audio section onto the engine config
func (c Config) AudioEngine() audio.Config {
	return audio.Config{
		Rate:    beep.SampleRate(c.Audio.SampleRate),
		Volume:  c.Audio.Volume,
		Enabled: c.Audio.Enabled,
	}
}

// AudioBuffer is the speaker buffer length
func (c Config) AudioBuffer() time.Duration {
	return time.Duration(c.Audio.BufferMs) * time.Millisecond
}

// GameOptions maps game and arena sections onto machine options
func (c Config) GameOptions() game.Options {
	return game.Options{
		ArenaWidth:     c.Arena.Width,
		ArenaHeight:    c.Arena.Height,
		AutoMin:        time.Duration(c.Game.AutoMinMs) * time.Millisecond,
		AutoMax:        time.Duration(c.Game.AutoMaxMs) * time.Millisecond,
		MilestoneEvery: c.Game.MilestoneEvery,
		RippleTTL:      time.Duration(c.Game.RippleMs) * time.Millisecond,
		RequestTimeout: c.RequestTimeout(),
	}
}

// RequestTimeout bounds each backend call
func (c Config) RequestTimeout() time.Duration {
	return time.Duration(c.Backend.TimeoutMs) * time.Millisecond
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func lookupFloat(key string) (float64, bool) {
	value := os.Getenv(key)
	if value == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

func clamp(v, lo, hi float64) float64 {
	if v < lo || math.IsNaN(v) {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
