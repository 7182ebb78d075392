package config

import (
	"bytes"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"

	"syncarena/entity"
)

const (
	TransportWebSocket = "websocket"
	TransportQUIC      = "quic"
)

// Config 进程配置：YAML 文件覆盖 Default()，命令行再覆盖个别字段
type Config struct {
	Server ServerConfig `yaml:"server"`
	Client ClientConfig `yaml:"client"`
	Log    LogConfig    `yaml:"log"`
	Player PlayerConfig `yaml:"player"`
	World  WorldConfig  `yaml:"world"`
}

type ServerConfig struct {
	Listen    string `yaml:"listen"`
	Transport string `yaml:"transport"`
	// 管理端点（/metrics、/admin/config、/healthz），空则不启用
	Admin string `yaml:"admin"`

	TickInterval time.Duration `yaml:"tick_interval"`
	// 单次轮询最多补发的 tick 数
	CatchUpTicks int `yaml:"catch_up_ticks"`
	// 每个同步包的负载上限，0 不限
	MaxPayloadBytes int `yaml:"max_payload_bytes"`
	// 模拟不可靠通道丢包
	SimulateDropProb float64 `yaml:"simulate_drop_prob"`
	// 0 表示 int32 上限
	MaxEntityID int32 `yaml:"max_entity_id"`

	StorePath string `yaml:"store_path"`
}

type ClientConfig struct {
	Addr      string `yaml:"addr"`
	Transport string `yaml:"transport"`

	TickInterval  time.Duration `yaml:"tick_interval"`
	FrameInterval time.Duration `yaml:"frame_interval"`
	StatsInterval time.Duration `yaml:"stats_interval"`
}

type LogConfig struct {
	File       string `yaml:"file"`
	Level      string `yaml:"level"`
	Console    bool   `yaml:"console"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
}

type PlayerConfig struct {
	MovementSpeed       float32 `yaml:"movement_speed"`
	InteractionDistance float32 `yaml:"interaction_distance"`
	// 新角色背包里的初始物品
	StartingItems []int32 `yaml:"starting_items"`
}

type WorldConfig struct {
	Objects []entity.ObjectSpec `yaml:"objects"`
}

// Default 内置默认值，可直接运行
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Listen:       ":7777",
			Transport:    TransportWebSocket,
			Admin:        ":7778",
			TickInterval: 100 * time.Millisecond,
			CatchUpTicks: 1,
			StorePath:    "syncarena.db",
		},
		Client: ClientConfig{
			Addr:          "127.0.0.1:7777",
			Transport:     TransportWebSocket,
			TickInterval:  100 * time.Millisecond,
			FrameInterval: 16 * time.Millisecond,
			StatsInterval: 5 * time.Second,
		},
		Log: LogConfig{
			File:       "syncarena.log",
			Level:      "info",
			MaxSizeMB:  10,
			MaxBackups: 3,
			MaxAgeDays: 7,
		},
		Player: PlayerConfig{
			MovementSpeed:       entity.DefaultMovementSpeed,
			InteractionDistance: entity.DefaultInteractionDistance,
			StartingItems:       []int32{0, 1, 2},
		},
		World: WorldConfig{Objects: entity.DefaultLayout()},
	}
}

// Load 读取 YAML；path 为空时只返回默认值。未知字段视为错误。
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, cfg.Validate()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func validTransport(t string) bool {
	return t == TransportWebSocket || t == TransportQUIC
}

// Validate 检查取值范围与世界布局
func (c *Config) Validate() error {
	s := c.Server
	if !validTransport(s.Transport) {
		return fmt.Errorf("server.transport %q: must be %s or %s", s.Transport, TransportWebSocket, TransportQUIC)
	}
	if s.TickInterval <= 0 {
		return fmt.Errorf("server.tick_interval must be positive")
	}
	if s.CatchUpTicks < 1 {
		return fmt.Errorf("server.catch_up_ticks must be at least 1")
	}
	if s.MaxPayloadBytes < 0 {
		return fmt.Errorf("server.max_payload_bytes must not be negative")
	}
	if s.SimulateDropProb < 0 || s.SimulateDropProb > 1 {
		return fmt.Errorf("server.simulate_drop_prob must be within [0,1]")
	}
	if s.MaxEntityID < 0 {
		return fmt.Errorf("server.max_entity_id must not be negative")
	}

	cl := c.Client
	if !validTransport(cl.Transport) {
		return fmt.Errorf("client.transport %q: must be %s or %s", cl.Transport, TransportWebSocket, TransportQUIC)
	}
	if cl.TickInterval <= 0 || cl.FrameInterval <= 0 || cl.StatsInterval <= 0 {
		return fmt.Errorf("client intervals must be positive")
	}

	if _, err := zapcore.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("log.level: %w", err)
	}
	if c.Player.MovementSpeed <= 0 {
		return fmt.Errorf("player.movement_speed must be positive")
	}
	if c.Player.InteractionDistance < 0 {
		return fmt.Errorf("player.interaction_distance must not be negative")
	}
	if _, err := entity.BuildWorld(c.World.Objects); err != nil {
		return fmt.Errorf("world: %w", err)
	}
	return nil
}
