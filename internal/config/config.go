package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Режимы начальной связи с мастером.
const (
	ModeDiscover = "discover" // ModeDiscover - ждать сканирования по UDP.
	ModeRegister = "register" // ModeRegister - регистрироваться по HTTP.
)

// Config структура конфигурации.
type Config struct {
	Logger    LogConf       // Logger - конфигурация регистратора.
	Agent     AgentConf     // Agent - описание контроллера.
	Disco     DiscoConf     // Disco - UDP рукопожатие.
	Register  RegisterConf  // Register - HTTP регистрация.
	Transport TransportConf // Transport - приём кадров.
	Sink      SinkConf      // Sink - вывод пикселей.
	ArtNet    ArtNetConf    // ArtNet - конфигурация Art-Net вывода.
	MQTT      MQTTConf      // MQTT - конфигурация MQTT клиента.
	MDNS      MDNSConf      // MDNS - объявление через mDNS.
}

// LogConf структура конфигурации.
type LogConf struct {
	Level   string `toml:"log-level"` // Level - уровень логирования.
	NoColor bool   `toml:"no-color"`  // NoColor - отключить цвета.
}

// AgentConf describes this controller to the master.
type AgentConf struct {
	Mode         string `toml:"mode"`         // Mode - discover или register.
	ControllerID string `toml:"controllerID"` // ControllerID - empty means generate one.
	Device       string `toml:"device"`       // Device - тип устройства для мастера.
	DiscoVersion int    `toml:"discoVersion"` // DiscoVersion - версия протокола.
	Address      string `toml:"address"`      // Address - empty means detect.
}

// DiscoConf структура конфигурации.
type DiscoConf struct {
	Port         int      `toml:"port"`          // Port - UDP порт рукопожатия.
	PollInterval Duration `toml:"poll-interval"` // PollInterval - период проверки отмены.
}

// RegisterConf структура конфигурации.
type RegisterConf struct {
	MasterHost string   `toml:"master-host"` // MasterHost - адрес мастера.
	Port       int      `toml:"port"`        // Port - HTTP порт мастера.
	Path       string   `toml:"path"`        // Path - путь регистрации.
	Interval   Duration `toml:"interval"`    // Interval - пауза между попытками.
	Timeout    Duration `toml:"timeout"`     // Timeout - таймаут одного запроса.
}

// URL returns the registration endpoint.
func (c RegisterConf) URL() string {
	return fmt.Sprintf("http://%s:%d%s", c.MasterHost, c.Port, c.Path)
}

// TransportConf структура конфигурации.
type TransportConf struct {
	Port          int      `toml:"port"`            // Port - UDP порт кадров.
	Ack           string   `toml:"ack"`             // Ack - ответ на каждый принятый кадр.
	MaxPacketSize int      `toml:"max-packet-size"` // MaxPacketSize - размер буфера датаграммы.
	PollInterval  Duration `toml:"poll-interval"`   // PollInterval - период проверки отмены.
}

// SinkConf структура конфигурации.
type SinkConf struct {
	Type       string `toml:"type"`       // Type - log, artnet или mqtt.
	Pixels     int    `toml:"pixels"`     // Pixels - длина ленты.
	Brightness uint8  `toml:"brightness"` // Brightness - 0-100.
	Alpha      string `toml:"alpha"`      // Alpha - weighted или fixed.
}

// ArtNetConf структура конфигурации.
type ArtNetConf struct {
	AddressRange string `toml:"address-range"` // AddressRange - сеть Art-Net в нотации CIDR.
	Universe     uint16 `toml:"universe"`      // Universe - первый universe ленты.
}

// MQTTConf структура конфигурации.
type MQTTConf struct {
	ClientID    string `toml:"clientID"`     // ClientID - имя клиента.
	Host        string `toml:"server"`       // Host - адрес MQTT сервера.
	Port        string `toml:"port"`         // Port - порт MQTT сервера.
	User        string `toml:"user"`         // User - логин для подключения к MQTT серверу.
	Password    string `toml:"password"`     // Password - пароль для подключения к MQTT серверу.
	Qos         byte   `toml:"qos"`          // Qos - качество обслуживания.
	TopicPrefix string `toml:"topic-prefix"` // TopicPrefix - префикс топиков.
	Status      bool   `toml:"status"`       // Status - публиковать статус агента.
}

// MDNSConf структура конфигурации.
type MDNSConf struct {
	Enabled bool   `toml:"enabled"` // Enabled - включить объявление.
	Service string `toml:"service"` // Service - тип сервиса.
	Domain  string `toml:"domain"`  // Domain - домен mDNS.
}

// Duration is a time.Duration read from a string such as "2s".
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

// Default returns the configuration used when nothing else is set.
func Default() Config {
	return Config{
		Logger: LogConf{Level: "info"},
		Agent: AgentConf{
			Mode:         ModeDiscover,
			Device:       "go",
			DiscoVersion: 1,
		},
		Disco: DiscoConf{
			Port:         12346,
			PollInterval: Duration{500 * time.Millisecond},
		},
		Register: RegisterConf{
			MasterHost: "127.0.0.1",
			Port:       8080,
			Path:       "/config",
			Interval:   Duration{2 * time.Second},
			Timeout:    Duration{5 * time.Second},
		},
		Transport: TransportConf{
			Port:          12345,
			Ack:           "Hello there!",
			MaxPacketSize: 4096,
			PollInterval:  Duration{500 * time.Millisecond},
		},
		Sink: SinkConf{
			Type:       "log",
			Pixels:     150,
			Brightness: 100,
			Alpha:      "weighted",
		},
		ArtNet: ArtNetConf{
			AddressRange: "192.168.6.0/24",
		},
		MQTT: MQTTConf{
			ClientID:    "discoagent",
			Port:        "1883",
			TopicPrefix: "disco",
		},
		MDNS: MDNSConf{
			Service: "_disco._udp",
			Domain:  "local.",
		},
	}
}

// Option изменяет конфигурацию после файла и окружения, до проверки.
type Option func(*Config)

// WithMode overrides the bootstrap mode unless mode is empty.
func WithMode(mode string) Option {
	return func(c *Config) {
		if mode != "" {
			c.Agent.Mode = mode
		}
	}
}

// NewConfig конструктор. Options are applied last, so they win over the file
// and the environment.
func NewConfig(path string, opts ...Option) (*Config, error) {
	// default values
	cfg := Default()
	if path != "" {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return &cfg, err
		}
	}

	// .env необязателен.
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return &cfg, fmt.Errorf("failed to load .env: %w", err)
	}
	cfg.applyEnv(os.LookupEnv)
	for _, opt := range opts {
		opt(&cfg)
	}

	return &cfg, cfg.Validate()
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) {
	set := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	set("DISCO_LOG_LEVEL", &c.Logger.Level)
	set("DISCO_MODE", &c.Agent.Mode)
	set("DISCO_CONTROLLER_ID", &c.Agent.ControllerID)
	set("DISCO_MASTER_HOST", &c.Register.MasterHost)
	set("DISCO_SINK", &c.Sink.Type)
}

// Validate checks values a typo could break.
func (c *Config) Validate() error {
	var errs []string
	switch c.Agent.Mode {
	case ModeDiscover, ModeRegister:
	default:
		errs = append(errs, fmt.Sprintf("unknown mode %q", c.Agent.Mode))
	}
	switch c.Sink.Type {
	case "log", "artnet", "mqtt":
	default:
		errs = append(errs, fmt.Sprintf("unknown sink %q", c.Sink.Type))
	}
	if c.Sink.Brightness > 100 {
		errs = append(errs, fmt.Sprintf("brightness %d out of range 0-100", c.Sink.Brightness))
	}
	if c.Sink.Pixels <= 0 {
		errs = append(errs, "pixels must be positive")
	}
	if c.Transport.MaxPacketSize < 12 {
		errs = append(errs, "max-packet-size must hold at least a frame header")
	}
	if c.Register.Interval.Duration <= 0 {
		errs = append(errs, "register interval must be positive")
	}
	if len(errs) > 0 {
		return errors.New("invalid configuration: " + strings.Join(errs, "; "))
	}
	return nil
}
