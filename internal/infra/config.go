package infra

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config — корневая структура конфигурации консоли.
type Config struct {
	API      APIConfig      `mapstructure:"api"`
	Realtime RealtimeConfig `mapstructure:"realtime"`
	Backstop BackstopConfig `mapstructure:"backstop"`
	Server   ServerConfig   `mapstructure:"server"`
	Redis    RedisConfig    `mapstructure:"redis"`
	History  HistoryConfig  `mapstructure:"history"`
	Logger   LoggerConfig   `mapstructure:"logger"`
}

// APIConfig описывает REST-поверхность системы записи (Control Tower backend).
type APIConfig struct {
	BaseURL string        `mapstructure:"base_url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// RealtimeConfig — настройки постоянного WebSocket-канала.
// URL пустой — выводим его из api.base_url (https -> wss, http -> ws).
type RealtimeConfig struct {
	URL            string        `mapstructure:"url"`
	Path           string        `mapstructure:"path"`
	ReconnectDelay time.Duration `mapstructure:"reconnect_delay"`
}

// BackstopConfig — периодический полный pull, страхующий от потерянных push-кадров.
type BackstopConfig struct {
	Interval        time.Duration `mapstructure:"interval"`
	TimelineMinutes int           `mapstructure:"timeline_minutes"`
	ActivationDwell time.Duration `mapstructure:"activation_dwell"`
}

// ServerConfig описывает локальный HTTP-сервер, раздающий каноничное состояние.
type ServerConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// RedisConfig — опциональное зеркало состояния (Pub/Sub и Cache).
// Пустой Addr выключает зеркало целиком.
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// HistoryConfig задает емкость кольцевых буферов истории.
type HistoryConfig struct {
	Events   int `mapstructure:"events"`
	Timeline int `mapstructure:"timeline"`
}

// LoggerConfig настраивает поведение zap логгера.
type LoggerConfig struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error
	Format string `mapstructure:"format"` // json, console
}

// LoadConfig инициализирует конфигурацию, объединяя значения из файла и ENV.
func LoadConfig() (*Config, error) {
	v := viper.New()

	// 1. Настройка поиска файла
	v.SetConfigName("config")    // имя файла без расширения
	v.SetConfigType("yaml")      // формат
	v.AddConfigPath(".")         // ищем в корне
	v.AddConfigPath("./configs") // и в папке с конфигами

	// 2. Настройка переменных окружения (ENV)
	// Позволяет перекрывать конфиг: API_BASE_URL перекроет api.base_url
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// 3. Установка дефолтных значений
	setDefaults(v)

	// 4. Чтение файла
	if err := v.ReadInConfig(); err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if !errors.As(err, &configFileNotFoundError) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Если файла нет — работаем на ENV и дефолтах
	}

	// 5. Маппинг в структуру
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode into struct: %w", err)
	}

	if cfg.API.BaseURL == "" {
		return nil, errors.New("api.base_url is required")
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("api.base_url", "http://localhost:8000")
	v.SetDefault("api.timeout", 10*time.Second)
	v.SetDefault("realtime.path", "/ws/realtime")
	v.SetDefault("realtime.reconnect_delay", 3*time.Second)
	v.SetDefault("backstop.interval", 5*time.Second)
	v.SetDefault("backstop.timeline_minutes", 30)
	v.SetDefault("backstop.activation_dwell", 3*time.Second)
	v.SetDefault("server.port", 8090)
	v.SetDefault("server.read_timeout", 5*time.Second)
	v.SetDefault("server.write_timeout", 10*time.Second)
	v.SetDefault("history.events", 50)
	v.SetDefault("history.timeline", 100)
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "json")
}

// RealtimeEndpoint выводит адрес WebSocket-канала. Явный realtime.url всегда
// в приоритете; иначе схема наследуется от того, как опубликован сам бэкенд —
// https отдает wss, http отдает ws.
func (c *Config) RealtimeEndpoint() string {
	if c.Realtime.URL != "" {
		return c.Realtime.URL
	}
	base := c.API.BaseURL
	switch {
	case strings.HasPrefix(base, "https://"):
		base = "wss://" + strings.TrimPrefix(base, "https://")
	case strings.HasPrefix(base, "http://"):
		base = "ws://" + strings.TrimPrefix(base, "http://")
	}
	return strings.TrimRight(base, "/") + c.Realtime.Path
}
