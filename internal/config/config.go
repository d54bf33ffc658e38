// Package config загружает настройки утилиты cellview.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Источники данных ячейки.
const (
	SourcePostgres = "postgres"
	SourceGraphQL  = "graphql"
)

// Config содержит настройки утилиты.
type Config struct {
	Source   string
	Database DatabaseConfig
	GraphQL  GraphQLConfig
	Query    QueryConfig
	Engine   EngineConfig
	Log      LogConfig
}

// DatabaseConfig содержит параметры подключения к PostgreSQL.
type DatabaseConfig struct {
	DSN string
}

// GraphQLConfig содержит параметры GraphQL-эндпоинта.
type GraphQLConfig struct {
	Endpoint string
	Token    string
}

// QueryConfig описывает запрос ячейки и его представление.
type QueryConfig struct {
	Name     string
	SQL      string
	Document string
	Field    string
	Caption  string
	Timeout  time.Duration
}

// EngineConfig задает размер пула движка.
type EngineConfig struct {
	Workers   int
	QueueSize int `mapstructure:"queue_size"`
}

// LogConfig задает уровень журналирования.
type LogConfig struct {
	Level string
}

// Load читает настройки из файла и окружения. Переменные окружения имеют префикс CELLVIEW_.
// Путь к файлу можно задать через CELLVIEW_CONFIG.
func Load() (Config, error) {
	v := viper.New()

	v.SetDefault("source", SourcePostgres)
	v.SetDefault("database.dsn", "postgres://localhost:5432/postgres")
	v.SetDefault("graphql.endpoint", "http://localhost:8080/graphql")
	v.SetDefault("graphql.token", "")
	v.SetDefault("query.name", "query")
	v.SetDefault("query.sql", "")
	v.SetDefault("query.document", "")
	v.SetDefault("query.field", "rows")
	v.SetDefault("query.caption", "")
	v.SetDefault("query.timeout", 30*time.Second)
	v.SetDefault("engine.workers", 2)
	v.SetDefault("engine.queue_size", 16)
	v.SetDefault("log.level", "info")

	v.SetConfigType("yaml")

	if path := os.Getenv("CELLVIEW_CONFIG"); path != "" {
		v.SetConfigFile(path)
	} else {
		v.AddConfigPath(".")
		v.SetConfigName("cellview")
	}

	v.SetEnvPrefix("CELLVIEW")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("не удалось прочитать файл настроек: %w", err)
		}
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return Config{}, fmt.Errorf("не удалось разобрать настройки: %w", err)
	}
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

// Validate проверяет согласованность настроек.
func (c Config) Validate() error {
	switch c.Source {
	case SourcePostgres:
		if c.Query.SQL == "" {
			return fmt.Errorf("не задан SQL-запрос (query.sql)")
		}
	case SourceGraphQL:
		if c.Query.Document == "" {
			return fmt.Errorf("не задан документ GraphQL (query.document)")
		}
	default:
		return fmt.Errorf("неизвестный источник данных '%s'", c.Source)
	}
	if c.Engine.Workers <= 0 || c.Engine.QueueSize <= 0 {
		return fmt.Errorf("размер пула и очереди должны быть положительными")
	}
	return nil
}

// SlogLevel возвращает уровень журналирования slog.
func (l LogConfig) SlogLevel() slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(l.Level)); err != nil {
		return slog.LevelInfo
	}
	return level
}
