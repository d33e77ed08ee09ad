package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	GeneralParams   GeneralParams
	DBParams        DBParams
	RedisParams     RedisParams
	SchedulerParams SchedulerParams
}

type GeneralParams struct {
	Env         string
	SecretKey   string
	HTTPAddress string
}

type DBParams struct {
	Username string
	Password string
	Name     string
	Port     int
	Host     string
	Timeout  int
}

// RedisParams configures the optional cross-instance bridge. An empty
// address disables it; the server then runs single-node.
type RedisParams struct {
	Addr     string
	Password string
}

type SchedulerParams struct {
	TickSeconds int
}

// TickInterval returns the scheduled-delivery scan period, defaulting
// to 30 seconds.
func (s *SchedulerParams) TickInterval() time.Duration {
	if s.TickSeconds <= 0 {
		return 30 * time.Second
	}
	return time.Duration(s.TickSeconds) * time.Second
}

type ConfigManager struct {
	v      *viper.Viper
	config *Config
}

// NewConfigManager creates a new config manager that handles all viper
// config options and loads a config from yaml
func NewConfigManager(configPath string) (*ConfigManager, error) {
	v := viper.New()

	v.SetConfigFile(configPath)
	v.SetConfigType("yaml")

	v.AutomaticEnv()
	v.SetEnvPrefix("APP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	cm := &ConfigManager{v: v}
	cm.loadConfig()

	return cm, nil
}

// Extracting data from yaml file and loading into Config
func (cm *ConfigManager) loadConfig() {
	cm.config = &Config{
		GeneralParams: GeneralParams{
			Env:         cm.v.GetString("general_params.env"),
			SecretKey:   cm.v.GetString("general_params.secret_key"),
			HTTPAddress: cm.v.GetString("general_params.http_server_address"),
		},
		DBParams: DBParams{
			Username: cm.v.GetString("db_params.db_username"),
			Password: cm.v.GetString("db_params.db_password"),
			Name:     cm.v.GetString("db_params.db_name"),
			Port:     cm.v.GetInt("db_params.db_port"),
			Host:     cm.v.GetString("db_params.db_host"),
			Timeout:  cm.v.GetInt("db_params.db_timeout"),
		},
		RedisParams: RedisParams{
			Addr:     cm.v.GetString("redis_params.addr"),
			Password: cm.v.GetString("redis_params.password"),
		},
		SchedulerParams: SchedulerParams{
			TickSeconds: cm.v.GetInt("scheduler_params.tick_seconds"),
		},
	}
}

// Getting config instance
func (cm *ConfigManager) GetConfig() *Config {
	return cm.config
}

// Compiling a string to connect to the database
func (db *DBParams) GetDSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?connect_timeout=%d&sslmode=disable",
		db.Username,
		db.Password,
		db.Host,
		db.Port,
		db.Name,
		db.Timeout,
	)
}

func (c *Config) Validate() error {
	if c.GeneralParams.SecretKey == "" {
		return fmt.Errorf("parameter secret_key is required")
	}

	if c.GeneralParams.HTTPAddress == "" {
		return fmt.Errorf("parameter http_server_address is required")
	}

	switch c.GeneralParams.Env {
	case "dev", "prod", "test":
	default:
		return fmt.Errorf("env parameter is invalid: %s. try dev/prod/test instead", c.GeneralParams.Env)
	}

	if c.DBParams.Host == "" {
		return fmt.Errorf("db host is required")
	}
	if c.DBParams.Username == "" {
		return fmt.Errorf("db username is required")
	}
	if c.DBParams.Name == "" {
		return fmt.Errorf("db name is required")
	}
	if c.DBParams.Port <= 0 || c.DBParams.Port > 65535 {
		return fmt.Errorf("db port is invalid")
	}

	return nil
}
