package config

import (
	"os"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"sigs.k8s.io/yaml"

	"github.com/teambrains/teambrains-backend/pkg/logutils"
)

type Config struct {
	// Port Settings
	Host       string `json:"host"`       // The domain name of the server.
	ServerAddr string `json:"serverAddr"` // The address the server endpoint binds to.

	Auth struct {
		AccessTokenSecret      string `json:"accessTokenSecret"`
		AccessTokenExpiryHour  int    `json:"accessTokenExpiryHour"`
		RefreshTokenExpiryHour int    `json:"refreshTokenExpiryHour"`
	} `json:"auth"`

	Postgres struct {
		Host     string `json:"host"`
		Port     string `json:"port"`
		DBName   string `json:"dbname"`
		User     string `json:"user"`
		Password string `json:"password"`
		SSLMode  string `json:"sslmode"`
		TimeZone string `json:"TimeZone"`
	} `json:"postgres"`

	SMTP struct {
		Host     string `json:"host"`
		Port     int    `json:"port"`
		User     string `json:"user"`
		Password string `json:"password"`
		From     string `json:"from"`
	} `json:"smtp"`

	Workflow struct {
		// RejectedCompletion is the percentage a fully completed task
		// falls back to when a reviewer rejects it. Defaults to 90.
		RejectedCompletion int `json:"rejectedCompletion"`
	} `json:"workflow"`

	Maintenance struct {
		// Cron spec for the soft-delete pruning job; empty disables it.
		PruneSpec string `json:"pruneSpec"`
		// Rows soft-deleted longer than this many days ago get purged.
		PruneAfterDays int `json:"pruneAfterDays"`
	} `json:"maintenance"`
}

var (
	once   sync.Once
	config *Config
)

func GetConfig() *Config {
	once.Do(func() {
		config = initConfig()
	})
	return config
}

func IsDebugMode() bool {
	return gin.Mode() == gin.DebugMode
}

// initConfig reads the configuration file. In debug mode a local .env
// and ./etc/debug-config.yaml are used; in release mode the config is
// mounted at /etc/config/config.yaml.
func initConfig() *Config {
	config := &Config{}
	var configPath string
	if IsDebugMode() {
		_ = godotenv.Load()
		if os.Getenv("TB_DEBUG_CONFIG_PATH") != "" {
			configPath = os.Getenv("TB_DEBUG_CONFIG_PATH")
		} else {
			configPath = "./etc/debug-config.yaml"
		}
	} else {
		configPath = "/etc/config/config.yaml"
	}
	logutils.Log.Info("config path: ", configPath)

	if err := readConfig(configPath, config); err != nil {
		logutils.Log.Error("init config: ", err)
		panic(err)
	}

	if config.Workflow.RejectedCompletion == 0 {
		config.Workflow.RejectedCompletion = 90
	}
	if config.Auth.AccessTokenExpiryHour == 0 {
		config.Auth.AccessTokenExpiryHour = 1
	}
	if config.Auth.RefreshTokenExpiryHour == 0 {
		config.Auth.RefreshTokenExpiryHour = 168
	}
	if config.Maintenance.PruneAfterDays == 0 {
		config.Maintenance.PruneAfterDays = 30
	}
	return config
}

func readConfig(filePath string, config *Config) error {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, config)
}
