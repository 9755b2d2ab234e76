package config

import (
	"log"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Telephony TelephonyConfig `mapstructure:"telephony"`
	Auth      AuthConfig      `mapstructure:"auth"`
	Users     UsersConfig     `mapstructure:"users"`
	Log       LogConfig       `mapstructure:"log"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
}

type ServerConfig struct {
	Port string `mapstructure:"port"`
	Mode string `mapstructure:"mode"`
}

type DatabaseConfig struct {
	Driver string `mapstructure:"driver"`
	DSN    string `mapstructure:"dsn"`
}

type TelephonyConfig struct {
	// Mode selects the transport backend: "simulated" or "real".
	Mode     string `mapstructure:"mode"`
	Identity string `mapstructure:"identity"`

	// RingTimeout is how long an unanswered incoming call rings before
	// it is auto-rejected and logged as missed.
	RingTimeout string `mapstructure:"ring_timeout"`
	// GraceDelay keeps an ended call visible before the slot is cleared.
	GraceDelay string `mapstructure:"grace_delay"`

	// Simulated transport timings.
	RingDelay    string `mapstructure:"ring_delay"`
	ConnectDelay string `mapstructure:"connect_delay"`
}

type AuthConfig struct {
	JWTSecret string `mapstructure:"jwt_secret"`
}

type UsersConfig struct {
	DefaultAdminPassword string `mapstructure:"default_admin_password"`
}

var AppConfig Config

func LoadConfig() {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")

	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := viper.ReadInConfig(); err != nil {
		log.Printf("Warning: Config file not found, using defaults. Error: %v", err)
	}

	if err := viper.Unmarshal(&AppConfig); err != nil {
		log.Fatalf("Unable to decode into struct, %v", err)
	}

	if AppConfig.Server.Port == "" {
		AppConfig.Server.Port = ":8080"
	}
	if AppConfig.Telephony.Mode == "" {
		AppConfig.Telephony.Mode = "simulated"
	}
	if AppConfig.Telephony.Identity == "" {
		AppConfig.Telephony.Identity = "+15550000000"
	}
	if AppConfig.Telephony.RingTimeout == "" {
		AppConfig.Telephony.RingTimeout = "30s"
	}
	if AppConfig.Telephony.GraceDelay == "" {
		AppConfig.Telephony.GraceDelay = "1s"
	}
	if AppConfig.Telephony.RingDelay == "" {
		AppConfig.Telephony.RingDelay = "1s"
	}
	if AppConfig.Telephony.ConnectDelay == "" {
		AppConfig.Telephony.ConnectDelay = "3s"
	}

	log.Println("Configuration loaded successfully")
}

// Duration parses a duration field, falling back when unset or invalid.
func Duration(value string, fallback time.Duration) time.Duration {
	if d, err := time.ParseDuration(value); err == nil && d > 0 {
		return d
	}
	return fallback
}
