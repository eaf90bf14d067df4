package core

import (
	"log"
	"net"
	"net/mail"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type (
	Config struct {
		AppName         string
		Build           string
		Env             string // DEV (local; default), TEST, QA, PROD
		Debug           bool
		TestMode        bool
		SecretKey       string
		WorkDir         string
		FrontendBaseURL string

		// QuietNotifications drops informational toasts, keeping outcomes only.
		QuietNotifications bool

		RollbarToken string

		Server   ServerConfig
		API      APIConfig
		Mail     MailConfig
		Database DatabaseConfig
		Log      LogConfig
	}

	ServerConfig struct {
		Host                   string
		DebugHost              string
		ReadTimeout            time.Duration
		WriteTimeout           time.Duration
		ShutdownTimeout        time.Duration
		SessionExpirationDelta time.Duration
		SessionCookieName      string
		SecureCookie           bool
	}

	// APIConfig points to the stages REST API, the only source of truth.
	APIConfig struct {
		BaseURL string
		Timeout time.Duration
	}

	MailConfig struct {
		Enabled          bool
		DefaultFromName  string
		DefaultFromEmail string
		SendgridAPIKey   string
	}

	// DatabaseConfig is only used to persist the notification history.
	DatabaseConfig struct {
		Enabled    bool
		Engine     string
		Host       string
		Port       string
		Name       string
		User       string
		Password   string
		DisableTLS bool
	}

	LogConfig struct {
		File       string
		MaxSizeMB  int
		MaxBackups int
		MaxAgeDays int
	}
)

func (c DatabaseConfig) Address() string {
	return net.JoinHostPort(c.Host, c.Port)
}

func (c MailConfig) From() mail.Address {
	return mail.Address{Name: c.DefaultFromName, Address: c.DefaultFromEmail}
}

// NewConfig reads the configuration from the environment, after loading `config/.env.<env>` if present.
func NewConfig() *Config {
	v := viper.New()

	// defaults
	v.SetTypeByDefaultValue(true)
	v.SetDefault("debug", true)
	v.SetDefault("appName", "EST Béni Mellal - Gestion des Stages")
	v.SetDefault("build", "develop")
	v.SetDefault("secretKey", "k2#1v9x@hb0!tq8e)fw3^zs7m&yp4(ra6dg5uc=jn")
	v.SetDefault("frontendBaseURL", "http://localhost:8000")
	v.SetDefault("quietNotifications", true)
	v.SetDefault("rollbarToken", "")

	v.SetDefault("server.host", ":8000")
	v.SetDefault("server.debugHost", ":4000")
	v.SetDefault("server.readTimeout", 5*time.Second)
	v.SetDefault("server.writeTimeout", 30*time.Second)
	v.SetDefault("server.shutdownTimeout", 5*time.Second)
	v.SetDefault("server.sessionExpirationDelta", 8*time.Hour)
	v.SetDefault("server.sessionCookieName", "portal_session")
	v.SetDefault("server.secureCookie", false)

	v.SetDefault("api.baseURL", "http://localhost:8081")
	v.SetDefault("api.timeout", 10*time.Second)

	v.SetDefault("mail.enabled", false)
	v.SetDefault("mail.defaultFromName", "Service des stages")
	v.SetDefault("mail.defaultFromEmail", "noreply@localhost")
	v.SetDefault("mail.sendgridAPIKey", "")

	v.SetDefault("database.enabled", false)
	v.SetDefault("database.engine", "postgres")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", "5432")
	v.SetDefault("database.name", "soutenances")
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "")
	v.SetDefault("database.disableTLS", true)

	v.SetDefault("log.file", "")
	v.SetDefault("log.maxSizeMB", 10)
	v.SetDefault("log.maxBackups", 3)
	v.SetDefault("log.maxAgeDays", 28)

	env := strings.ToUpper(os.Getenv("ENV"))
	switch env {
	case "":
		env = "DEV"
	case "TEST":
		v.SetDefault("testMode", true)
	}
	v.SetEnvPrefix(env)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// load .env if it exists (ignore if it does not)
	wd := Getwd()
	dotEnvPath := filepath.Join(wd, "config", ".env."+strings.ToLower(env))
	if _, err := os.Stat(dotEnvPath); err == nil {
		if err := godotenv.Load(dotEnvPath); err != nil {
			log.Fatalf("config.godotenv(%s): %v", dotEnvPath, err)
		}
	} else if !os.IsNotExist(err) {
		log.Fatalf("config.os.Stat(%s): %v", dotEnvPath, err)
	}
	v.AutomaticEnv()

	return &Config{
		AppName:            v.GetString("appName"),
		Build:              v.GetString("build"),
		Env:                env,
		Debug:              v.GetBool("debug"),
		TestMode:           v.GetBool("testMode"),
		SecretKey:          v.GetString("secretKey"),
		WorkDir:            wd,
		FrontendBaseURL:    strings.TrimRight(v.GetString("frontendBaseURL"), "/"),
		QuietNotifications: v.GetBool("quietNotifications"),
		RollbarToken:       v.GetString("rollbarToken"),
		Server: ServerConfig{
			Host:                   v.GetString("server.host"),
			DebugHost:              v.GetString("server.debugHost"),
			ReadTimeout:            v.GetDuration("server.readTimeout"),
			WriteTimeout:           v.GetDuration("server.writeTimeout"),
			ShutdownTimeout:        v.GetDuration("server.shutdownTimeout"),
			SessionExpirationDelta: v.GetDuration("server.sessionExpirationDelta"),
			SessionCookieName:      v.GetString("server.sessionCookieName"),
			SecureCookie:           v.GetBool("server.secureCookie"),
		},
		API: APIConfig{
			BaseURL: strings.TrimRight(v.GetString("api.baseURL"), "/"),
			Timeout: v.GetDuration("api.timeout"),
		},
		Mail: MailConfig{
			Enabled:          v.GetBool("mail.enabled"),
			DefaultFromName:  v.GetString("mail.defaultFromName"),
			DefaultFromEmail: v.GetString("mail.defaultFromEmail"),
			SendgridAPIKey:   v.GetString("mail.sendgridAPIKey"),
		},
		Database: DatabaseConfig{
			Enabled:    v.GetBool("database.enabled"),
			Engine:     v.GetString("database.engine"),
			Host:       v.GetString("database.host"),
			Port:       v.GetString("database.port"),
			Name:       v.GetString("database.name"),
			User:       v.GetString("database.user"),
			Password:   v.GetString("database.password"),
			DisableTLS: v.GetBool("database.disableTLS"),
		},
		Log: LogConfig{
			File:       v.GetString("log.file"),
			MaxSizeMB:  v.GetInt("log.maxSizeMB"),
			MaxBackups: v.GetInt("log.maxBackups"),
			MaxAgeDays: v.GetInt("log.maxAgeDays"),
		},
	}
}
