package config

import (
	"log"

	"github.com/spf13/viper"
)

// Mail holds the SMTP relay settings used for OTP and alert email.
type Mail struct {
	Host     string
	Port     int
	Sender   string
	Password string
}

// JWT holds the token signing settings.
type JWT struct {
	SecretKey     string
	Issuer        string
	ExpiryMinutes int
}

type Config struct {
	Mail Mail
	JWT  JWT
}

// Load reads the mail and JWT sections and aborts startup when any
// required key is absent. Missing configuration is a deployment
// mistake, not a runtime condition to limp along with.
func Load() *Config {
	required := []string{
		"mail.host",
		"mail.port",
		"mail.sender",
		"mail.password",
		"jwt.secret_key",
		"jwt.issuer",
		"jwt.expiry_minutes",
	}
	for _, key := range required {
		if !viper.IsSet(key) || viper.GetString(key) == "" {
			log.Fatalf("Missing required configuration: %s", key)
		}
	}

	return &Config{
		Mail: Mail{
			Host:     viper.GetString("mail.host"),
			Port:     viper.GetInt("mail.port"),
			Sender:   viper.GetString("mail.sender"),
			Password: viper.GetString("mail.password"),
		},
		JWT: JWT{
			SecretKey:     viper.GetString("jwt.secret_key"),
			Issuer:        viper.GetString("jwt.issuer"),
			ExpiryMinutes: viper.GetInt("jwt.expiry_minutes"),
		},
	}
}
