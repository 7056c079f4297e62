package config

import (
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	HTTPAddr           string        `mapstructure:"HTTP_ADDR"`
	DBHost             string        `mapstructure:"DB_HOST"`
	DBPort             string        `mapstructure:"DB_PORT"`
	DBUser             string        `mapstructure:"DB_USER"`
	DBPassword         string        `mapstructure:"DB_PASSWORD"`
	DBName             string        `mapstructure:"DB_NAME"`
	RedisAddr          string        `mapstructure:"REDIS_ADDR"`
	AccessSecret       string        `mapstructure:"ACCESS_SECRET"`
	ChannelIdleTimeout time.Duration `mapstructure:"CHANNEL_IDLE_TIMEOUT"`
	Debug              bool          `mapstructure:"DEBUG"`
}

func LoadConfig(path string) (config Config, err error) {
	viper.AddConfigPath(path)
	viper.SetConfigName("app")
	viper.SetConfigType("env")

	viper.AutomaticEnv()

	// Bind each key explicitly so env vars are seen without a config file.
	viper.BindEnv("HTTP_ADDR")
	viper.BindEnv("DB_HOST")
	viper.BindEnv("DB_PORT")
	viper.BindEnv("DB_USER")
	viper.BindEnv("DB_PASSWORD")
	viper.BindEnv("DB_NAME")
	viper.BindEnv("REDIS_ADDR")
	viper.BindEnv("ACCESS_SECRET")
	viper.BindEnv("CHANNEL_IDLE_TIMEOUT")
	viper.BindEnv("DEBUG")

	viper.SetDefault("HTTP_ADDR", ":8080")
	viper.SetDefault("CHANNEL_IDLE_TIMEOUT", 5*time.Minute)

	err = viper.ReadInConfig()
	if err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return
		}
		// No config file is fine, env vars carry everything.
		err = nil
	}

	err = viper.Unmarshal(&config)
	return
}
