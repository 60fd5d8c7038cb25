package main

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"dayplan/internal/hook"
	"dayplan/internal/logger"
	"dayplan/internal/scheduler"
)

const envConfigPrefix = "$env:"

type CalendarConfig struct {
	Location  string
	CachePath string
}

type DragConfig struct {
	SnapMinutes int
}

type Config struct {
	Logger   logger.Config
	Calendar CalendarConfig
	Drag     DragConfig
	Notifier scheduler.Config
	Hook     hook.Config
}

func NewConfig(configFile string) (Config, error) {
	config := Config{}
	viper.SetConfigFile(configFile)

	viper.SetDefault("logger.level", "WARN")
	viper.SetDefault("calendar.location", "./calendars")
	viper.SetDefault("calendar.cachePath", "./dayplan-cache.db")
	viper.SetDefault("drag.snapMinutes", 15)
	viper.SetDefault("notifier.enabled", true)
	viper.SetDefault("hook.delayMs", 2000)

	err := viper.ReadInConfig()
	if err != nil {
		return config, fmt.Errorf("failed to read config %q: %w", configFile, err)
	}
	keys := viper.AllKeys()
	for _, key := range keys {
		env := viper.GetString(key)
		if strings.HasPrefix(env, envConfigPrefix) {
			err := viper.BindEnv(key, env[len(envConfigPrefix):])
			if err != nil {
				return config, fmt.Errorf("failed to prepare config: %w", err)
			}
		}
	}

	err = viper.Unmarshal(&config)
	if err != nil {
		return config, fmt.Errorf("unable to decode into config struct: %w", err)
	}
	return config, nil
}
