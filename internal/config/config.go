package config

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/sethvargo/go-envconfig"
	log "github.com/sirupsen/logrus"
)

type (
	Config struct {
		TelegramAPIToken string        `env:"TOKEN,required"`
		AdminIDs         []int64       `env:"ADMIN_IDS"`
		DefaultLanguage  string        `env:"LANG,default=en"`
		EnabledHandlers  []string      `env:"HANDLERS,default=admin,membership"`
		LogLevel         int           `env:"LOG_LEVEL,default=2"`
		DotPath          string        `env:"DOT_PATH,default=~/.warden"`
		MetricsAddr      string        `env:"METRICS_ADDR,default=:2112"`
		GraceWindow      time.Duration `env:"GRACE_WINDOW,default=1h"`

		Broadcast Broadcast
	}

	Broadcast struct {
		// SendInterval is the pause between per-recipient sends; it is also
		// the cancellation observation granularity.
		SendInterval time.Duration `env:"BROADCAST_SEND_INTERVAL,default=100ms"`
	}
)

var (
	once         sync.Once
	globalConfig = &Config{}
	globalErr    error
)

func Load() (Config, error) {
	once.Do(func() {
		cfg := &Config{}
		envcfg := envconfig.Config{
			Lookuper: envconfig.PrefixLookuper("WD_", envconfig.OsLookuper()),
			Target:   cfg,
		}
		if err := envconfig.ProcessWith(context.Background(), &envcfg); err != nil {
			globalErr = fmt.Errorf("process env config: %w", err)
			return
		}
		home, err := os.UserHomeDir()
		if err != nil {
			globalErr = fmt.Errorf("get user home directory: %w", err)
			return
		}
		cfg.DotPath = strings.Replace(cfg.DotPath, "~", home, 1)
		log.Traceln("loaded config")
		globalConfig = cfg
	})
	return *globalConfig, globalErr
}

func Get() Config {
	cfg, err := Load()
	if err != nil {
		log.WithField("error", err.Error()).Error("cant load config")
	}
	return cfg
}
