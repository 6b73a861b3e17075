package config

import (
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

var logg *logrus.Logger

func init() {
	logg = logrus.New()
	logg.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	logg.SetOutput(os.Stdout)
	logg.SetLevel(logrus.InfoLevel)
}

// GetLogger returns the process-wide logger.
func GetLogger() *logrus.Logger {
	return logg
}

// ApplyLogLevel re-reads log.level after Init has run.
func ApplyLogLevel() {
	viper.SetDefault("log.level", "info")
	level, err := logrus.ParseLevel(viper.GetString("log.level"))
	if err != nil {
		logg.WithField("log.level", viper.GetString("log.level")).Warn("unknown log level, keeping info")
		return
	}
	logg.SetLevel(level)
}
