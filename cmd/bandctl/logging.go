package main

import (
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/srg/bandlink/pkg/config"
)

// configureLogger picks the log level from --log-level, then --verbose, then the
// log_level of an explicitly loaded config file. Without any of them the CLI stays
// quiet so that event output is not interleaved with logs.
func configureLogger(cmd *cobra.Command, cfg *config.Config, fromFile bool) (*logrus.Logger, error) {
	logLevel := logrus.PanicLevel

	levelFlag, _ := cmd.Flags().GetString("log-level")
	verbose, _ := cmd.Flags().GetBool("verbose")
	switch {
	case levelFlag != "":
		lvl, err := logrus.ParseLevel(levelFlag)
		if err != nil {
			return nil, fmt.Errorf("invalid log level: %s (must be trace, debug, info, warn, or error)", levelFlag)
		}
		logLevel = lvl
	case verbose:
		logLevel = logrus.DebugLevel
	case fromFile && cfg != nil:
		logLevel = cfg.Level()
	}

	logger := logrus.New()
	logger.SetLevel(logLevel)
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: time.RFC3339,
	})
	return logger, nil
}
