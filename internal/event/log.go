package event

import (
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"
)

// Log is the shared logger, every package aliases it as log.
var Log = logrus.StandardLogger()

func init() {
	Log.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})
}

// SetLevel parses and applies a log level name such as "debug" or "warn".
func SetLevel(name string) error {
	if name == "" {
		return nil
	}

	level, err := logrus.ParseLevel(strings.ToLower(name))

	if err != nil {
		return fmt.Errorf("log: %w", err)
	}

	Log.SetLevel(level)

	return nil
}
