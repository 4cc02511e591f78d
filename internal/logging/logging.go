package logging

import (
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

// New builds the process logger. Production environments log JSON, everything
// else gets the text formatter. Unknown levels fall back to info.
func New(level, env string) *logrus.Logger {
	return NewWithOutput(os.Stdout, level, env)
}

// NewWithOutput is New writing to w.
func NewWithOutput(w io.Writer, level, env string) *logrus.Logger {
	log := logrus.New()
	log.SetOutput(w)

	lvl, err := logrus.ParseLevel(strings.TrimSpace(level))
	if err != nil {
		lvl = logrus.InfoLevel
	}
	log.SetLevel(lvl)

	switch strings.ToLower(env) {
	case "production", "prod":
		log.SetFormatter(&logrus.JSONFormatter{})
	default:
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	return log
}
