package logging

import (
	"fmt"
	"io"
	"strings"

	"github.com/sirupsen/logrus"
)

// New builds a logger writing to out at the given level, as "text" or "json".
func New(out io.Writer, level, format string) (*logrus.Logger, error) {
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return nil, err
	}

	log := logrus.New()
	log.SetOutput(out)
	log.SetLevel(lvl)

	switch strings.ToLower(format) {
	case "", "text":
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	case "json":
		log.SetFormatter(&logrus.JSONFormatter{})
	default:
		return nil, fmt.Errorf("unknown log format %q", format)
	}
	return log, nil
}

// Setup configures the standard logger in place and returns it.
func Setup(level, format string) (*logrus.Logger, error) {
	configured, err := New(logrus.StandardLogger().Out, level, format)
	if err != nil {
		return nil, err
	}

	std := logrus.StandardLogger()
	std.SetLevel(configured.GetLevel())
	std.SetFormatter(configured.Formatter)
	return std, nil
}
