package log

import (
	"fmt"
	"io"
	"os"

	"github.com/jesseduffield/lazyssh/pkg/config"
	"github.com/jesseduffield/lazyssh/pkg/utils"
	"github.com/sirupsen/logrus"
)

// NewLogger returns a new logger. Logging is off unless --log (or
// DEBUG=TRUE) was given, because in server mode stdout belongs to the
// framed channel and the only safe sink is a file.
func NewLogger(config *config.AppConfig, logPath string) *logrus.Entry {
	var log *logrus.Logger
	if config.Log || os.Getenv("DEBUG") == "TRUE" {
		log = newFileLogger(logPath)
	} else {
		log = newDiscardLogger()
	}

	// highly recommended: tail -f sshwrapper.log | humanlog
	// https://github.com/aybabtme/humanlog
	log.Formatter = &logrus.JSONFormatter{}

	return log.WithFields(logrus.Fields{
		"version": config.Version,
		"server":  config.Server,
	})
}

func getLogLevel() logrus.Level {
	strLevel := os.Getenv("LOG_LEVEL")
	level, err := logrus.ParseLevel(strLevel)
	if err != nil {
		return logrus.DebugLevel
	}
	return level
}

func newFileLogger(logPath string) *logrus.Logger {
	log := logrus.New()
	log.SetLevel(getLogLevel())
	file, err := os.OpenFile(utils.ExpandPath(logPath), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o666)
	if err != nil {
		fmt.Fprintln(os.Stderr, "unable to log to file")
		return newDiscardLogger()
	}
	log.SetOutput(file)
	return log
}

func newDiscardLogger() *logrus.Logger {
	log := logrus.New()
	log.Out = io.Discard
	log.SetLevel(logrus.ErrorLevel)
	return log
}
