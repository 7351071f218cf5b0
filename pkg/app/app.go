package app

import (
	"io"
	"os"
	"strings"

	"github.com/jesseduffield/lazyssh/pkg/client"
	"github.com/jesseduffield/lazyssh/pkg/commands"
	"github.com/jesseduffield/lazyssh/pkg/config"
	"github.com/jesseduffield/lazyssh/pkg/i18n"
	"github.com/jesseduffield/lazyssh/pkg/log"
	"github.com/jesseduffield/lazyssh/pkg/server"
	"github.com/jesseduffield/lazyssh/pkg/utils"
	"github.com/sirupsen/logrus"
)

// client and server log to different files because in server mode the
// working directory is whatever ssh landed us in
const (
	clientLogPath = "./sshwrapper.log"
	serverLogPath = "~/ssh2.log"
)

// App struct
type App struct {
	closers []io.Closer

	Config    *config.AppConfig
	Log       *logrus.Entry
	OSCommand *commands.OSCommand
	Tr        *i18n.TranslationSet
	Mediator  *client.Mediator
	Server    *server.Server
}

// NewApp bootstrap a new application
func NewApp(config *config.AppConfig) (*App, error) {
	app := &App{
		closers: []io.Closer{},
		Config:  config,
	}
	logPath := clientLogPath
	if config.Server {
		logPath = serverLogPath
	}
	app.Log = log.NewLogger(config, logPath)
	app.Tr = i18n.NewTranslationSet(app.Log)
	app.OSCommand = commands.NewOSCommand(app.Log, config)

	if config.Server {
		app.Server = server.NewServer(os.Stdin, os.Stdout, config, app.Log)
		return app, nil
	}

	app.Mediator = client.NewMediator(config, app.OSCommand, app.Tr, app.Log)
	return app, nil
}

// Run starts whichever role the flags asked for
func (app *App) Run() error {
	if app.Config.Server {
		return app.Server.Run()
	}
	if err := app.Mediator.Connect(); err != nil {
		return err
	}
	app.closers = append(app.closers, app.Mediator)
	return app.Mediator.Run()
}

// Close closes any resources
func (app *App) Close() error {
	return utils.CloseMany(app.closers)
}

type errorMapping struct {
	originalError string
	newError      string
}

// KnownError takes an error and tells us whether it's an error that we know about where we can print a nicely formatted version of it rather than panicking with a stack trace
func (app *App) KnownError(err error) (string, bool) {
	errorMessage := err.Error()

	mappings := []errorMapping{
		{
			originalError: "Could not resolve hostname",
			newError:      app.Tr.ConnectionFailed,
		},
		{
			originalError: "Connection refused",
			newError:      app.Tr.ConnectionFailed,
		},
	}

	for _, mapping := range mappings {
		if strings.Contains(errorMessage, mapping.originalError) {
			return mapping.newError, true
		}
	}

	return "", false
}
