package main

import (
	"fmt"
	"log"
	"os"
	"runtime"
	"runtime/debug"

	"github.com/go-errors/errors"
	"github.com/integrii/flaggy"
	"github.com/jesseduffield/lazyssh/pkg/app"
	"github.com/jesseduffield/lazyssh/pkg/config"
	"github.com/jesseduffield/lazyssh/pkg/utils"
	"github.com/samber/lo"
)

const DEFAULT_VERSION = "unversioned"

var (
	commit      string
	version     = DEFAULT_VERSION
	date        string
	buildSource = "unknown"

	hostNameFlag     = ""
	serverFlag       = false
	updateServerFlag = false
	logFlag          = false
)

func main() {
	updateBuildInfo()

	info := fmt.Sprintf(
		"%s\nDate: %s\nBuildSource: %s\nCommit: %s\nOS: %s\nArch: %s",
		version,
		date,
		buildSource,
		commit,
		runtime.GOOS,
		runtime.GOARCH,
	)

	flaggy.SetName("lazyssh")
	flaggy.SetDescription("An ssh session that still feels like ssh, plus in-band file transfer commands")
	flaggy.DefaultParser.AdditionalHelpPrepend = "https://github.com/jesseduffield/lazyssh"

	flaggy.String(&hostNameFlag, "H", "host-name", "Remote host to connect to (user@host); can also be set as host_name in ~/.sshwrapper.config")
	flaggy.Bool(&serverFlag, "s", "server", "Run the server end (this is what the client starts on the remote host)")
	flaggy.Bool(&updateServerFlag, "u", "update-server", "Reinstall the server on the remote host before connecting")
	flaggy.Bool(&logFlag, "l", "log", "Write a log file")
	flaggy.SetVersion(info)

	flaggy.Parse()

	hostName := hostNameFlag
	if !serverFlag {
		hostConfig := map[string]string{}
		if err := config.LoadHostConfig(config.DefaultHostConfigPath, hostConfig); err != nil {
			log.Fatal(err.Error())
		}
		if hostName == "" {
			hostName = hostConfig[config.HostConfigKeyHostName]
		}
		if hostName == "" {
			fmt.Fprintln(os.Stderr, "please set host_name in argument or ~/.sshwrapper.config.")
			os.Exit(1)
		}
	}

	appConfig, err := config.NewAppConfig("lazyssh", version, hostName, serverFlag, updateServerFlag, logFlag)
	if err != nil {
		log.Fatal(err.Error())
	}

	app, err := app.NewApp(appConfig)
	if err == nil {
		err = app.Run()
	}
	app.Close()

	if err != nil {
		if errMessage, known := app.KnownError(err); known {
			log.Println(errMessage)
			os.Exit(0)
		}

		newErr := errors.Wrap(err, 0)
		stackTrace := newErr.ErrorStack()
		app.Log.Error(stackTrace)

		log.Fatalf("%s", stackTrace)
	}
}

func updateBuildInfo() {
	if version == DEFAULT_VERSION {
		if buildInfo, ok := debug.ReadBuildInfo(); ok {
			revision, ok := lo.Find(buildInfo.Settings, func(setting debug.BuildSetting) bool {
				return setting.Key == "vcs.revision"
			})
			if ok {
				commit = revision.Value
				// if lazyssh was built from source we'll show the version as the
				// abbreviated commit hash
				version = utils.SafeTruncate(revision.Value, 7)
			}

			// if version hasn't been set we assume that neither has the date
			time, ok := lo.Find(buildInfo.Settings, func(setting debug.BuildSetting) bool {
				return setting.Key == "vcs.time"
			})
			if ok {
				date = time.Value
			}
		}
	}
}
