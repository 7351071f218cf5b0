package config

import (
	"os"
	"strings"

	"github.com/jesseduffield/lazyssh/pkg/utils"
)

// DefaultHostConfigPath is where connection settings live
const DefaultHostConfigPath = "~/.sshwrapper.config"

// HostConfigKeyHostName is the only key we currently recognise
const HostConfigKeyHostName = "host_name"

// LoadHostConfig reads a plain `key = value` config file into config.
// Lines without exactly one '=' are ignored; keys and values are trimmed.
// A missing file is not an error, the map is just left alone.
func LoadHostConfig(path string, config map[string]string) error {
	content, err := os.ReadFile(utils.ExpandPath(path))
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	for _, line := range utils.SplitLines(string(content)) {
		items := strings.Split(strings.TrimSpace(line), "=")
		if len(items) != 2 {
			continue
		}
		config[strings.TrimSpace(items[0])] = strings.TrimSpace(items[1])
	}
	return nil
}
