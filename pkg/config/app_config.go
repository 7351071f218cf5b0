// Package config handles all the user-configuration. The ambient options
// live in a config.yml in the xdg config dir; connection settings come from
// the plain-text ~/.sshwrapper.config file so that they can be shared with
// other tooling (see host_config.go).
package config

import (
	"io"
	"os"
	"path/filepath"

	"github.com/OpenPeeDeeP/xdg"
	yaml "github.com/jesseduffield/yaml"
	"github.com/spkg/bom"
)

// UserConfig holds all of the user-configurable options
type UserConfig struct {
	// Shell is the program started under the server's pty
	Shell string `yaml:"shell,omitempty"`

	// SSHBinary is the local ssh client we tunnel through
	SSHBinary string `yaml:"sshBinary,omitempty"`

	// PromptDetection picks how we decide a remote command has finished.
	// "marker" appends an echo marker after every command; "regex" watches
	// the output stream for a shell prompt. marker is the more reliable of
	// the two but regex survives commands that swallow their own input,
	// like vi.
	PromptDetection string `yaml:"promptDetection,omitempty"`

	// ServerInstallDir is where the bootstrap command installs the server
	// on the remote host
	ServerInstallDir string `yaml:"serverInstallDir,omitempty"`

	// ServerRepo is cloned into ServerInstallDir when --update-server is given
	ServerRepo string `yaml:"serverRepo,omitempty"`
}

// PromptDetection values
const (
	PromptDetectionMarker = "marker"
	PromptDetectionRegex  = "regex"
)

// GetDefaultConfig returns the application default configuration
func GetDefaultConfig() UserConfig {
	return UserConfig{
		Shell:            "/bin/bash",
		SSHBinary:        "ssh",
		PromptDetection:  PromptDetectionMarker,
		ServerInstallDir: ".ssh_wrapper",
		ServerRepo:       "https://github.com/jesseduffield/lazyssh",
	}
}

// AppConfig contains the base configuration fields required for lazyssh.
type AppConfig struct {
	Debug        bool   `long:"debug" env:"DEBUG" default:"false"`
	Version      string `long:"version" env:"VERSION" default:"unversioned"`
	Name         string `long:"name" env:"NAME" default:"lazyssh"`
	HostName     string
	Server       bool
	UpdateServer bool
	Log          bool
	UserConfig   *UserConfig
	ConfigDir    string
}

// NewAppConfig makes a new app config
func NewAppConfig(name, version string, hostName string, server, updateServer, logFlag bool) (*AppConfig, error) {
	configDir, err := findOrCreateConfigDir(name)
	if err != nil {
		return nil, err
	}

	userConfig, err := loadUserConfigWithDefaults(configDir)
	if err != nil {
		return nil, err
	}

	appConfig := &AppConfig{
		Name:         name,
		Version:      version,
		Debug:        os.Getenv("DEBUG") == "TRUE",
		HostName:     hostName,
		Server:       server,
		UpdateServer: updateServer,
		Log:          logFlag,
		UserConfig:   userConfig,
		ConfigDir:    configDir,
	}

	return appConfig, nil
}

func configDir(projectName string) string {
	envConfigDir := os.Getenv("CONFIG_DIR")
	if envConfigDir != "" {
		return envConfigDir
	}
	configDirs := xdg.New("jesseduffield", projectName)
	return configDirs.ConfigHome()
}

func findOrCreateConfigDir(projectName string) (string, error) {
	folder := configDir(projectName)

	err := os.MkdirAll(folder, 0o755)
	if err != nil {
		return "", err
	}

	return folder, nil
}

func loadUserConfigWithDefaults(configDir string) (*UserConfig, error) {
	config := GetDefaultConfig()

	return loadUserConfig(configDir, &config)
}

func loadUserConfig(configDir string, base *UserConfig) (*UserConfig, error) {
	fileName := filepath.Join(configDir, "config.yml")

	if _, err := os.Stat(fileName); err != nil {
		if os.IsNotExist(err) {
			file, err := os.Create(fileName)
			if err != nil {
				return nil, err
			}
			file.Close()
		} else {
			return nil, err
		}
	}

	file, err := os.Open(fileName)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	// strip a byte-order mark some editors put at the top of the file
	if err := yaml.NewDecoder(bom.NewReader(file)).Decode(base); err != nil && err != io.EOF {
		return nil, err
	}

	return base, nil
}

// ConfigFilename returns the filename of the current config file
func (c *AppConfig) ConfigFilename() string {
	return filepath.Join(c.ConfigDir, "config.yml")
}
