// Package setup registers prisma-miner as a stdio MCP server in a desktop
// client's configuration file.
package setup

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"
)

// ServerName is the key used under "mcpServers".
const ServerName = "prisma-miner"

const serversKey = "mcpServers"

// ServerEntry is one MCP server launch definition.
type ServerEntry struct {
	Command string            `json:"command"`
	Args    []string          `json:"args,omitempty"`
	Env     map[string]string `json:"env,omitempty"`
}

// ClientConfig is a desktop client configuration file. Keys other than
// "mcpServers" are kept as read.
type ClientConfig struct {
	Servers map[string]ServerEntry
	other   map[string]json.RawMessage
}

// Options controls Install.
type Options struct {
	// BinaryPath defaults to the running executable.
	BinaryPath string
	// ConfigFile, when set, is passed to the server as --config.
	ConfigFile string
	Env        map[string]string
}

// Status describes the registration found in a client configuration.
type Status struct {
	ConfigPath string      `json:"config_path"`
	Installed  bool        `json:"installed"`
	Entry      ServerEntry `json:"entry"`
	Issues     []string    `json:"issues,omitempty"`
}

// DefaultClientConfigPath returns the per-OS location of
// claude_desktop_config.json.
func DefaultClientConfigPath() (string, error) {
	var dir string

	switch runtime.GOOS {
	case "darwin":
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		dir = filepath.Join(home, "Library", "Application Support", "Claude")
	case "linux":
		if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
			dir = filepath.Join(xdg, "Claude")
			break
		}
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		dir = filepath.Join(home, ".config", "Claude")
	case "windows":
		appData := os.Getenv("APPDATA")
		if appData == "" {
			return "", fmt.Errorf("APPDATA environment variable not set")
		}
		dir = filepath.Join(appData, "Claude")
	default:
		return "", fmt.Errorf("unsupported operating system: %s", runtime.GOOS)
	}

	return filepath.Join(dir, "claude_desktop_config.json"), nil
}

// LoadClientConfig reads path. A missing file yields an empty config.
func LoadClientConfig(path string) (*ClientConfig, error) {
	cfg := &ClientConfig{
		Servers: make(map[string]ServerEntry),
		other:   make(map[string]json.RawMessage),
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read client config: %w", err)
	}
	if len(data) == 0 {
		return cfg, nil
	}

	if err := json.Unmarshal(data, &cfg.other); err != nil {
		return nil, fmt.Errorf("failed to parse client config: %w", err)
	}
	if raw, ok := cfg.other[serversKey]; ok {
		if err := json.Unmarshal(raw, &cfg.Servers); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", serversKey, err)
		}
		delete(cfg.other, serversKey)
	}
	if cfg.Servers == nil {
		cfg.Servers = make(map[string]ServerEntry)
	}
	return cfg, nil
}

// Save writes the configuration, creating the directory when needed.
func (c *ClientConfig) Save(path string) error {
	doc := make(map[string]interface{}, len(c.other)+1)
	for k, v := range c.other {
		doc[k] = v
	}
	doc[serversKey] = c.Servers

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal client config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0644); err != nil {
		return fmt.Errorf("failed to write client config: %w", err)
	}
	return nil
}

// Install adds or replaces the prisma-miner entry in the client config at
// path and returns it.
func Install(path string, opts Options) (ServerEntry, error) {
	binary := opts.BinaryPath
	if binary == "" {
		exe, err := os.Executable()
		if err != nil {
			return ServerEntry{}, fmt.Errorf("could not locate prisma-miner binary: %w", err)
		}
		binary = exe
	}
	binary, err := filepath.Abs(binary)
	if err != nil {
		return ServerEntry{}, fmt.Errorf("failed to resolve binary path: %w", err)
	}

	entry := ServerEntry{Command: binary, Args: []string{"mcp"}}
	if opts.ConfigFile != "" {
		abs, err := filepath.Abs(opts.ConfigFile)
		if err != nil {
			return ServerEntry{}, fmt.Errorf("failed to resolve config path: %w", err)
		}
		entry.Args = append(entry.Args, "--config", abs)
	}
	if len(opts.Env) > 0 {
		entry.Env = make(map[string]string, len(opts.Env))
		for k, v := range opts.Env {
			entry.Env[k] = v
		}
	}

	cfg, err := LoadClientConfig(path)
	if err != nil {
		return ServerEntry{}, err
	}
	cfg.Servers[ServerName] = entry
	if err := cfg.Save(path); err != nil {
		return ServerEntry{}, err
	}
	return entry, nil
}

// Uninstall removes the prisma-miner entry. It reports whether one existed.
func Uninstall(path string) (bool, error) {
	cfg, err := LoadClientConfig(path)
	if err != nil {
		return false, err
	}
	if _, ok := cfg.Servers[ServerName]; !ok {
		return false, nil
	}
	delete(cfg.Servers, ServerName)
	return true, cfg.Save(path)
}

// CheckStatus inspects the registration at path: the binary must exist and
// be executable, and a --config argument must name an existing file.
func CheckStatus(path string) (*Status, error) {
	cfg, err := LoadClientConfig(path)
	if err != nil {
		return nil, err
	}

	status := &Status{ConfigPath: path}
	entry, ok := cfg.Servers[ServerName]
	if !ok {
		status.Issues = append(status.Issues, "prisma-miner is not registered")
		return status, nil
	}
	status.Installed = true
	status.Entry = entry

	info, err := os.Stat(entry.Command)
	switch {
	case err != nil:
		status.Issues = append(status.Issues, fmt.Sprintf("server binary not found: %s", entry.Command))
	case runtime.GOOS != "windows" && info.Mode()&0111 == 0:
		status.Issues = append(status.Issues, fmt.Sprintf("server binary is not executable: %s", entry.Command))
	}

	for i, arg := range entry.Args {
		if arg == "--config" && i+1 < len(entry.Args) {
			if _, err := os.Stat(entry.Args[i+1]); err != nil {
				status.Issues = append(status.Issues, fmt.Sprintf("config file not found: %s", entry.Args[i+1]))
			}
		}
	}
	sort.Strings(status.Issues)
	return status, nil
}
