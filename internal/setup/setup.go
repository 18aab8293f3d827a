// Package setup registers the CVD risk MCP server with Claude Desktop.
package setup

import (
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"

	"github.com/cvd-risk-mcp-server/internal/config"
)

const (
	// ServerName is the mcpServers key the server is registered under.
	ServerName = "cvd-risk-calculator"
	// DataDirEnv is passed to the server when a data directory is chosen.
	DataDirEnv = "CVD_RISK_DATA_DIR"
)

// ClaudeDesktopConfig represents the Claude Desktop configuration file structure.
// Keys other than mcpServers are kept untouched.
type ClaudeDesktopConfig struct {
	MCPServers map[string]MCPServerConfig `json:"mcpServers"`
	Extra      map[string]json.RawMessage `json:"-"`
}

// MCPServerConfig represents a single MCP server configuration.
type MCPServerConfig struct {
	Command string            `json:"command"`
	Args    []string          `json:"args,omitempty"`
	Env     map[string]string `json:"env,omitempty"`
}

// Options contains options for the setup process.
type Options struct {
	ServerType string // "lite" or "full"
	BinaryPath string
	DataDir    string
	ConfigPath string // Overrides the platform Claude Desktop path
}

// GetClaudeDesktopConfigPath returns the path to Claude Desktop's config file.
func GetClaudeDesktopConfigPath() (string, error) {
	var configDir string

	switch runtime.GOOS {
	case "darwin":
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		configDir = filepath.Join(home, "Library", "Application Support", "Claude")
	case "linux":
		if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
			configDir = filepath.Join(xdg, "Claude")
			break
		}
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		configDir = filepath.Join(home, ".config", "Claude")
	case "windows":
		appData := os.Getenv("APPDATA")
		if appData == "" {
			return "", fmt.Errorf("APPDATA environment variable not set")
		}
		configDir = filepath.Join(appData, "Claude")
	default:
		return "", fmt.Errorf("unsupported operating system: %s", runtime.GOOS)
	}

	return filepath.Join(configDir, "claude_desktop_config.json"), nil
}

// LoadClaudeDesktopConfig loads the existing configuration. A missing file yields an
// empty configuration.
func LoadClaudeDesktopConfig(configPath string) (*ClaudeDesktopConfig, error) {
	cfg := &ClaudeDesktopConfig{
		MCPServers: make(map[string]MCPServerConfig),
		Extra:      make(map[string]json.RawMessage),
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := json.Unmarshal(data, &cfg.Extra); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	if raw, ok := cfg.Extra["mcpServers"]; ok {
		if err := json.Unmarshal(raw, &cfg.MCPServers); err != nil {
			return nil, fmt.Errorf("failed to parse mcpServers: %w", err)
		}
		delete(cfg.Extra, "mcpServers")
	}
	if cfg.MCPServers == nil {
		cfg.MCPServers = make(map[string]MCPServerConfig)
	}

	return cfg, nil
}

// SaveClaudeDesktopConfig writes the configuration, creating its directory.
func SaveClaudeDesktopConfig(configPath string, cfg *ClaudeDesktopConfig) error {
	if err := os.MkdirAll(filepath.Dir(configPath), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	out := make(map[string]any, len(cfg.Extra)+1)
	for k, v := range cfg.Extra {
		out[k] = v
	}
	out["mcpServers"] = cfg.MCPServers

	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// ConfigureClaudeDesktop adds or replaces the server entry.
func ConfigureClaudeDesktop(opts Options) error {
	configPath, err := resolveConfigPath(opts.ConfigPath)
	if err != nil {
		return err
	}

	cfg, err := LoadClaudeDesktopConfig(configPath)
	if err != nil {
		return err
	}

	binaryPath := opts.BinaryPath
	if binaryPath == "" {
		binaryPath, err = findBinary(opts.ServerType)
		if err != nil {
			return fmt.Errorf("could not find server binary: %w", err)
		}
	}

	entry := MCPServerConfig{Command: binaryPath}
	if opts.DataDir != "" {
		entry.Env = map[string]string{DataDirEnv: opts.DataDir}
	}
	cfg.MCPServers[ServerName] = entry

	return SaveClaudeDesktopConfig(configPath, cfg)
}

// Status represents the current setup status.
type Status struct {
	ConfigPath       string
	ServerConfigured bool
	ServerPath       string
	DataDir          string
	AuditDBPresent   bool
	Issues           []string
}

// GetStatus inspects the Claude Desktop entry and the data directory. An empty
// configPath uses the platform default.
func GetStatus(configPath string) *Status {
	status := &Status{Issues: []string{}}

	path, err := resolveConfigPath(configPath)
	if err != nil {
		status.Issues = append(status.Issues, fmt.Sprintf("Could not determine Claude Desktop config path: %v", err))
	} else {
		status.ConfigPath = path
		cfg, err := LoadClaudeDesktopConfig(path)
		if err != nil {
			status.Issues = append(status.Issues, fmt.Sprintf("Could not load Claude Desktop config: %v", err))
		} else if entry, ok := cfg.MCPServers[ServerName]; ok {
			status.ServerConfigured = true
			status.ServerPath = entry.Command
			status.DataDir = entry.Env[DataDirEnv]
			if _, err := os.Stat(entry.Command); os.IsNotExist(err) {
				status.Issues = append(status.Issues, fmt.Sprintf("Server binary not found at: %s", entry.Command))
			}
		}
	}

	if status.DataDir == "" {
		status.DataDir = config.DefaultLiteConfig().DataDir
	}
	lite := &config.LiteConfig{DataDir: status.DataDir}
	if _, err := os.Stat(lite.AuditDBPath()); err == nil {
		status.AuditDBPresent = true
	}

	return status
}

// Validate reports whether the server is registered with an executable binary.
// A missing data directory is not an issue; the server creates it on first run.
func Validate(configPath string) (bool, []string) {
	path, err := resolveConfigPath(configPath)
	if err != nil {
		return false, []string{fmt.Sprintf("Cannot find Claude Desktop config: %v", err)}
	}

	cfg, err := LoadClaudeDesktopConfig(path)
	if err != nil {
		return false, []string{fmt.Sprintf("Cannot load Claude Desktop config: %v", err)}
	}

	entry, ok := cfg.MCPServers[ServerName]
	if !ok {
		return false, []string{"CVD risk calculator not configured in Claude Desktop"}
	}

	var issues []string
	info, err := os.Stat(entry.Command)
	switch {
	case err != nil:
		issues = append(issues, fmt.Sprintf("Server binary not found: %s", entry.Command))
	case info.IsDir():
		issues = append(issues, fmt.Sprintf("Server binary is a directory: %s", entry.Command))
	case runtime.GOOS != "windows" && info.Mode()&0111 == 0:
		issues = append(issues, fmt.Sprintf("Server binary is not executable: %s", entry.Command))
	}

	return len(issues) == 0, issues
}

func resolveConfigPath(path string) (string, error) {
	if path != "" {
		return path, nil
	}
	return GetClaudeDesktopConfigPath()
}

// findBinary looks for the server binary on PATH and in common build locations.
func findBinary(serverType string) (string, error) {
	binaryName := "mcp-server-lite"
	if serverType == "full" {
		binaryName = "mcp-server"
	}

	if path, err := exec.LookPath(binaryName); err == nil {
		return path, nil
	}

	home, _ := os.UserHomeDir()
	locations := []string{
		"./" + binaryName,
		"./bin/" + binaryName,
		filepath.Join(home, ".local", "bin", binaryName),
		"/usr/local/bin/" + binaryName,
	}
	for _, loc := range locations {
		if _, err := os.Stat(loc); err == nil {
			if abs, err := filepath.Abs(loc); err == nil {
				return abs, nil
			}
			return loc, nil
		}
	}

	return "", fmt.Errorf("binary '%s' not found in common locations", binaryName)
}
