package setup

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeBinary(t *testing.T, dir string) string {
	t.Helper()
	path := filepath.Join(dir, "mcp-server-lite")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"), 0755))
	return path
}

func TestLoadClaudeDesktopConfig_Missing(t *testing.T) {
	cfg, err := LoadClaudeDesktopConfig(filepath.Join(t.TempDir(), "absent.json"))

	require.NoError(t, err)
	assert.Empty(t, cfg.MCPServers)
}

func TestLoadClaudeDesktopConfig_Invalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0644))

	_, err := LoadClaudeDesktopConfig(path)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse config file")
}

func TestConfigureClaudeDesktop_PreservesOtherEntries(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "Claude", "claude_desktop_config.json")
	require.NoError(t, os.MkdirAll(filepath.Dir(configPath), 0755))
	existing := `{"theme":"dark","mcpServers":{"other":{"command":"/usr/bin/other"}}}`
	require.NoError(t, os.WriteFile(configPath, []byte(existing), 0644))

	binary := writeBinary(t, dir)
	err := ConfigureClaudeDesktop(Options{
		ServerType: "lite",
		BinaryPath: binary,
		DataDir:    "/data/cvd",
		ConfigPath: configPath,
	})
	require.NoError(t, err)

	data, err := os.ReadFile(configPath)
	require.NoError(t, err)

	var raw map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(data, &raw))
	assert.JSONEq(t, `"dark"`, string(raw["theme"]))

	cfg, err := LoadClaudeDesktopConfig(configPath)
	require.NoError(t, err)
	require.Contains(t, cfg.MCPServers, "other")
	require.Contains(t, cfg.MCPServers, ServerName)
	assert.Equal(t, binary, cfg.MCPServers[ServerName].Command)
	assert.Equal(t, "/data/cvd", cfg.MCPServers[ServerName].Env[DataDirEnv])
}

func TestGetStatus(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.json")
	dataDir := filepath.Join(dir, "data")
	require.NoError(t, os.MkdirAll(dataDir, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dataDir, "audit.db"), nil, 0644))

	status := GetStatus(configPath)
	assert.False(t, status.ServerConfigured)
	assert.Equal(t, configPath, status.ConfigPath)

	binary := writeBinary(t, dir)
	require.NoError(t, ConfigureClaudeDesktop(Options{BinaryPath: binary, DataDir: dataDir, ConfigPath: configPath}))

	status = GetStatus(configPath)
	assert.True(t, status.ServerConfigured)
	assert.Equal(t, binary, status.ServerPath)
	assert.Equal(t, dataDir, status.DataDir)
	assert.True(t, status.AuditDBPresent)
	assert.Empty(t, status.Issues)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name      string
		configure func(t *testing.T, dir, configPath string)
		wantValid bool
		wantIssue string
	}{
		{
			name:      "not configured",
			configure: func(t *testing.T, dir, configPath string) {},
			wantIssue: "not configured",
		},
		{
			name: "binary missing",
			configure: func(t *testing.T, dir, configPath string) {
				require.NoError(t, ConfigureClaudeDesktop(Options{
					BinaryPath: filepath.Join(dir, "gone"),
					ConfigPath: configPath,
				}))
			},
			wantIssue: "binary not found",
		},
		{
			name: "binary not executable",
			configure: func(t *testing.T, dir, configPath string) {
				path := filepath.Join(dir, "plain")
				require.NoError(t, os.WriteFile(path, []byte("x"), 0644))
				require.NoError(t, ConfigureClaudeDesktop(Options{BinaryPath: path, ConfigPath: configPath}))
			},
			wantIssue: "not executable",
		},
		{
			name: "valid",
			configure: func(t *testing.T, dir, configPath string) {
				require.NoError(t, ConfigureClaudeDesktop(Options{
					BinaryPath: writeBinary(t, dir),
					ConfigPath: configPath,
				}))
			},
			wantValid: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			configPath := filepath.Join(dir, "config.json")
			tt.configure(t, dir, configPath)

			valid, issues := Validate(configPath)

			assert.Equal(t, tt.wantValid, valid)
			if tt.wantIssue != "" {
				require.NotEmpty(t, issues)
				assert.Contains(t, strings.Join(issues, "\n"), tt.wantIssue)
			}
		})
	}
}

func TestCLI_ClaudeDesktopAutoConfirm(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.json")
	binary := writeBinary(t, dir)

	var out bytes.Buffer
	cli := NewCLIWithIO("lite", strings.NewReader(""), &out)

	err := cli.Run([]string{"claude-desktop", "--yes", "--binary", binary, "--config", configPath})
	require.NoError(t, err)
	assert.Contains(t, out.String(), "configured successfully")

	out.Reset()
	require.NoError(t, cli.Run([]string{"validate", "--config", configPath}))
	assert.Contains(t, out.String(), "Configuration is valid")
}

func TestCLI_ClaudeDesktopCancelled(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.json")

	var out bytes.Buffer
	cli := NewCLIWithIO("lite", strings.NewReader("n\n"), &out)

	err := cli.Run([]string{"claude-desktop", "-b", writeBinary(t, dir), "-c", configPath})
	require.NoError(t, err)
	assert.Contains(t, out.String(), "Configuration cancelled")

	_, err = os.Stat(configPath)
	assert.True(t, os.IsNotExist(err))
}

func TestCLI_ValidateReportsIssues(t *testing.T) {
	var out bytes.Buffer
	cli := NewCLIWithIO("lite", strings.NewReader(""), &out)

	err := cli.Run([]string{"validate", "--config", filepath.Join(t.TempDir(), "config.json")})

	assert.ErrorIs(t, err, ErrInvalidSetup)
	assert.Contains(t, out.String(), "Configuration has issues")
}

func TestCLI_StatusAndHelp(t *testing.T) {
	var out bytes.Buffer
	cli := NewCLIWithIO("lite", strings.NewReader(""), &out)

	require.NoError(t, cli.Run([]string{"status", "--config", filepath.Join(t.TempDir(), "config.json")}))
	assert.Contains(t, out.String(), "Server: ✗ Not configured")

	out.Reset()
	require.NoError(t, cli.Run(nil))
	assert.Contains(t, out.String(), "CVD Risk MCP Server Setup")

	out.Reset()
	require.NoError(t, cli.Run([]string{"bogus"}))
	assert.Contains(t, out.String(), "Unknown command: bogus")
}
