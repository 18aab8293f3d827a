package setup

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

// ErrInvalidSetup is returned by the validate command when issues were found.
var ErrInvalidSetup = errors.New("setup is not valid")

// CLI provides command-line interface for setup operations.
type CLI struct {
	ServerType string // "lite" or "full"
	reader     *bufio.Reader
	out        io.Writer
}

// NewCLI creates a new setup CLI bound to stdin and stdout.
func NewCLI(serverType string) *CLI {
	return NewCLIWithIO(serverType, os.Stdin, os.Stdout)
}

// NewCLIWithIO creates a setup CLI with explicit input and output.
func NewCLIWithIO(serverType string, in io.Reader, out io.Writer) *CLI {
	return &CLI{
		ServerType: serverType,
		reader:     bufio.NewReader(in),
		out:        out,
	}
}

// Run executes the setup command based on the provided arguments.
func (c *CLI) Run(args []string) error {
	if len(args) == 0 {
		c.showHelp()
		return nil
	}

	opts := c.parseOptions(args[1:])

	switch args[0] {
	case "claude-desktop":
		return c.setupClaudeDesktop(opts)
	case "status":
		c.showStatus(opts.ConfigPath)
		return nil
	case "validate":
		return c.validate(opts.ConfigPath)
	case "help", "--help", "-h":
		c.showHelp()
		return nil
	default:
		fmt.Fprintf(c.out, "Unknown command: %s\n\n", args[0])
		c.showHelp()
		return nil
	}
}

type cliOptions struct {
	Options
	autoConfirm bool
}

func (c *CLI) parseOptions(args []string) cliOptions {
	opts := cliOptions{Options: Options{ServerType: c.ServerType}}
	for i := 0; i < len(args); i++ {
		var value string
		if i+1 < len(args) {
			value = args[i+1]
		}
		switch args[i] {
		case "--binary", "-b":
			opts.BinaryPath = value
			i++
		case "--data-dir", "-d":
			opts.DataDir = value
			i++
		case "--config", "-c":
			opts.ConfigPath = value
			i++
		case "--yes", "-y":
			opts.autoConfirm = true
		}
	}
	return opts
}

func (c *CLI) showHelp() {
	fmt.Fprint(c.out, `
CVD Risk MCP Server Setup

Usage:
  mcp-server-lite setup <command> [options]

Commands:
  claude-desktop  Register the server with Claude Desktop
  status          Show current setup status
  validate        Validate current configuration

Options:
  --binary, -b    Server binary path (default: this executable)
  --data-dir, -d  Data directory for the audit database
  --config, -c    Claude Desktop config file (default: platform location)
  --yes, -y       Skip the confirmation prompt

Examples:
  mcp-server-lite setup claude-desktop --yes
  mcp-server-lite setup claude-desktop --data-dir ~/.cvd-risk-mcp
  mcp-server-lite setup validate
`)
}

func (c *CLI) setupClaudeDesktop(opts cliOptions) error {
	if opts.BinaryPath == "" {
		if execPath, err := os.Executable(); err == nil {
			opts.BinaryPath = execPath
		}
	}

	configPath, err := resolveConfigPath(opts.ConfigPath)
	if err != nil {
		return err
	}
	opts.ConfigPath = configPath

	fmt.Fprintln(c.out, "Claude Desktop Configuration")
	fmt.Fprintln(c.out, "============================")
	fmt.Fprintf(c.out, "Config file: %s\n", configPath)
	fmt.Fprintf(c.out, "Server binary: %s\n", opts.BinaryPath)
	if opts.DataDir != "" {
		fmt.Fprintf(c.out, "Data directory: %s\n", opts.DataDir)
	}
	fmt.Fprintln(c.out)

	if !opts.autoConfirm {
		fmt.Fprint(c.out, "Proceed with configuration? [Y/n]: ")
		response, _ := c.reader.ReadString('\n')
		response = strings.TrimSpace(strings.ToLower(response))
		if response != "" && response != "y" && response != "yes" {
			fmt.Fprintln(c.out, "Configuration cancelled.")
			return nil
		}
	}

	if err := ConfigureClaudeDesktop(opts.Options); err != nil {
		return fmt.Errorf("failed to configure Claude Desktop: %w", err)
	}

	fmt.Fprintln(c.out, "✓ Claude Desktop configured successfully!")
	fmt.Fprintln(c.out)
	fmt.Fprintln(c.out, "Next steps:")
	fmt.Fprintln(c.out, "  1. Restart Claude Desktop to load the new configuration")
	fmt.Fprintln(c.out, "  2. Try: \"Assess the 10-year CVD risk of a 55 year old male smoker\"")
	return nil
}

func (c *CLI) showStatus(configPath string) {
	status := GetStatus(configPath)

	fmt.Fprintln(c.out, "CVD Risk MCP Server Status")
	fmt.Fprintln(c.out, "==========================")
	fmt.Fprintf(c.out, "Claude Desktop config: %s\n", status.ConfigPath)
	if status.ServerConfigured {
		fmt.Fprintf(c.out, "Server: ✓ Configured (%s)\n", status.ServerPath)
	} else {
		fmt.Fprintln(c.out, "Server: ✗ Not configured")
	}
	fmt.Fprintf(c.out, "Data directory: %s\n", status.DataDir)
	if status.AuditDBPresent {
		fmt.Fprintln(c.out, "Audit DB: ✓ Present")
	} else {
		fmt.Fprintln(c.out, "Audit DB: - Not created yet")
	}

	if len(status.Issues) > 0 {
		fmt.Fprintln(c.out, "Issues:")
		for _, issue := range status.Issues {
			fmt.Fprintf(c.out, "  ⚠ %s\n", issue)
		}
	}
}

func (c *CLI) validate(configPath string) error {
	valid, issues := Validate(configPath)
	if valid {
		fmt.Fprintln(c.out, "✓ Configuration is valid!")
		return nil
	}

	fmt.Fprintln(c.out, "✗ Configuration has issues:")
	for _, issue := range issues {
		fmt.Fprintf(c.out, "  - %s\n", issue)
	}
	return ErrInvalidSetup
}
