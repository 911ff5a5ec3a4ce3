package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/pelletier/go-toml/v2"
	"github.com/rs/zerolog"

	"github.com/teamline-chat/teamline/internal/tui"
)

// Config holds the client configuration
type Config struct {
	Server   ServerConfig `toml:"server"`
	PageSize int          `toml:"page_size"`
	ToastTTL int          `toml:"toast_ttl_ms"`
}

// ServerConfig holds server connection settings
type ServerConfig struct {
	Address  string `toml:"address"`
	Email    string `toml:"email"`
	Password string `toml:"password"`
}

// DefaultConfig returns the default client configuration
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Address: "http://localhost:8080",
		},
		PageSize: 20,
		ToastTTL: 12000,
	}
}

func main() {
	configPath := flag.String("config", "", "Path to configuration file")
	serverAddr := flag.String("server", "", "Server address (overrides config)")
	email := flag.String("email", "", "Account email (overrides config)")
	debug := flag.Bool("debug", false, "Write debug logs to teamline-client.log")
	flag.Parse()

	config := DefaultConfig()

	if *configPath == "" {
		defaultPaths := []string{
			"./teamline.toml",
			os.ExpandEnv("$HOME/.config/teamline/client.toml"),
		}
		for _, path := range defaultPaths {
			if _, err := os.Stat(path); err == nil {
				*configPath = path
				break
			}
		}
	}
	if *configPath != "" {
		if err := loadConfig(*configPath, config); err != nil {
			fmt.Fprintf(os.Stderr, "warning: failed to load config: %v\n", err)
		}
	}
	if *serverAddr != "" {
		config.Server.Address = *serverAddr
	}
	if *email != "" {
		config.Server.Email = *email
	}

	// the TUI owns the terminal, so logs go to a file or nowhere
	log := zerolog.Nop()
	if *debug {
		f, err := os.OpenFile("teamline-client.log", os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err == nil {
			defer f.Close()
			log = zerolog.New(f).With().Timestamp().Logger()
		}
	}

	app := tui.NewApp(tui.Config{
		ServerAddr: config.Server.Address,
		Email:      config.Server.Email,
		Password:   config.Server.Password,
		PageSize:   config.PageSize,
		ToastTTL:   time.Duration(config.ToastTTL) * time.Millisecond,
	}, log)

	p := tea.NewProgram(app, tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "error running program: %v\n", err)
		os.Exit(1)
	}
}

func loadConfig(path string, config *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := toml.Unmarshal(data, config); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}
	return nil
}
