package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/pelletier/go-toml/v2"
	"github.com/rs/zerolog"

	"github.com/teamline-chat/teamline/internal/models"
	"github.com/teamline-chat/teamline/internal/server"
	"github.com/teamline-chat/teamline/internal/server/store"
)

func main() {
	configPath := flag.String("config", "", "Path to configuration file")
	port := flag.Int("port", 0, "Listen port (overrides config)")
	dbPath := flag.String("db", "", "Database path (overrides config)")
	seed := flag.Bool("seed", false, "Seed demo users and a group chat, then continue serving")
	debug := flag.Bool("debug", false, "Enable debug logging")
	flag.Parse()

	config := server.DefaultConfig()
	if *configPath != "" {
		data, err := os.ReadFile(*configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to read config: %v\n", err)
			os.Exit(1)
		}
		if err := toml.Unmarshal(data, config); err != nil {
			fmt.Fprintf(os.Stderr, "failed to parse config: %v\n", err)
			os.Exit(1)
		}
	}
	if *port != 0 {
		config.Port = *port
	}
	if *dbPath != "" {
		config.DatabasePath = *dbPath
	}

	level := zerolog.InfoLevel
	if *debug || config.Debug {
		level = zerolog.DebugLevel
	}
	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).Level(level).With().Timestamp().Logger()

	srv, err := server.New(config, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to start server")
	}

	if *seed {
		if err := seedDemoData(srv.Store()); err != nil {
			log.Fatal().Err(err).Msg("failed to seed demo data")
		}
		log.Info().Msg("seeded demo users alice/bob/carol (password: demo) and #general")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := srv.Run(ctx); err != nil {
		log.Fatal().Err(err).Msg("server failed")
	}
}

// seedDemoData creates three demo accounts and one group conversation so a
// fresh checkout can exercise the client immediately
func seedDemoData(st *store.Store) error {
	names := []string{"alice", "bob", "carol"}
	ids := make([]uuid.UUID, 0, len(names))
	for _, name := range names {
		if existing, err := st.GetUserByEmail(name + "@example.com"); err == nil {
			ids = append(ids, existing.ID)
			continue
		}
		u := models.NewUser(name, name+"@example.com")
		u.DisplayName = string(name[0]-32) + name[1:]
		hash, err := server.HashPassword("demo")
		if err != nil {
			return err
		}
		u.PasswordHash = hash
		if err := st.CreateUser(u); err != nil {
			return err
		}
		ids = append(ids, u.ID)
	}

	conversations, err := st.ListConversationsForUser(ids[0])
	if err != nil {
		return err
	}
	if len(conversations) == 0 {
		group := models.NewConversation(models.ConversationGroup, "#general", ids)
		if err := st.CreateConversation(group); err != nil {
			return err
		}
		direct := models.NewConversation(models.ConversationDirect, "", ids[:2])
		if err := st.CreateConversation(direct); err != nil {
			return err
		}
	}
	return nil
}
