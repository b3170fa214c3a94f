package main

import (
	"context"
	goerrors "errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"secure-chat/auth"
	"secure-chat/internal"
	"secure-chat/moderation"
	"secure-chat/repositories"
	"secure-chat/runtime"
	"secure-chat/services"
	"secure-chat/transport"

	"github.com/Netflix/go-env"
	"github.com/joho/godotenv"
	"github.com/mama165/sdk-go/logs"
)

// Exit codes to provide meaningful status to the operating system or service manager (e.g., systemd).
const (
	exitOK      = 0
	exitRuntime = 1
	exitConfig  = 2
)

func main() {
	code, err := run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Chat server terminated with error: %v\n", err)
	}
	os.Exit(code)
}

// run wires every component and blocks until SIGINT/SIGTERM.
// Deferred cleanups run before main calls os.Exit.
func run() (int, error) {
	// 1. Configuration & Logger
	_ = godotenv.Load()
	var config internal.Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return exitConfig, fmt.Errorf("config error: %w", err)
	}
	if err := config.Validate(); err != nil {
		return exitConfig, err
	}
	log := logs.GetLoggerFromString(config.LogLevel)

	// 2. Moderation
	moderator, err := buildModerator(config, log)
	if err != nil {
		return exitConfig, err
	}
	var filter runtime.MessageFilter
	if moderator != nil {
		filter = moderator
	}

	// 3. TLS
	cert, err := transport.LoadOrCreateCertificate(config.TLSCertFile, config.TLSKeyFile, config.TLSCertDir, log)
	if err != nil {
		return exitConfig, fmt.Errorf("TLS certificate: %w", err)
	}

	// 4. Database (BadgerDB) & store, closed by the server on shutdown
	db, err := repositories.OpenDB(config.BadgerFilepath, log)
	if err != nil {
		return exitRuntime, fmt.Errorf("database opening failed: %w", err)
	}
	store, err := services.OpenStore(db, log, auth.DefaultParams)
	if err != nil {
		_ = db.Close()
		return exitRuntime, fmt.Errorf("store initialization failed: %w", err)
	}

	server := runtime.NewServer(log, runtime.Config{
		MaxConnections:    config.MaxConnections,
		HistoryLimit:      config.HistoryLimit,
		MaxFrameSize:      config.MaxFrameSize,
		HandshakeTimeout:  config.HandshakeTimeout,
		WriteTimeout:      config.WriteTimeout,
		HeartbeatInterval: config.HeartbeatInterval,
	}, store, transport.NewTLSTransport(transport.ServerConfig(cert)), filter)

	// 5. Context & Signals
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := server.Start(config.Address()); err != nil {
		_ = store.Close()
		return exitRuntime, err
	}

	// 6. Optional store inspector
	var debugServer *http.Server
	if config.DebugAddr != "" {
		source := struct {
			repositories.IUserRepository
			*repositories.MessageRepository
		}{repositories.NewUserRepository(db), repositories.NewMessageReader(db, log)}
		debugServer = internal.NewDebugServer(config.DebugAddr, source, func() map[string]any {
			online := server.Online()
			return map[string]any{"online": len(online), "users": online, "time": time.Now().Format(time.RFC822)}
		}, log)
		go func() {
			log.Info("Debug inspector available", "url", fmt.Sprintf("http://%s/inspect", config.DebugAddr))
			if err := debugServer.ListenAndServe(); err != nil && !goerrors.Is(err, http.ErrServerClosed) {
				log.Warn("Debug inspector stopped", "error", err)
			}
		}()
	}

	// 7. Wait for a signal
	<-ctx.Done()
	log.Info("Shutting down gracefully...")

	// 8. Final Cleanup
	shutdownCtx, cancel := context.WithTimeout(context.Background(), config.ShutdownTimeout)
	defer cancel()
	if debugServer != nil {
		_ = debugServer.Shutdown(shutdownCtx)
	}
	if err := server.Shutdown(shutdownCtx); err != nil {
		return exitRuntime, fmt.Errorf("shutdown: %w", err)
	}
	log.Info("Program stopped cleanly")
	return exitOK, nil
}

// buildModerator merges CENSORED_WORDS with the dictionaries of CENSORED_DIR.
// It returns nil when nothing is censored.
func buildModerator(config internal.Config, log *slog.Logger) (*moderation.Moderator, error) {
	words := config.CensoredWordList()
	if config.CensoredDir != "" {
		data, err := moderation.LoadCensoredWords(os.DirFS(config.CensoredDir), ".")
		if err != nil {
			return nil, fmt.Errorf("censored words from %s: %w", config.CensoredDir, err)
		}
		log.Info(fmt.Sprintf("%d censored files loaded %v", len(data.Languages), data.Languages))
		words = append(words, data.Words...)
	}
	if len(words) == 0 {
		return nil, nil
	}

	char, err := internal.CharacterRune(config.CharReplacement)
	if err != nil {
		return nil, err
	}
	return moderation.NewModerator(words, char, log)
}
