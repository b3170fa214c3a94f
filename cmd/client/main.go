package main

import (
	"bufio"
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"secure-chat/protocol"
	"secure-chat/transport"

	"github.com/gookit/color"
	"github.com/kelseyhightower/envconfig"
	"github.com/mama165/sdk-go/logs"
)

// Exit codes for the client application.
const (
	exitOK      = 0
	exitRuntime = 1
	exitConfig  = 2
)

// Config defines the client-side environment variables.
type Config struct {
	ServerAddr string `envconfig:"CHAT_SERVER_ADDR" default:"localhost:5555"`
	// CHAT_CA_FILE is the PEM bundle trusted for the server certificate
	CAFile string `envconfig:"CHAT_CA_FILE"`
	// CHAT_INSECURE skips certificate verification, for local self-signed servers only
	Insecure bool `envconfig:"CHAT_INSECURE" default:"false"`
	// CHAT_COLOURS enables colorized output
	Colours  bool   `envconfig:"CHAT_COLOURS" default:"true"`
	LogLevel string `envconfig:"LOG_LEVEL" default:"WARN"`
}

func main() {
	code, err := run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Client error: %v\n", err)
	}
	os.Exit(code)
}

func run() (int, error) {
	// 1. Configuration
	var config Config
	if err := envconfig.Process("", &config); err != nil {
		return exitConfig, fmt.Errorf("config error: %w", err)
	}
	color.Enable = config.Colours
	log := logs.GetLoggerFromString(config.LogLevel)

	host, _, err := net.SplitHostPort(config.ServerAddr)
	if err != nil {
		return exitConfig, fmt.Errorf("invalid CHAT_SERVER_ADDR: %w", err)
	}
	tlsConfig, err := transport.ClientConfig(host, config.CAFile, config.Insecure)
	if err != nil {
		return exitConfig, err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 2. Connection
	dialer := &tls.Dialer{NetDialer: &net.Dialer{Timeout: 10 * time.Second}, Config: tlsConfig}
	conn, err := dialer.DialContext(ctx, "tcp", config.ServerAddr)
	if err != nil {
		return exitRuntime, fmt.Errorf("could not connect to %s: %w", config.ServerAddr, err)
	}
	defer func() {
		log.Debug("Closing connection...")
		_ = conn.Close()
	}()
	log.Debug("Connected", "addr", config.ServerAddr)

	frames := make(chan string)
	readErr := make(chan error, 1)
	go func() {
		reader := protocol.NewReader(conn, 64*1024)
		for {
			frame, err := reader.ReadFrame()
			if err != nil {
				readErr <- err
				close(frames)
				return
			}
			frames <- frame
		}
	}()

	input := make(chan string)
	go func() {
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			input <- scanner.Text()
		}
		close(input)
	}()

	// 3. Relay until the server hangs up, stdin ends or a signal arrives
	for {
		select {
		case <-ctx.Done():
			_ = protocol.WriteFrame(conn, protocol.Quit)
			return exitOK, nil
		case frame, ok := <-frames:
			if !ok {
				if ctx.Err() != nil {
					return exitOK, nil
				}
				log.Debug("Connection closed", "error", <-readErr)
				fmt.Println(serverStyle.Render("Disconnected."))
				return exitOK, nil
			}
			if line := render(frame); line != "" {
				fmt.Println(line)
			}
		case line, ok := <-input:
			if !ok {
				_ = protocol.WriteFrame(conn, protocol.Quit)
				return exitOK, nil
			}
			if err := protocol.WriteFrame(conn, line); err != nil {
				return exitRuntime, fmt.Errorf("send failed: %w", err)
			}
		}
	}
}
