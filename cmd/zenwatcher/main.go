package main

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"net"
	"os"
	"strings"

	"ZenWatcher/internal/app"
	"ZenWatcher/internal/config"
	"ZenWatcher/internal/logging"
)

func main() {
	cfg := config.Load()
	logger := logging.New(cfg.Logging.Level)

	args := os.Args[1:]
	switch len(args) {
	case 1:
		if err := requestShutdown(cfg.Admin.Address, args[0]); err != nil {
			logger.Error("shutdown request failed", "error", err)
			os.Exit(1)
		}
		fmt.Println("Shutdown requested.")
	case 2:
		if err := run(cfg, logger, args[0], args[1]); err != nil {
			logger.Error("application stopped", "error", err)
			os.Exit(1)
		}
	default:
		fmt.Fprintln(os.Stderr, "usage: zenwatcher <password> [<database path>]")
		os.Exit(2)
	}
}

// requestShutdown asks a running instance to stop by writing the password to
// its admin listener.
func requestShutdown(address, password string) error {
	conn, err := net.Dial("tcp", address)
	if err != nil {
		return fmt.Errorf("dial admin port: %w", err)
	}
	defer conn.Close()

	if _, err := fmt.Fprintln(conn, password); err != nil {
		return fmt.Errorf("write password: %w", err)
	}
	return nil
}

// run starts the pipeline and blocks on the admin listener until a
// connection presents the correct password.
func run(cfg config.Config, logger *slog.Logger, password, dbPath string) error {
	cfg.Database.Path = dbPath

	application, err := app.New(cfg, password, logger)
	if err != nil {
		return err
	}

	listener, err := net.Listen("tcp", cfg.Admin.Address)
	if err != nil {
		return fmt.Errorf("listen on admin port: %w", err)
	}
	defer listener.Close()

	application.Start(context.Background())
	logger.Info("bot started", "admin", cfg.Admin.Address)

	awaitShutdownSignal(listener, password, logger)

	application.Stop()
	logger.Info("bot stopped")
	return nil
}

// awaitShutdownSignal accepts connections one at a time and reads one line
// from each; anything but the password keeps the listener going.
func awaitShutdownSignal(listener net.Listener, password string, logger *slog.Logger) {
	for {
		conn, err := listener.Accept()
		if err != nil {
			logger.Warn("admin accept", "error", err)
			continue
		}

		line, err := bufio.NewReader(conn).ReadString('\n')
		conn.Close()
		if err != nil && line == "" {
			continue
		}
		if strings.TrimSpace(line) == password {
			return
		}
		logger.Warn("admin connection with wrong password")
	}
}
