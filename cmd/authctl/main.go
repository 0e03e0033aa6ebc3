// Command authctl is a terminal client for auth-service. It keeps the
// session between runs in a local file.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"

	"github.com/sethvargo/go-envconfig"

	"github.com/aicmo/auth-service/internal/client"
	"github.com/aicmo/auth-service/pkg/logger"
)

type config struct {
	APIURL      string `env:"AUTH_API_URL, default=http://localhost:5050"`
	SessionPath string `env:"AUTHCTL_SESSION"`
	LogLevel    string `env:"LOG_LEVEL, default=warn"`
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := execute(ctx, os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func execute(ctx context.Context, args []string) error {
	if len(args) < 1 {
		return printUsage()
	}

	var cfg config
	if err := envconfig.Process(ctx, &cfg); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if cfg.SessionPath == "" {
		dir, err := os.UserConfigDir()
		if err != nil {
			return fmt.Errorf("locate config dir: %w", err)
		}
		cfg.SessionPath = filepath.Join(dir, "authctl", "session.json")
	}

	log := logger.Init(logger.Options{Level: cfg.LogLevel, Pretty: true, Output: os.Stderr})
	sessions := client.NewSessionManager(
		client.New(cfg.APIURL, nil),
		client.FileStore{Path: cfg.SessionPath},
		log,
	)

	switch args[0] {
	case "signup":
		username, password, err := credentialArgs(args)
		if err != nil {
			return err
		}
		user, err := sessions.Signup(ctx, username, password)
		if err != nil {
			return err
		}
		fmt.Printf("User created: %s (%s). Log in with 'authctl login'.\n", user.Username, user.Role)
		return nil
	case "login":
		username, password, err := credentialArgs(args)
		if err != nil {
			return err
		}
		user, err := sessions.Login(ctx, username, password)
		if err != nil {
			return err
		}
		fmt.Printf("Welcome, %s!\n", user.Username)
		return nil
	case "logout":
		if err := sessions.Logout(ctx); err != nil {
			return err
		}
		fmt.Println("Logged out.")
		return nil
	case "whoami":
		return whoami(sessions)
	case "admin":
		if !sessions.IsAdmin() {
			return errors.New("admin panel requires an admin session")
		}
		res, err := sessions.Admin(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("%s (%s)\n", res.Message, res.User.Username)
		return nil
	case "help", "--help", "-h":
		return printUsage()
	default:
		return fmt.Errorf("unknown command: %s\nRun 'authctl help' for usage.", args[0])
	}
}

func credentialArgs(args []string) (string, string, error) {
	if len(args) != 3 {
		return "", "", fmt.Errorf("usage: authctl %s <username> <password>", args[0])
	}
	return args[1], args[2], nil
}

func whoami(sessions *client.SessionManager) error {
	user, ok := sessions.User()
	if !ok {
		fmt.Println("Not logged in.")
		return nil
	}
	fmt.Printf("%s (role: %s, id: %s)\n", user.Username, user.Role, user.ID)
	if sessions.IsAdmin() {
		fmt.Println("Admin panel available: authctl admin")
	}
	return nil
}

func printUsage() error {
	fmt.Println(`authctl - auth-service client

Usage:
  authctl <command> [arguments]

Commands:
  signup <username> <password>   Create an account
  login <username> <password>    Log in and store the session
  logout                         Log out and clear the stored session
  whoami                         Show the stored session
  admin                          Open the admin panel (admin role only)
  help                           Show this help

Environment:
  AUTH_API_URL      Server base URL (default http://localhost:5050)
  AUTHCTL_SESSION   Session file (default <user config dir>/authctl/session.json)`)
	return nil
}
