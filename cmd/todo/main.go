// Command todo is a terminal client for the todo REST backend.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/pflag"

	"github.com/nhle/todo-client/internal/apiclient"
	"github.com/nhle/todo-client/internal/app"
	"github.com/nhle/todo-client/internal/auth"
	"github.com/nhle/todo-client/internal/credential"
	"github.com/nhle/todo-client/internal/logging"
	"github.com/nhle/todo-client/internal/model"
	"github.com/nhle/todo-client/internal/session"
	"github.com/nhle/todo-client/internal/store"
	appsync "github.com/nhle/todo-client/internal/sync"
	"github.com/nhle/todo-client/internal/todolist"
	"github.com/nhle/todo-client/internal/todos"
)

func main() {
	if err := run(context.Background(), os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}
		fmt.Fprintln(os.Stderr, "todo:", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string) error {
	fs := pflag.NewFlagSet("todo", pflag.ContinueOnError)
	configPath := fs.String("config", model.DefaultConfigPath(), "path to the config file")
	fs.String("api-url", model.DefaultAPIURL, "backend base URL (overrides NEXT_PUBLIC_API_URL)")
	fs.String("log-level", "info", "log level: debug, info, warn, error")
	fs.String("state-db", "", "path to the local state database")
	writeConfig := fs.Bool("write-config", false, "write the effective config to --config and exit")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := model.LoadConfig(*configPath, fs)
	if err != nil {
		return err
	}
	if *writeConfig {
		if err := model.SaveConfig(*configPath, cfg); err != nil {
			return err
		}
		fmt.Println("wrote", *configPath)
		return nil
	}

	logger, err := logging.New(cfg.Log)
	if err != nil {
		return err
	}
	defer logger.Close()

	state, err := store.NewSQLiteStore(cfg.State.DBPath)
	if err != nil {
		return err
	}
	defer state.Close()

	opts := []session.Option{session.WithLogger(logger.Logger)}
	if cfg.State.SecureToken {
		vault, err := credential.Open(filepath.Dir(cfg.State.DBPath))
		if err != nil {
			return err
		}
		opts = append(opts, session.WithVault(vault))
	}
	sessions := session.NewKVStore(state, opts...)

	client := apiclient.New(cfg.API.URL, cfg.API.Timeout(), sessions, apiclient.WithLogger(logger.Logger))
	vm := todolist.New(todos.NewService(client, logger.Logger), client.BaseURL(), logger.Logger)
	watcher := appsync.New(state, sessions.InstanceID(), cfg.Session.WatchInterval(), sessions.Reload, logger.Logger)

	root := app.New(app.Deps{
		Auth:           auth.NewManager(client, sessions, logger.Logger),
		Sessions:       sessions,
		State:          state,
		Todos:          vm,
		Watcher:        watcher,
		InstanceID:     sessions.InstanceID(),
		GroupByDefault: cfg.Display.GroupByPriority,
		Logger:         logger.Logger,
	})

	p := tea.NewProgram(root, tea.WithAltScreen(), tea.WithContext(ctx))
	client.OnUnauthorized(func() { p.Send(app.UnauthorizedMsg{}) })

	logger.Info("starting", "api", cfg.API.URL, "instance", sessions.InstanceID())
	_, err = p.Run()
	watcher.Stop()
	if err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return fmt.Errorf("running program: %w", err)
	}
	return nil
}
