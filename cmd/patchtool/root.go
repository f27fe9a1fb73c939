package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/conn-castle/patchtool/internal/config"
	"github.com/conn-castle/patchtool/internal/identity"
	"github.com/conn-castle/patchtool/internal/logging"
	"github.com/conn-castle/patchtool/internal/messages"
	"github.com/conn-castle/patchtool/internal/terminal"
	"github.com/conn-castle/patchtool/internal/tool"
)

var (
	getwd      = os.Getwd
	isTerminal = terminal.IsInteractive
)

// rootFlags are the persistent flags shared by every subcommand.
type rootFlags struct {
	home     string
	config   string
	logLevel string
}

func newRootCmd() *cobra.Command {
	flags := &rootFlags{}
	cmd := &cobra.Command{
		Use:           messages.RootUse,
		Short:         messages.RootShort,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVar(&flags.home, "home", "", messages.RootFlagHome)
	cmd.PersistentFlags().StringVar(&flags.config, "config", "", messages.RootFlagConfig)
	cmd.PersistentFlags().StringVar(&flags.logLevel, "log-level", "", messages.RootFlagLogLevel)

	cmd.AddCommand(
		newApplyCmd(flags),
		newPlanCmd(flags),
		newRollbackCmd(flags),
		newHistoryCmd(flags),
		newVerifyCmd(flags),
		newConfigCmd(flags),
	)
	return cmd
}

// resolveHome picks --home, then $PATCHTOOL_HOME, then the working directory.
func (f *rootFlags) resolveHome() (string, error) {
	home := strings.TrimSpace(f.home)
	if home == "" {
		home = strings.TrimSpace(os.Getenv(messages.RootHomeEnvVar))
	}
	if home == "" {
		cwd, err := getwd()
		if err != nil {
			return "", err
		}
		home = cwd
	}
	resolved, err := config.ExpandPath(home)
	if err != nil {
		return "", fmt.Errorf(messages.RootResolveHomeFmt, home, err)
	}
	info, err := os.Stat(resolved)
	if err != nil {
		return "", fmt.Errorf(messages.RootResolveHomeFmt, home, err)
	}
	if !info.IsDir() {
		return "", fmt.Errorf(messages.RootHomeNotDirFmt, resolved)
	}
	return resolved, nil
}

// configPath returns --config or the default location under home.
func (f *rootFlags) configPath(home string) (string, error) {
	if strings.TrimSpace(f.config) == "" {
		return config.DefaultPath(home), nil
	}
	return config.ExpandPath(f.config)
}

// session is the resolved installation a command operates on.
type session struct {
	home       string
	configPath string
	cfg        *config.Config
	logger     *slog.Logger
	store      *identity.Store
}

func (f *rootFlags) open(cmd *cobra.Command) (*session, error) {
	home, err := f.resolveHome()
	if err != nil {
		return nil, err
	}
	path, err := f.configPath(home)
	if err != nil {
		return nil, err
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}

	levelName := cfg.LogLevel()
	if f.logLevel != "" {
		levelName = f.logLevel
	}
	level, err := logging.ParseLevel(levelName)
	if err != nil {
		return nil, err
	}
	logger := logging.New(cmd.ErrOrStderr(), cfg.LogFormat(), level)

	store := identity.NewStore(identity.Layout{Home: home}, cfg.Defaults())
	if !cfg.HasInstallation() {
		if _, err := os.Stat(store.IdentityPath()); errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf(messages.RootNotInitializedFmt, home, path)
		}
	}
	return &session{home: home, configPath: path, cfg: cfg, logger: logger, store: store}, nil
}

// tool returns a PatchTool for the session.
func (s *session) tool(autoUndo bool) (*tool.PatchTool, error) {
	return tool.New(tool.Options{
		Store:             s.store,
		Logger:            s.logger,
		ConfigurationDirs: s.cfg.Installation.Configuration,
		LockTimeout:       s.cfg.LockTimeout(),
		AutoUndo:          autoUndo,
	})
}
