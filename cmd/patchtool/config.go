package main

import (
	"fmt"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/cobra"

	"github.com/conn-castle/patchtool/internal/config"
	"github.com/conn-castle/patchtool/internal/messages"
)

func newConfigCmd(root *rootFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   messages.ConfigUse,
		Short: messages.ConfigShort,
	}
	cmd.AddCommand(newConfigSetCmd(root), newConfigShowCmd(root))
	return cmd
}

// resolveConfigPath locates patchtool.toml without requiring an initialized installation.
func (f *rootFlags) resolveConfigPath() (string, error) {
	home, err := f.resolveHome()
	if err != nil {
		return "", err
	}
	return f.configPath(home)
}

func newConfigSetCmd(root *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   messages.ConfigSetUse,
		Short: messages.ConfigSetShort,
		Long:  messages.ConfigSetShort + "\n\n" + fmt.Sprintf(messages.ConfigSetKeysFmt, strings.Join(config.Keys(), ", ")),
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := root.resolveConfigPath()
			if err != nil {
				return err
			}
			if _, err := config.Set(path, args[0], args[1]); err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), messages.ConfigSetDoneFmt, args[0], path)
			return nil
		},
	}
}

func newConfigShowCmd(root *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   messages.ConfigShowUse,
		Short: messages.ConfigShowShort,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := root.resolveConfigPath()
			if err != nil {
				return err
			}
			cfg, err := config.Load(path)
			if err != nil {
				return err
			}
			data, err := toml.Marshal(cfg)
			if err != nil {
				return fmt.Errorf(messages.ConfigEncodeFmt, path, err)
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	}
}
