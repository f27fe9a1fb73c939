package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/conn-castle/patchtool/internal/identity"
	"github.com/conn-castle/patchtool/internal/messages"
	"github.com/conn-castle/patchtool/internal/tool"
)

const (
	formatText = "text"
	formatJSON = "json"
	formatYAML = "yaml"
)

type historyView struct {
	Name    string              `json:"name" yaml:"name"`
	Version string              `json:"version" yaml:"version"`
	Patches []tool.HistoryEntry `json:"patches" yaml:"patches"`
}

func newHistoryCmd(root *rootFlags) *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   messages.HistoryUse,
		Short: messages.HistoryShort,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			format = strings.ToLower(strings.TrimSpace(format))
			switch format {
			case formatText, formatJSON, formatYAML:
			default:
				return fmt.Errorf(messages.HistoryFormatFmt, format)
			}
			s, err := root.open(cmd)
			if err != nil {
				return err
			}
			pt, err := s.tool(false)
			if err != nil {
				return err
			}
			id, entries, err := pt.History()
			if err != nil {
				return err
			}
			return renderHistory(cmd.OutOrStdout(), format, id, entries)
		},
	}
	cmd.Flags().StringVar(&format, "format", formatText, messages.HistoryFlagFormat)
	return cmd
}

func renderHistory(out io.Writer, format string, id *identity.InstalledIdentity, entries []tool.HistoryEntry) error {
	view := historyView{Name: id.Name, Version: id.Version, Patches: entries}
	if view.Patches == nil {
		view.Patches = []tool.HistoryEntry{}
	}
	switch format {
	case formatJSON:
		encoder := json.NewEncoder(out)
		encoder.SetIndent("", "  ")
		return encoder.Encode(view)
	case formatYAML:
		encoder := yaml.NewEncoder(out)
		encoder.SetIndent(2)
		if err := encoder.Encode(view); err != nil {
			return err
		}
		return encoder.Close()
	}

	_, _ = fmt.Fprintf(out, messages.HistoryIdentityFmt, id.Name, id.Version)
	if len(entries) == 0 {
		_, _ = fmt.Fprintln(out, messages.HistoryEmpty)
		return nil
	}
	for _, entry := range entries {
		if entry.Error != "" {
			_, _ = fmt.Fprintf(out, messages.HistoryUnreadableFmt, entry.PatchID, entry.Error)
			continue
		}
		_, _ = fmt.Fprintf(out, messages.HistoryEntryFmt, entry.AppliedAt.Format(time.RFC3339), entry.Type, entry.PatchID, entry.Description)
		for _, element := range entry.Elements {
			_, _ = fmt.Fprintf(out, messages.HistoryElementFmt, element.ID, element.Target)
		}
	}
	return nil
}
