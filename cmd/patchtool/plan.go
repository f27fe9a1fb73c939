package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/conn-castle/patchtool/internal/hashutil"
	"github.com/conn-castle/patchtool/internal/messages"
	"github.com/conn-castle/patchtool/internal/policy"
	"github.com/conn-castle/patchtool/internal/preview"
	"github.com/conn-castle/patchtool/internal/tool"
)

type planView struct {
	PatchID   string            `json:"patch_id"`
	WouldFail bool              `json:"would_fail"`
	Tasks     []plannedTaskView `json:"tasks"`
	Refused   []string          `json:"refused,omitempty"`
}

type plannedTaskView struct {
	Element      string `json:"element,omitempty"`
	Kind         string `json:"kind"`
	Modification string `json:"modification"`
	Item         string `json:"item"`
	Path         string `json:"path"`
	Conflict     bool   `json:"conflict"`
	Decision     string `json:"decision,omitempty"`
	Actual       string `json:"actual,omitempty"`
	Diff         string `json:"diff,omitempty"`
}

func newPlanCmd(root *rootFlags) *cobra.Command {
	var (
		pf         policyFlags
		showDiff   bool
		diffLines  int
		outputJSON bool
	)
	cmd := &cobra.Command{
		Use:   messages.PlanUse,
		Short: messages.PlanShort,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := root.open(cmd)
			if err != nil {
				return err
			}
			pt, err := s.tool(false)
			if err != nil {
				return err
			}
			plan, err := pt.Plan(args[0], policy.FromOptions(pf.options(s.cfg)))
			if err != nil {
				return err
			}
			view, err := newPlanView(plan, showDiff, diffLines)
			if err != nil {
				return err
			}
			if outputJSON {
				encoder := json.NewEncoder(cmd.OutOrStdout())
				encoder.SetIndent("", "  ")
				if err := encoder.Encode(view); err != nil {
					return err
				}
			} else {
				renderPlanText(cmd.OutOrStdout(), view)
			}
			if view.WouldFail {
				return &SilentExitError{Code: planExitCode}
			}
			return nil
		},
	}
	pf.register(cmd)
	cmd.Flags().BoolVar(&showDiff, "diff", false, messages.PlanFlagDiff)
	cmd.Flags().IntVar(&diffLines, "diff-lines", preview.DefaultMaxLines, messages.PlanFlagDiffLines)
	cmd.Flags().BoolVar(&outputJSON, "json", false, messages.PlanFlagJSON)
	return cmd
}

func newPlanView(plan *tool.Plan, showDiff bool, diffLines int) (planView, error) {
	view := planView{PatchID: plan.PatchID, WouldFail: plan.WouldFail(), Tasks: []plannedTaskView{}}
	for _, task := range plan.Tasks {
		mod := task.Modification
		tv := plannedTaskView{
			Element:      task.Element,
			Kind:         task.Kind.String(),
			Modification: strings.ToLower(string(mod.Type)),
			Item:         mod.Item.ID(),
			Path:         task.Path,
			Conflict:     task.Conflict,
		}
		if task.Conflict {
			tv.Decision = task.Decision.String()
			tv.Actual = hashutil.Format(task.Actual)
			if showDiff && isMiscFile(mod) {
				diff, err := preview.Files(mod.Item.RelativePath(), task.Path, task.SourcePath, diffLines)
				if err != nil {
					return planView{}, err
				}
				tv.Diff = diff.Unified
			}
		}
		view.Tasks = append(view.Tasks, tv)
	}
	for _, conflict := range plan.Refused {
		view.Refused = append(view.Refused, conflict.String())
	}
	return view, nil
}

func renderPlanText(out io.Writer, view planView) {
	_, _ = fmt.Fprintf(out, messages.PlanHeaderFmt, view.PatchID)
	if len(view.Tasks) == 0 {
		_, _ = fmt.Fprintln(out, messages.PlanNoTasks)
	}
	for _, task := range view.Tasks {
		status := ""
		if task.Conflict {
			status = task.Decision
		}
		_, _ = fmt.Fprintf(out, messages.PlanTaskFmt, task.Modification, task.Item, status)
	}
	for _, task := range view.Tasks {
		if task.Diff != "" {
			_, _ = fmt.Fprintf(out, messages.PlanDiffHeaderFmt, task.Item)
			_, _ = fmt.Fprint(out, task.Diff)
		}
	}
	if view.WouldFail {
		_, _ = fmt.Fprintln(out)
		for _, refused := range view.Refused {
			_, _ = fmt.Fprintf(out, messages.PlanRefusedFmt, refused)
		}
		_, _ = fmt.Fprintln(out, messages.PlanWouldFail)
	}
}
