package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/conn-castle/patchtool/internal/messages"
	"github.com/conn-castle/patchtool/internal/terminal"
)

func newVerifyCmd(root *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   messages.VerifyUse,
		Short: messages.VerifyShort,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			s, err := root.open(cmd)
			if err != nil {
				return err
			}
			pt, err := s.tool(false)
			if err != nil {
				return err
			}
			results, err := pt.Verify()
			if err != nil {
				return err
			}
			if len(results) == 0 {
				_, _ = fmt.Fprintln(out, messages.VerifyEmpty)
				return nil
			}

			okColor, failColor := color.New(color.FgGreen), color.New(color.FgRed)
			if !terminal.IsTerminal(out) {
				okColor.DisableColor()
				failColor.DisableColor()
			}
			failed := 0
			for _, result := range results {
				status := okColor.Sprint(messages.VerifyOKLabel)
				if !result.OK() {
					status = failColor.Sprint(messages.VerifyFailLabel)
					failed++
				}
				_, _ = fmt.Fprintf(out, messages.VerifyLineFmt, status, result.PatchID)
				for _, problem := range result.Problems {
					_, _ = fmt.Fprintf(out, messages.VerifyProblemFmt, problem)
				}
			}
			if failed > 0 {
				_, _ = fmt.Fprintln(out, failColor.Sprint(messages.VerifyFailure))
				return fmt.Errorf(messages.VerifyFailedErrFmt, failed)
			}
			_, _ = fmt.Fprintln(out, okColor.Sprint(messages.VerifySuccess))
			return nil
		},
	}
}
