// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"

	"github.com/cadstart/cadstart/internal/issue"

	"github.com/spf13/cobra"
)

func newIssuesCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "issues",
		Short: "Show the troubleshooting guide for every failure cadstart reports",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			style := issueStyle(app.stdout)
			for _, is := range issue.Values() {
				rendered, err := is.Render(style)
				if err != nil {
					return fmt.Errorf("failed to render issue %d: %w", is.Id(), err)
				}
				fmt.Fprint(app.stdout, rendered)
			}
			return nil
		},
	}
}
