package commands

import (
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/junction-dev/junction-go/pkg/junction"
)

// NewVersionCommand creates the version command.
func NewVersionCommand(build BuildInfo) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Display version information",
		Long:  "Display version information about the junction CLI and client library",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			type versionInfo struct {
				Version string `json:"version"`
				Library string `json:"library"`
				Commit  string `json:"commit"`
				Built   string `json:"built"`
			}

			info := versionInfo{
				Version: build.Version,
				Library: junction.Version,
				Commit:  build.Commit,
				Built:   build.Date,
			}

			return render(cmd.OutOrStdout(), info, func(t *tablewriter.Table) {
				t.Header("Property", "Value")
				_ = t.Append("Version", info.Version)
				_ = t.Append("Library", info.Library)
				_ = t.Append("Commit", info.Commit)
				_ = t.Append("Built", info.Built)
			})
		},
	}
}
