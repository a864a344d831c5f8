package cmd

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"
)

// versionCmd prints build details used when reporting issues.
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number of covloupe.",
	Long: `Display version information including build details.

Shows the release version, the commit and build time it was built from,
and the Go runtime and platform it runs on. The MCP server reports the same
version through version_tool.`,
	Run: func(cmd *cobra.Command, _ []string) {
		w := cmd.OutOrStdout()
		_, _ = fmt.Fprintln(w, "covloupe CLI")
		_, _ = fmt.Fprintf(w, "  Version:  %s\n", version)
		_, _ = fmt.Fprintf(w, "  Commit:   %s\n", commit)
		_, _ = fmt.Fprintf(w, "  Built:    %s\n", date)
		_, _ = fmt.Fprintf(w, "  Runtime:  %s\n", runtime.Version())
		_, _ = fmt.Fprintf(w, "  Platform: %s/%s\n", runtime.GOOS, runtime.GOARCH)
	},
}
