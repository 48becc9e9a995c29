package main

import (
	"fmt"
	"io"
	"runtime"
	"runtime/debug"

	"github.com/spf13/cobra"
)

// Version is the version of this command.
var Version = "dev build"

func init() {
	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use: "version",
	Run: func(cmd *cobra.Command, args []string) {
		printVersion(cmd.OutOrStdout())
	},
}

func printVersion(w io.Writer) {
	buildSettings := make(map[string]string)
	goVersion := runtime.Version()
	path := "unknown"
	if buildInfo, ok := debug.ReadBuildInfo(); ok {
		goVersion = buildInfo.GoVersion
		path = buildInfo.Path
		for _, setting := range buildInfo.Settings {
			buildSettings[setting.Key] = setting.Value
		}
	}

	fmt.Fprintf(w, "rtspclient %s\n", Version)
	fmt.Fprintf(w, "  Go %s %s %s\n", goVersion, runtime.GOOS, runtime.GOARCH)
	fmt.Fprintf(w, "  From %s\n", path)
	fmt.Fprintf(w, "  Commit %s @%s dirty=%s\n", buildSettings["vcs.revision"], buildSettings["vcs.time"], buildSettings["vcs.modified"])
}
