// Package cli carries the driver-binary glue cmd/limvm uses: version
// reporting, usage formatting, and fatal-exit helpers.
package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"runtime"
)

// Version is the limvm release identity printed by --version.
const Version = "0.1.0"

// VersionInfo is the build identity --version renders, either as a
// one-line banner or as JSON with --json.
type VersionInfo struct {
	Tool      string `json:"tool"`
	Version   string `json:"version"`
	GoVersion string `json:"go_version"`
	Platform  string `json:"platform"`
}

// GetVersionInfo collects the running binary's identity.
func GetVersionInfo(tool string) VersionInfo {
	return VersionInfo{
		Tool:      tool,
		Version:   Version,
		GoVersion: runtime.Version(),
		Platform:  runtime.GOOS + "/" + runtime.GOARCH,
	}
}

// PrintVersion renders the version banner, as indented JSON when
// jsonOutput is set.
func PrintVersion(tool string, jsonOutput bool) {
	info := GetVersionInfo(tool)

	if jsonOutput {
		data, err := json.MarshalIndent(info, "", "  ")
		if err == nil {
			fmt.Println(string(data))
			return
		}

		fmt.Fprintf(os.Stderr, "Error: failed to marshal version info: %v\n", err)
	}

	fmt.Printf("%s v%s (%s, %s)\n", info.Tool, info.Version, info.GoVersion, info.Platform)
}

// ExitWithError prints an error message to stderr and exits with code 1.
func ExitWithError(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", args...)
	os.Exit(1)
}

// CommandInfo describes one named program PrintUsage lists.
type CommandInfo struct {
	Name        string
	Description string
}

// PrintUsage prints the usage message: the invocation line, the known
// programs, and the global flags.
func PrintUsage(tool string, commands []CommandInfo) {
	fmt.Printf("Usage: %s [OPTIONS] [program]\n\n", tool)

	if len(commands) > 0 {
		fmt.Println("Programs:")

		for _, cmd := range commands {
			fmt.Printf("  %-18s %s\n", cmd.Name, cmd.Description)
		}

		fmt.Println()
	}

	fmt.Println("Options:")
	fmt.Println("  --version, -v  print version information")
	fmt.Println("  --json         render --version output as JSON")
	fmt.Println("  --debug        echo DebugPrint output to stderr")
	fmt.Println("  --help, -h     print this message")
}
