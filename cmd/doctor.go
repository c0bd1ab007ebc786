package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/JuanCF/scrcpy-mcp/internal/adbexec"
	"github.com/JuanCF/scrcpy-mcp/internal/config"
)

// newDoctorCommand builds the `doctor` diagnostic subcommand: it resolves
// the adb binary, locates the scrcpy server jar, and lists attached
// devices, printing a colorized pass/fail line per check in the style
// babelcloud-gbox/packages/cli/cmd/device_connect_utils.go uses for its
// connection diagnostics.
func newDoctorCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check that adb, the scrcpy server jar, and attached devices are reachable",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDoctor(cmd.Context())
		},
	}
}

func runDoctor(ctx context.Context) error {
	cfg := config.Load()
	adb := adbexec.New()

	ok := color.New(color.FgGreen, color.Bold)
	bad := color.New(color.FgRed, color.Bold)
	faint := color.New(color.Faint)

	allGood := true

	checkCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if _, err := adb.Exec(checkCtx, []string{"version"}, 5*time.Second); err != nil {
		bad.Print("✗ ")
		fmt.Printf("adb not reachable at %q: %v\n", adb.Path, err)
		allGood = false
	} else {
		ok.Print("✓ ")
		fmt.Printf("adb found at %q\n", adb.Path)
	}

	jarPath, err := findFirstExisting(cfg.ServerJarSearchPath)
	if err != nil {
		bad.Print("✗ ")
		fmt.Println("scrcpy-server.jar not found in any of:")
		for _, p := range cfg.ServerJarSearchPath {
			faint.Printf("    %s\n", p)
		}
		allGood = false
	} else {
		ok.Print("✓ ")
		fmt.Printf("scrcpy-server.jar found at %q\n", jarPath)
	}

	serials, err := adb.ListAttachedSerials(ctx)
	if err != nil {
		bad.Print("✗ ")
		fmt.Printf("could not list attached devices: %v\n", err)
		allGood = false
	} else if len(serials) == 0 {
		bad.Print("✗ ")
		fmt.Println("no attached devices")
		allGood = false
	} else {
		ok.Print("✓ ")
		fmt.Printf("%d attached device(s):\n", len(serials))
		for _, s := range serials {
			faint.Printf("    %s\n", s)
		}
	}

	faint.Printf("server version configured: %s\n", cfg.ServerVersion)
	faint.Printf("sqlite audit path: %s\n", cfg.SQLitePath)
	faint.Printf("admin http addr: %s\n", cfg.AdminHTTPAddr)

	if !allGood {
		return fmt.Errorf("one or more checks failed")
	}
	return nil
}

// findFirstExisting returns the first path in paths that exists and is
// not a directory, mirroring internal/session.locateServerJar's search
// order without exporting it solely for this diagnostic.
func findFirstExisting(paths []string) (string, error) {
	for _, p := range paths {
		if p == "" {
			continue
		}
		info, err := os.Stat(p)
		if err == nil && !info.IsDir() {
			return p, nil
		}
	}
	return "", fmt.Errorf("no candidate path exists")
}
