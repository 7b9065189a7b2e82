package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"sort"
	"syscall"

	"github.com/dtroode/dnavault-client/internal/config"
	"github.com/dtroode/dnavault-client/internal/logger"
)

var (
	buildVersion = "N/A" // set by ldflags
	buildDate    = "N/A" // set by ldflags
	buildCommit  = "N/A" // set by ldflags
)

// Exit codes.
const (
	exitOK      = 0
	exitFailed  = 1
	exitUsage   = 2
	exitStartup = 3
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT, os.Interrupt)

	cfg, err := config.NewConfig()
	if err != nil {
		log.Fatalf("failed to parse config: %v", err)
	}
	logger := logger.New(cfg.LogLevel)

	code := run(ctx, os.Args[1:], cfg, logger, os.Stdin, os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

// run executes one command and returns the process exit code.
func run(ctx context.Context, args []string, cfg *config.Config, logger *logger.Logger, stdin io.Reader, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		printUsage(stderr)
		return exitUsage
	}

	name, rest := args[0], args[1:]
	switch name {
	case "help", "-h", "-help", "--help":
		printUsage(stdout)
		return exitOK
	case "version":
		printVersion(stdout)
		return exitOK
	}

	cmd, ok := commands[name]
	if !ok {
		fmt.Fprintf(stderr, "unknown command %q\n", name)
		printUsage(stderr)
		return exitUsage
	}

	a, err := newApp(ctx, cfg, logger, stdin, stdout, stderr)
	if err != nil {
		logger.Error("failed to initialize client", "error", err.Error())
		return exitStartup
	}
	defer func() {
		if err := a.close(); err != nil {
			logger.Warn("failed to shut down cleanly", "error", err.Error())
		}
	}()

	err = cmd(ctx, a, rest)
	switch {
	case err == nil:
		return exitOK
	case errors.Is(err, errUsage):
		return exitUsage
	case errors.Is(err, errFailed):
		return exitFailed
	default:
		fmt.Fprintf(stderr, "dnavault %s: %v\n", name, err)
		return exitFailed
	}
}

func printUsage(w io.Writer) {
	names := make([]string, 0, len(usages))
	for name := range usages {
		names = append(names, name)
	}
	sort.Strings(names)

	fmt.Fprintln(w, "usage: dnavault <command> [flags]")
	fmt.Fprintln(w)
	for _, name := range names {
		fmt.Fprintf(w, "  %s\n", usages[name])
	}
	fmt.Fprintln(w, "  version")
}

func printVersion(w io.Writer) {
	tmpl := `Build version: %s
Build date: %s
Build commit: %s
`

	fmt.Fprintf(w, tmpl, buildVersion, buildDate, buildCommit)
}
