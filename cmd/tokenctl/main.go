// Command tokenctl operates a goToken revocation store: purging expired
// records, running the cleanup schedule, inspecting and revoking tokens.
//
//	tokenctl [-config tokenctl.yaml] [-memory-redis] <command> [args]
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

var errUsage = errors.New("usage")

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("tokenctl", flag.ContinueOnError)
	fs.SetOutput(stderr)
	configPath := fs.String("config", "tokenctl.yaml", "path to the YAML configuration file")
	memoryRedis := fs.Bool("memory-redis", false, "use an embedded in-memory redis instead of redis.addr")
	fs.Usage = func() { printUsage(stderr, fs) }
	if err := fs.Parse(args); err != nil {
		return 2
	}

	rest := fs.Args()
	if len(rest) == 0 {
		fs.Usage()
		return 2
	}
	cmd, ok := lookupCommand(rest[0])
	if !ok {
		fmt.Fprintf(stderr, "unknown command %q\n\n", rest[0])
		fs.Usage()
		return 2
	}
	cmdArgs := rest[1:]
	if len(cmdArgs) < cmd.minArgs {
		fmt.Fprintf(stderr, "usage: tokenctl %s %s\n", cmd.name, cmd.usage)
		return 2
	}

	cfg, err := Load(*configPath)
	if err != nil {
		fmt.Fprintf(stderr, "load config: %v\n", err)
		return 1
	}
	a, err := newApp(cfg, *memoryRedis, stderr)
	if err != nil {
		fmt.Fprintf(stderr, "%v\n", err)
		return 1
	}
	defer a.Close()

	if err := cmd.run(ctx, a, cmdArgs, stdout); err != nil {
		if errors.Is(err, errUsage) {
			fmt.Fprintf(stderr, "usage: tokenctl %s %s\n", cmd.name, cmd.usage)
			return 2
		}
		a.logger.Error().Err(err).Str("command", cmd.name).Msg("command failed")
		return 1
	}
	return 0
}

func printUsage(w io.Writer, fs *flag.FlagSet) {
	fmt.Fprintln(w, "usage: tokenctl [flags] <command> [args]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "commands:")
	for _, c := range commands {
		fmt.Fprintf(w, "  %-14s %s\n", c.name, c.summary)
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, "flags:")
	fs.PrintDefaults()
}
