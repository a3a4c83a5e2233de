package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"text/tabwriter"
	"time"

	goToken "github.com/MrEthical07/goToken"
	"github.com/MrEthical07/goToken/cleanup"
	"github.com/MrEthical07/goToken/metrics/export/prometheus"
)

type command struct {
	name    string
	usage   string
	summary string
	minArgs int
	run     func(ctx context.Context, a *app, args []string, out io.Writer) error
}

// commands is the complete subcommand table.
var commands = []command{
	{name: "purge", summary: "delete revocation records whose tokens have expired", run: runPurge},
	{name: "serve-cleanup", usage: "[-now]", summary: "purge on the configured cron schedule until interrupted", run: runServeCleanup},
	{name: "list", usage: "<subject>", summary: "list revoked token ids of a subject", minArgs: 1, run: runList},
	{name: "revoke", usage: "<jti> <subject> <access|refresh> [reason]", summary: "revoke one token id", minArgs: 3, run: runRevoke},
	{name: "revoke-all", usage: "<subject> [reason]", summary: "revoke every token issued to a subject so far", minArgs: 1, run: runRevokeAll},
	{name: "check", usage: "<jti|token>", summary: "report whether a token id or raw token is revoked", minArgs: 1, run: runCheck},
	{name: "loadtest", usage: "[-subjects n] [-concurrency n] [-ops n]", summary: "measure verify and revoke latency against the store", run: runLoadtest},
}

func lookupCommand(name string) (command, bool) {
	for _, c := range commands {
		if c.name == name {
			return c, true
		}
	}
	return command{}, false
}

func runPurge(ctx context.Context, a *app, _ []string, out io.Writer) error {
	n, err := a.engine.PurgeExpired(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "purged %d records\n", n)
	return nil
}

func runServeCleanup(ctx context.Context, a *app, args []string, out io.Writer) error {
	runNow := len(args) > 0 && args[0] == "-now"

	s, err := cleanup.New(a.engine, a.cfg.Cleanup, a.logger)
	if err != nil {
		return err
	}
	if runNow {
		if _, err := s.RunOnce(ctx); err != nil {
			return err
		}
	}

	var srv *http.Server
	if a.cfg.Metrics.Listen != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", prometheus.New(a.engine).Handler())
		mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
			h := a.engine.Health(r.Context())
			if !h.StoreAvailable {
				w.WriteHeader(http.StatusServiceUnavailable)
			}
			_ = json.NewEncoder(w).Encode(h)
		})
		srv = &http.Server{Addr: a.cfg.Metrics.Listen, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				a.logger.Error().Err(err).Msg("metrics listener failed")
			}
		}()
		a.logger.Info().Str("addr", a.cfg.Metrics.Listen).Msg("serving metrics")
	}

	s.Start()
	fmt.Fprintf(out, "cleanup scheduled, next run %s\n", s.Next().Format(time.RFC3339))
	<-ctx.Done()

	<-s.Stop().Done()
	if srv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}
	_, runs := s.Last()
	fmt.Fprintf(out, "cleanup stopped after %d runs\n", runs)
	return nil
}

func runList(ctx context.Context, a *app, args []string, out io.Writer) error {
	records, err := a.engine.ListRevokedForSubject(ctx, args[0])
	if err != nil {
		return err
	}
	if len(records) == 0 {
		fmt.Fprintln(out, "no revoked tokens")
		return nil
	}

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "JTI\tTYPE\tREASON\tREVOKED AT\tEXPIRES AT")
	for _, r := range records {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", r.TokenID, r.TokenType, r.Reason,
			r.RevokedAt.UTC().Format(time.RFC3339), r.ExpiresAt.UTC().Format(time.RFC3339))
	}
	return tw.Flush()
}

func runRevoke(ctx context.Context, a *app, args []string, out io.Writer) error {
	typ := goToken.TokenType(strings.ToLower(args[2]))
	if typ != goToken.TokenAccess && typ != goToken.TokenRefresh {
		return errUsage
	}
	reason := goToken.ReasonAdminRevoke
	if len(args) > 3 {
		reason = args[3]
	}

	err := a.engine.RevokeToken(ctx, args[0], args[1], typ, reason)
	switch {
	case errors.Is(err, goToken.ErrAlreadyRevoked):
		fmt.Fprintf(out, "%s already revoked\n", args[0])
		return nil
	case err != nil:
		return err
	}
	fmt.Fprintf(out, "revoked %s (%s)\n", args[0], reason)
	return nil
}

func runRevokeAll(ctx context.Context, a *app, args []string, out io.Writer) error {
	reason := goToken.ReasonAdminRevoke
	if len(args) > 1 {
		reason = args[1]
	}
	validSince, err := a.engine.RevokeAllForSubject(ctx, args[0], reason)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "tokens of %s issued before %s are revoked\n", args[0], validSince.UTC().Format(time.RFC3339))
	return nil
}

// runCheck treats an argument with two dots as a raw token and anything else
// as a token id.
func runCheck(ctx context.Context, a *app, args []string, out io.Writer) error {
	arg := strings.TrimSpace(args[0])
	if strings.Count(arg, ".") == 2 {
		info, err := a.engine.Introspect(ctx, arg)
		if err != nil {
			return err
		}
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(info)
	}

	revoked, err := a.engine.IsTokenRevoked(ctx, arg)
	if err != nil {
		return err
	}
	if revoked {
		fmt.Fprintf(out, "%s revoked\n", arg)
	} else {
		fmt.Fprintf(out, "%s not revoked\n", arg)
	}
	return nil
}
