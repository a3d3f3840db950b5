// Command terminator: discover and verify IPTV subscription credentials.
//
//	scan   Extract candidates from a text file (or stdin) and bulk-verify
//	fetch  Fetch a web page, extract candidates from its text/links, verify
//	check  Verify a single account or MAC interactively
package main

import (
	"bufio"
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/iptvterm/terminator/internal/check"
	"github.com/iptvterm/terminator/internal/config"
	"github.com/iptvterm/terminator/internal/ingest"
	"github.com/iptvterm/terminator/internal/pagetext"
	"github.com/iptvterm/terminator/internal/report"
	"github.com/iptvterm/terminator/internal/scheduler"
	"github.com/iptvterm/terminator/internal/session"
	"github.com/iptvterm/terminator/internal/stalker"
	"github.com/iptvterm/terminator/internal/xtream"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "terminator",
	Short: "Discover and verify IPTV subscription credentials",
	Long: `terminator extracts account and device candidates from freeform text or
web pages and verifies them against Xtream-style and Stalker/Ministra
backends, producing a report of working accounts.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		cfg = config.Load()
		if cfg.MetricsAddr != "" {
			go serveMetrics(cfg.MetricsAddr)
		}
	},
}

var scanCmd = &cobra.Command{
	Use:   "scan [file]",
	Short: "Extract candidates from a file (or stdin with -) and bulk-verify them",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		lines, err := readLines(args[0])
		if err != nil {
			return err
		}
		return runBulk(cmd.Context(), lines)
	},
}

var fetchCmd = &cobra.Command{
	Use:   "fetch URL",
	Short: "Fetch a page, extract candidates from its text and links, verify them",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		lines, err := pagetext.Fetch(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		log.Printf("[fetch] %d text/link lines from %s", len(lines), args[0])
		return runBulk(cmd.Context(), lines)
	},
}

var (
	checkHost string
	checkUser string
	checkPass string
	checkMAC  string
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Verify a single account (host/user/pass) or device (host/mac)",
	RunE: func(cmd *cobra.Command, args []string) error {
		if checkHost == "" {
			return fmt.Errorf("--host is required")
		}
		if checkMAC == "" && (checkUser == "" || checkPass == "") {
			return fmt.Errorf("need --user and --pass, or --mac")
		}
		return runCheck(cmd.Context())
	},
}

func init() {
	checkCmd.Flags().StringVar(&checkHost, "host", "", "portal host URL")
	checkCmd.Flags().StringVar(&checkUser, "user", "", "username")
	checkCmd.Flags().StringVar(&checkPass, "pass", "", "password")
	checkCmd.Flags().StringVar(&checkMAC, "mac", "", "device MAC (AA:BB:CC:DD:EE:FF)")
	rootCmd.AddCommand(scanCmd, fetchCmd, checkCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func readLines(path string) ([]string, error) {
	var r *os.File
	if path == "-" {
		r = os.Stdin
	} else {
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		r = f
	}
	var lines []string
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		lines = append(lines, sc.Text())
	}
	return lines, sc.Err()
}

// runBulk feeds extracted candidates through the scheduler and prints the
// ordered success list for selection.
func runBulk(ctx context.Context, lines []string) error {
	accounts := ingest.Extract(lines)
	macs := ingest.ExtractHostMacPairs(strings.Join(lines, "\n")).Candidates()
	log.Printf("[scan] %d account candidate(s), %d host/MAC pair(s)", len(accounts), len(macs))

	candidates := make([]check.Candidate, 0, len(accounts)+len(macs))
	for _, a := range accounts {
		candidates = append(candidates, a)
	}
	for _, m := range macs {
		candidates = append(candidates, m)
	}

	opts := scheduler.Options{
		Workers:    cfg.Workers,
		RatePerSec: cfg.RatePerSec,
		OutputDir:  cfg.OutputDir,
	}
	if cfg.HistoryDB != "" {
		h, err := report.OpenHistory(cfg.HistoryDB)
		if err != nil {
			log.Printf("[scan] history disabled: %v", err)
		} else {
			defer h.Close()
			opts.History = h
		}
	}

	sched := scheduler.New(xtream.New(cfg.BulkTimeout), stalker.New(cfg.BulkTimeout), opts)
	sum, successes, err := sched.Run(ctx, candidates)
	if err != nil {
		return err
	}
	fmt.Printf("Checked %d, active %d. Report: %s\n", sum.Checked, sum.Active, sum.ReportPath)
	for i, r := range successes {
		fmt.Printf("%2d) %s  %s  exp %s\n", i+1, r.Host, r.Identity(), r.Expiry)
	}
	return nil
}

// runCheck is the interactive single-account path, with the recovery steps
// that never apply to bulk candidates.
func runCheck(ctx context.Context) error {
	prober := xtream.New(cfg.CheckTimeout)
	var res check.VerificationResult
	if checkMAC != "" {
		cand := check.MacCandidate{Host: checkHost, MAC: check.NormalizeMAC(checkMAC)}
		res = prober.VerifyMAC(ctx, cand)
		if !res.IsActive() {
			res = stalker.New(cfg.CheckTimeout).Solve(ctx, cand)
		}
	} else {
		res = prober.VerifyAccount(ctx, check.AccountCandidate{Host: checkHost, Username: checkUser, Password: checkPass})
	}
	if !res.IsActive() {
		fmt.Printf("FAILED  %s %s\n", res.Outcome, res.Reason)
		return nil
	}
	s, err := session.FromResult(res)
	if err != nil {
		return err
	}
	if s.AuthMode == session.ModeMAC {
		s = session.NewRecovery().Recover(ctx, s)
	}
	fmt.Println("LOGIN SUCCESS")
	fmt.Printf("Host: %s\nMode: %s\n", s.Host, s.AuthMode)
	if s.AuthMode == session.ModeCredentials {
		fmt.Printf("User: %s\nPass: %s\n", s.Username, s.Password)
	} else {
		fmt.Printf("MAC: %s\n", s.MAC)
	}
	if s.Limited {
		fmt.Println("Note: credential recovery failed; session is MAC-only (limited)")
	}
	fmt.Printf("Exp: %s", s.Expiry)
	if s.DaysLeft != check.DaysUnlimited {
		fmt.Printf(" (%d days left)", s.DaysLeft)
	}
	fmt.Println()
	if res.ActiveCons != "" || res.MaxConns != "" {
		fmt.Printf("Connections: %s/%s\n", res.ActiveCons, res.MaxConns)
	}
	if res.CreatedAt != "" {
		fmt.Printf("Created: %s\n", res.CreatedAt)
	}
	return nil
}

func serveMetrics(addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	if err := http.ListenAndServe(addr, mux); err != nil {
		log.Printf("[metrics] %v", err)
	}
}
