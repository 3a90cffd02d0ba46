package main

import (
	"fmt"
	"log"
	"math/rand"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/silvabox/orchestrate-go/internal/seed"
	"github.com/silvabox/orchestrate-go/pkg/orchestrate/mock"
)

var (
	addr     string
	apiKey   string
	seedPath string
	latency  time.Duration
	failFlag string
)

type failConfig struct {
	rate float64
	code int
}

var rootCmd = &cobra.Command{
	Use:   "orchestrate-sandbox",
	Short: "In-memory document/graph service speaking the Orchestrate wire protocol",
	Long: `orchestrate-sandbox serves an in-memory implementation of the document/graph
API for local development: versioned key/value documents, ref preconditions,
graph edges and multi-hop relation listings. State lives in memory and is lost
on exit. Optionally seeds documents and relations from a JSON or YAML file and
injects latency or failures to exercise client retry and error handling.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return run()
	},
}

// Execute runs the root command. Called by main.main().
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.Flags().StringVar(&addr, "addr", ":8787", "listen address")
	rootCmd.Flags().StringVar(&apiKey, "api-key", "", "required API key (any non-empty key accepted when unset)")
	rootCmd.Flags().StringVar(&seedPath, "seed", "", "path to JSON or YAML seed file")
	rootCmd.Flags().DurationVar(&latency, "latency", 0, "artificial latency to inject per request")
	rootCmd.Flags().StringVar(&failFlag, "fail", "", "failure injection (rate=<float>,code=<httpStatus>)")
}

func run() error {
	var opts []mock.Option
	if apiKey != "" {
		opts = append(opts, mock.WithAPIKey(apiKey))
	}
	server := mock.New(opts...)

	if seedPath != "" {
		entries, err := seed.Load(seedPath)
		if err != nil {
			return fmt.Errorf("load seed: %w", err)
		}
		if err := server.Seed(entries); err != nil {
			return fmt.Errorf("apply seed: %w", err)
		}
		log.Printf("seeded %d documents from %s", len(entries), seedPath)
	}

	failCfg, err := parseFailConfig(failFlag)
	if err != nil {
		return fmt.Errorf("parse fail flag: %w", err)
	}

	httpServer := &http.Server{
		Addr:    addr,
		Handler: withMiddleware(latency, failCfg, server),
	}

	log.Printf("orchestrate-sandbox listening on %s", addr)
	return httpServer.ListenAndServe()
}

func withMiddleware(latency time.Duration, fail failConfig, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if latency > 0 {
			time.Sleep(latency)
		}
		if fail.rate > 0 && rand.Float64() < fail.rate {
			http.Error(w, http.StatusText(fail.code), fail.code)
			return
		}
		log.Printf("%s %s", r.Method, r.URL.Path)
		next.ServeHTTP(w, r)
	})
}

func parseFailConfig(value string) (failConfig, error) {
	cfg := failConfig{code: http.StatusInternalServerError}
	if value == "" {
		return cfg, nil
	}
	for _, part := range strings.Split(value, ",") {
		kv := strings.SplitN(part, "=", 2)
		if len(kv) != 2 {
			return cfg, fmt.Errorf("invalid fail segment %q", part)
		}
		switch kv[0] {
		case "rate":
			rate, err := strconv.ParseFloat(kv[1], 64)
			if err != nil || rate < 0 || rate > 1 {
				return cfg, fmt.Errorf("invalid fail rate %q", kv[1])
			}
			cfg.rate = rate
		case "code":
			code, err := strconv.Atoi(kv[1])
			if err != nil || code < 400 || code > 599 {
				return cfg, fmt.Errorf("invalid fail code %q", kv[1])
			}
			cfg.code = code
		default:
			return cfg, fmt.Errorf("unknown fail key %q", kv[0])
		}
	}
	return cfg, nil
}
