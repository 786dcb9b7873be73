package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"sync"
	"syscall"

	"github.com/screa/rbnb-miner/internal/config"
	logpkg "github.com/screa/rbnb-miner/internal/logger"
	"github.com/screa/rbnb-miner/pkg/address"
	"github.com/screa/rbnb-miner/pkg/balance"
	"github.com/screa/rbnb-miner/pkg/delivery"
	minerpkg "github.com/screa/rbnb-miner/pkg/miner"
	"github.com/screa/rbnb-miner/pkg/queue"
	"github.com/screa/rbnb-miner/pkg/runner"
	"github.com/screa/rbnb-miner/pkg/submitter"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

var (
	cfg         = config.NewConfig()
	configPath  string
	balanceOnce bool
	logger      *logpkg.Logger
	logFile     *os.File
)

func main() {
	var rootCmd = &cobra.Command{
		Use:   "rbnb-miner",
		Short: "rBNB proof-of-work solution miner",
		Long: `Searches for nonces whose keccak256 hash, together with the rBNB challenge and
a payout address, starts with the difficulty prefix, and delivers every solution
found to the validator. With a Redis address solutions are queued first and a
background drain keeps retrying them until the validator accepts or rejects them.`,
		SilenceUsage:      true,
		PersistentPreRunE: loadConfig,
	}

	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "config.toml", "TOML config file (ignored if missing)")
	rootCmd.PersistentFlags().BoolVarP(&cfg.Verbose, "verbose", "v", false, "Verbose output")
	rootCmd.PersistentFlags().StringVarP(&cfg.LogFile, "log-file", "l", "", "Log file (default: stdout)")

	runCmd := &cobra.Command{
		Use:     "run [redis-address]",
		Aliases: []string{"run-miner"},
		Short:   "Mine solutions and deliver them to the validator",
		Args:    cobra.MaximumNArgs(1),
		RunE:    runMiner,
	}
	runCmd.Flags().IntVarP(&cfg.Workers, "workers", "w", runtime.NumCPU(), "Number of worker goroutines")
	runCmd.Flags().StringVarP(&cfg.Difficulty, "difficulty", "d", cfg.Difficulty, "Required hash prefix (hex)")
	runCmd.Flags().StringVarP(&cfg.AddressFile, "address-file", "a", cfg.AddressFile, "File with one payout address per line")
	runCmd.Flags().StringVarP(&cfg.RedisAddr, "redis", "r", "", "Redis address (host:port or redis:// URL); empty submits directly")
	runCmd.Flags().StringVar(&cfg.ValidateURL, "validate-url", cfg.ValidateURL, "Validator endpoint")
	runCmd.Flags().IntVarP(&cfg.Count, "count", "n", 0, "Stop after this many solutions (0: run until interrupted)")
	runCmd.Flags().DurationVar(&cfg.Interval, "interval", 0, "Pause between searches")
	runCmd.Flags().IntVarP(&cfg.LogInterval, "log-interval", "i", cfg.LogInterval, "Progress logging interval in seconds (verbose only)")

	balanceCmd := &cobra.Command{
		Use:     "balance <address>",
		Aliases: []string{"check-balance"},
		Short:   "Poll the validator for the balance of an address",
		Args:    cobra.ExactArgs(1),
		RunE:    checkBalance,
	}
	balanceCmd.Flags().StringVar(&cfg.BalanceURL, "balance-url", cfg.BalanceURL, "Balance endpoint")
	balanceCmd.Flags().DurationVar(&cfg.BalanceInterval, "balance-interval", cfg.BalanceInterval, "Pause between queries")
	balanceCmd.Flags().BoolVar(&balanceOnce, "once", false, "Query once and exit")

	rootCmd.AddCommand(runCmd, balanceCmd)

	err := rootCmd.Execute()
	if logFile != nil {
		_ = logFile.Close()
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// loadConfig overlays the config file onto the defaults, then puts back the
// flags given on the command line so they win over the file.
func loadConfig(cmd *cobra.Command, args []string) error {
	changed := map[string]string{}
	cmd.Flags().Visit(func(f *pflag.Flag) {
		changed[f.Name] = f.Value.String()
	})

	if err := cfg.LoadFile(configPath); err != nil {
		return err
	}
	for name, value := range changed {
		if err := cmd.Flags().Set(name, value); err != nil {
			return fmt.Errorf("flag --%s: %w", name, err)
		}
	}
	return nil
}

func runMiner(cmd *cobra.Command, args []string) error {
	if len(args) == 1 {
		cfg.RedisAddr = args[0]
	}

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return err
	}
	if err := setupLogging(); err != nil {
		return err
	}

	challenge, err := cfg.GetChallenge()
	if err != nil {
		return err
	}

	list, err := address.Load(cfg.AddressFile)
	if err != nil {
		return err
	}
	book, err := address.NewBook(list, cfg.FallbackAddress)
	if err != nil {
		return err
	}

	logger.Printf("Starting rBNB miner with %d workers...", cfg.Workers)
	logger.Printf("Target: %s", cfg.GetTargetDescription())
	logger.Printf("Challenge: %s", challenge.Hex())
	if book.UsesFallback() {
		logger.Warnw("no addresses listed, mining for the fallback address",
			"file", cfg.AddressFile, "address", cfg.FallbackAddress)
	} else {
		logger.Printf("Addresses: %d from %s", book.Len(), cfg.AddressFile)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sub := submitter.New(submitter.Options{
		URL:         cfg.ValidateURL,
		Headers:     cfg.Headers,
		Timeout:     cfg.SubmitTimeout,
		InsecureTLS: cfg.InsecureTLS,
	}, logger)

	var dial queue.Dialer
	if cfg.UseQueue() {
		dial, err = queue.RedisDialer(queue.Options{Addr: cfg.RedisAddr, Key: cfg.QueueKey})
		if err != nil {
			return err
		}
		logger.Printf("Queue: redis %s, key %q", cfg.RedisAddr, cfg.QueueKey)
	} else {
		logger.Printf("Queue: none, submitting directly")
	}

	strategy, err := delivery.New(ctx, delivery.Options{
		PollInterval:    cfg.PollInterval,
		RetryDelay:      cfg.RetryDelay,
		RestartCooldown: cfg.RestartCooldown,
	}, sub, dial, logger)
	if err != nil {
		return err
	}
	defer strategy.Close()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		strategy.Run(ctx)
	}()

	miner := minerpkg.NewMiner(cfg, challenge, logger)
	r := runner.New(runner.Options{
		Challenge: challenge,
		Count:     cfg.Count,
		Interval:  cfg.Interval,
	}, miner, book, strategy, logger)

	err = r.Run(ctx)
	switch {
	case errors.Is(err, context.Canceled):
		logger.Println("Received interrupt signal. Stopping...")
	case err != nil:
		return err
	case cfg.UseQueue():
		// queued solutions still need the drain
		logger.Println("Mining finished; draining the queue until interrupted.")
		<-ctx.Done()
	}
	stop()
	wg.Wait()

	stats := strategy.Stats()
	logger.Infow("delivery summary",
		"found", r.Found(),
		"attempts", miner.Attempts(),
		"enqueued", stats.Enqueued,
		"delivered", stats.Delivered,
		"requeued", stats.Requeued,
		"dropped", stats.Dropped,
		"reconnects", stats.Reconnects,
		"restarts", stats.Restarts,
	)
	return nil
}

func checkBalance(cmd *cobra.Command, args []string) error {
	if err := setupLogging(); err != nil {
		return err
	}

	checker, err := balance.New(balance.Options{
		URL:         cfg.BalanceURL,
		Headers:     cfg.Headers,
		Timeout:     cfg.SubmitTimeout,
		InsecureTLS: cfg.InsecureTLS,
		Interval:    cfg.BalanceInterval,
	}, logger)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if balanceOnce {
		body, err := checker.Check(ctx, args[0])
		if err != nil {
			return err
		}
		fmt.Println(body)
		return nil
	}

	logger.Warnw("the balance endpoint is slow and sometimes never answers", "timeout", cfg.SubmitTimeout)
	checker.Poll(ctx, args[0])
	return nil
}

func setupLogging() error {
	if cfg.LogFile == "" {
		logger = logpkg.New(cfg.Verbose)
		return nil
	}

	file, err := os.OpenFile(cfg.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o666)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	logFile = file
	logger = logpkg.NewWriter(file, cfg.Verbose)
	return nil
}
