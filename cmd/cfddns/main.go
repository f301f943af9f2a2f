package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/cloudflare/cloudflare-go"
	"go.uber.org/zap"
	"golang.org/x/term"

	"github.com/dyndns-tools/cfddns"
)

var config = struct {
	KeyFile string
	IP      string
	Sources string
	Once    bool
	DryRun  bool
	Verbose bool
}{}

func init() {
	flag.StringVar(&config.KeyFile, "k", filepath.Join(os.Getenv("HOME"), ".cloudflare"), "Path to cloudflare API credentials file, used when CF_API_TOKEN is not set")
	flag.StringVar(&config.IP, "ip", "", "Skip public IP discovery and use this address")
	flag.StringVar(&config.Sources, "sources", "", "Comma-separated list of public IP echo service URLs")
	flag.BoolVar(&config.Once, "once", false, "Run a single update cycle and exit")
	flag.BoolVar(&config.DryRun, "dry-run", false, "Report what would change without updating the record")
	flag.BoolVar(&config.Verbose, "v", false, "Enable debug logging")
	flag.Parse()
}

func main() {
	logger := mustNewLogger(config.Verbose).Named("cfddns")
	defer logger.Sync()

	if err := run(logger); err != nil {
		logger.Fatal("exiting", zap.Error(err))
	}
}

func mustNewLogger(verbose bool) *zap.Logger {
	cfg := zap.NewProductionConfig()
	if verbose {
		cfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	}
	logger, err := cfg.Build(
		zap.AddCaller(),
		zap.AddStacktrace(zap.DPanicLevel),
	)
	if err != nil {
		panic(fmt.Errorf("could not create new logger: %w", err))
	}
	return logger
}

func run(logger *zap.Logger) error {
	if os.Getenv(cfddns.EnvAPIToken) == "" {
		key, err := tokenFromKeyFile(logger)
		if err != nil {
			return fmt.Errorf("error reading key: %w", err)
		}
		os.Setenv(cfddns.EnvAPIToken, key)
		logger.Debug("api token loaded from key file", zap.String("path", config.KeyFile))
	}

	cfg, err := cfddns.ConfigFromEnv()
	if err != nil {
		return err
	}

	client, err := cfddns.NewCloudflare(cfg.APIToken, cfg.ZoneID, cfg.RecordID,
		cfddns.WithLogger(logger.Named("cloudflare")),
	)
	if err != nil {
		return err
	}

	resolver, err := newResolver()
	if err != nil {
		return err
	}

	updater := &cfddns.Updater{
		Provider: client,
		Resolver: resolver,
		Logger:   logger.Named("updater"),
		DryRun:   config.DryRun,
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go handleSignals(cancel, logger)

	if config.Once {
		outcome, err := updater.RunOnce(ctx)
		if err != nil {
			return err
		}
		logger.Info("cycle finished", zap.Stringer("outcome", outcome))
		return nil
	}

	scheduler := &cfddns.Scheduler{
		Cycler:   updater,
		Interval: cfg.Interval,
		Logger:   logger.Named("scheduler"),
	}
	return scheduler.Run(ctx)
}

func newResolver() (cfddns.Resolver, error) {
	if config.IP != "" {
		return cfddns.FromString(config.IP)
	}
	if config.Sources != "" {
		return cfddns.WebResolver(strings.Split(config.Sources, ",")...), nil
	}
	return cfddns.WebResolver(), nil
}

func handleSignals(cancel func(), logger *zap.Logger) {
	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)
	<-signals
	logger.Info("received shutdown signal, terminating")
	cancel()
}

func tokenFromKeyFile(logger *zap.Logger) (string, error) {
	_, err := os.Stat(config.KeyFile)
	if os.IsNotExist(err) {
		logger.Info("key file does not exist", zap.String("path", config.KeyFile))
		if err := runSetup(logger); err != nil {
			return "", fmt.Errorf("setup: %w", err)
		}
	}
	if err := verifyPermissions(config.KeyFile); err != nil {
		return "", err
	}
	return readKey(config.KeyFile)
}

func readKey(path string) (key string, err error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("error reading key: %w", err)
	}
	defer f.Close()

	r := bufio.NewReader(f)
	keyb, _, err := r.ReadLine()
	if err != nil {
		return "", fmt.Errorf("error reading line: %w", err)
	}
	return string(keyb), nil
}

func verifyPermissions(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("error checking keyfile permissions: %w", err)
	}

	perms := info.Mode().Perm()
	// Error messages will state that we want 0600,
	// but we'll also accept 0400 which is even more restricted.
	// The file might be provided by some secrets managing software as readonly.
	if perms != 0600 && perms != 0400 {
		return fmt.Errorf("invalid permissions for \"%s\": expected file permissions \"-rw-------\"; found \"%s\"", path, fs.FileMode(perms))
	}

	return nil
}

func runSetup(logger *zap.Logger) error {
	if !term.IsTerminal(int(syscall.Stdin)) {
		return errors.New("no api token in environment or key file, and stdin is not a terminal")
	}
	time.Sleep(200 * time.Millisecond) // dirty timer hack to try to get stderr and stdout output lines to display in order
	fmt.Printf("Enter Cloudflare API Key: \n")
	bytekey, err := term.ReadPassword(int(syscall.Stdin))
	if err != nil {
		return fmt.Errorf("error reading from stdin: %w", err)
	}
	key := string(bytekey)

	api, err := cloudflare.NewWithAPIToken(key)
	if err != nil {
		return fmt.Errorf("error creating api client: %w", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	logger.Info("verifying token")
	result, err := api.VerifyAPIToken(ctx)
	if err != nil {
		return fmt.Errorf("unable to verify api token: %w", err)
	}
	if result.Status != "active" {
		return fmt.Errorf("expected api token status to be \"active\"; got \"%s\"", result.Status)
	}
	logger.Info("token verified successfully")

	f, err := os.OpenFile(config.KeyFile, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0600)
	if err != nil {
		return fmt.Errorf("unable to create \"%s\": %w", config.KeyFile, err)
	}
	defer f.Close()
	fmt.Fprintln(f, key)
	logger.Info("token written to key file", zap.String("path", config.KeyFile))
	return nil
}
