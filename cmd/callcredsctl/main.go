package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"runtime"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/gcpauth/callcreds/internal/config"
	"github.com/gcpauth/callcreds/internal/credentials"
)

var (
	version   = "0.1.0"
	buildDate = "unknown"
	gitCommit = "unknown"
	logger    = logrus.New()
)

var rootCmd = &cobra.Command{
	Use:   "callcredsctl",
	Short: "Inspect and exercise the call-credentials subsystem",
	Long: `callcredsctl resolves Application Default Credentials, fetches a
bearer token from any supported identity provider, and validates
STS option files — all against the same credentials package an RPC
client would embed.`,
}

var resolveCmd = &cobra.Command{
	Use:   "resolve",
	Short: "Resolve Application Default Credentials and print a token",
	RunE:  runResolve,
}

var fetchCmd = &cobra.Command{
	Use:   "fetch [credentials-file]",
	Short: "Load a credentials JSON file and fetch an access token",
	Args:  cobra.ExactArgs(1),
	RunE:  runFetch,
}

var validateCmd = &cobra.Command{
	Use:   "validate [credentials-file]",
	Short: "Validate an STS options file without fetching (other credential types are not recognized)",
	Args:  cobra.ExactArgs(1),
	RunE:  runValidate,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("callcredsctl version %s\n", version)
		fmt.Printf("Build date: %s\n", buildDate)
		fmt.Printf("Git commit: %s\n", gitCommit)
		fmt.Printf("Go version: %s\n", runtime.Version())
		fmt.Printf("OS/Arch: %s/%s\n", runtime.GOOS, runtime.GOARCH)
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringP("config", "c", "", "Path to a callcredsctl config file (JSON or YAML)")
	rootCmd.PersistentFlags().StringP("log-level", "l", "info", "Set log level")

	viper.BindPFlag("config_file", rootCmd.PersistentFlags().Lookup("config"))
	viper.BindPFlag("log_level", rootCmd.PersistentFlags().Lookup("log-level"))

	rootCmd.AddCommand(resolveCmd, fetchCmd, validateCmd, versionCmd)
}

func initConfig() {
	viper.SetEnvPrefix("CALLCREDS")
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))

	level, err := logrus.ParseLevel(viper.GetString("log_level"))
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true, TimestampFormat: time.RFC3339})
}

func loadConfig() (*config.Config, error) {
	loader := config.NewLoader()
	cfg, err := loader.LoadConfig(viper.GetString("config_file"))
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	if err := config.NewValidator(cfg).Validate(); err != nil {
		logger.Warnf("config validation: %v", err)
	}
	return cfg, nil
}

func runResolve(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.HTTPTimeout())
	defer cancel()

	var override credentials.CallCredential
	if cfg.ADCOverridePath != "" {
		data, err := os.ReadFile(cfg.ADCOverridePath)
		if err != nil {
			return fmt.Errorf("reading adc_override_path: %w", err)
		}
		override, err = credentials.NewCallCredentialFromJSON(data, nil)
		if err != nil {
			return fmt.Errorf("parsing adc_override_path: %w", err)
		}
	}

	channelCred, err := credentials.CreateDefaultCredentials(ctx, override)
	if err != nil {
		return fmt.Errorf("resolving default credentials: %w", err)
	}
	if channelCred == nil {
		return fmt.Errorf("no default credentials found")
	}

	logger.Infof("resolved default credentials: %s", channelCred.CompareType())
	return printToken(ctx, channelCred.CallCredential())
}

func runFetch(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	data, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("reading credentials file: %w", err)
	}

	call, err := credentials.NewCallCredentialFromJSON(data, nil)
	if err != nil {
		return fmt.Errorf("parsing credentials file: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.HTTPTimeout())
	defer cancel()
	return printToken(ctx, call)
}

func runValidate(cmd *cobra.Command, args []string) error {
	data, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("reading options file: %w", err)
	}

	var opts credentials.STSOptions
	if err := json.Unmarshal(data, &opts); err != nil {
		return fmt.Errorf("parsing STS options: %w", err)
	}
	if err := credentials.ValidateSTSOptionsVerbose(opts); err != nil {
		return err
	}

	fmt.Println("OK")
	return nil
}

func printToken(ctx context.Context, call credentials.CallCredential) error {
	md, err := call.GetRequestMetadata(ctx, credentials.AuthMetadataContext{})
	if err != nil {
		return fmt.Errorf("fetching request metadata: %w", err)
	}
	for k, v := range md {
		fmt.Printf("%s: %s\n", k, v)
	}
	return nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		logger.Error(err)
		os.Exit(1)
	}
}
