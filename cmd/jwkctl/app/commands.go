// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package app provides the entry point for the jwkctl command-line application.
package app

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/stacklok/jwkprovider/pkg/config"
	"github.com/stacklok/jwkprovider/pkg/jwks"
	"github.com/stacklok/jwkprovider/pkg/logger"
)

// cliContext carries the settings shared by every subcommand.
type cliContext struct {
	settings   *viper.Viper
	configPath string
}

// loadConfig resolves the effective configuration from file, environment and flags.
func (c *cliContext) loadConfig() (*config.Config, error) {
	return config.Load(c.settings, c.configPath)
}

// buildProvider builds the provider chain from the effective configuration.
func (c *cliContext) buildProvider() (jwks.Provider, error) {
	cfg, err := c.loadConfig()
	if err != nil {
		return nil, err
	}
	return cfg.Options().Build()
}

// NewRootCmd creates a new root command for the jwkctl CLI.
func NewRootCmd() *cobra.Command {
	cli := &cliContext{settings: config.NewViper()}

	rootCmd := &cobra.Command{
		Use:               "jwkctl",
		DisableAutoGenTag: true,
		SilenceUsage:      true,
		Short:             "jwkctl fetches JSON Web Keys from a JWKS endpoint",
		Long: `jwkctl fetches JSON Web Keys from a remote JWKS endpoint through the same
cached and rate limited provider chain that applications embed.

The endpoint is given as a bare domain (served from /.well-known/jwks.json over
HTTPS) or as a full URL. Settings are read from a YAML config file, JWKS_*
environment variables and flags, in increasing order of precedence.`,
		PersistentPreRun: func(_ *cobra.Command, _ []string) {
			logger.Initialize()
		},
		Run: func(cmd *cobra.Command, _ []string) {
			// If no subcommand is provided, print help
			if err := cmd.Help(); err != nil {
				logger.Errorf("Error displaying help: %v", err)
			}
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.Bool("debug", false, "Enable debug mode")
	flags.StringVar(&cli.configPath, "config", "", "Path to the config file (default is the XDG config location)")
	flags.String("domain", "", "JWKS domain or URL")
	flags.Bool("cache", true, "Cache fetched keys")
	flags.Bool("rate-limit", true, "Rate limit requests to the JWKS endpoint")
	flags.Duration("connect-timeout", 0, "Connect timeout for the JWKS endpoint")
	flags.Duration("read-timeout", 0, "Read timeout for the JWKS endpoint")
	flags.String("ca-bundle", "", "PEM bundle used to verify the JWKS endpoint")
	flags.Bool("allow-private-ip", false, "Allow JWKS endpoints on private IP addresses")
	flags.Bool("insecure-allow-http", false, "Allow plain HTTP JWKS endpoints")

	if err := viper.BindPFlag("debug", flags.Lookup("debug")); err != nil {
		logger.Errorf("Error binding debug flag: %v", err)
	}
	for key, flag := range map[string]string{
		"domain":                   "domain",
		"cache.enabled":            "cache",
		"rate_limit.enabled":       "rate-limit",
		"http.connect_timeout":     "connect-timeout",
		"http.read_timeout":        "read-timeout",
		"http.ca_bundle":           "ca-bundle",
		"http.allow_private_ip":    "allow-private-ip",
		"http.insecure_allow_http": "insecure-allow-http",
	} {
		if err := cli.settings.BindPFlag(key, flags.Lookup(flag)); err != nil {
			logger.Errorf("Error binding %s flag: %v", flag, err)
		}
	}

	rootCmd.AddCommand(newGetCmd(cli))
	rootCmd.AddCommand(newListCmd(cli))
	rootCmd.AddCommand(newConfigCmd(cli))
	rootCmd.AddCommand(newWatchCmd(cli))
	rootCmd.AddCommand(newVersionCmd())

	return rootCmd
}
