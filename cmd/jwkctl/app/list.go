// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package app

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/stacklok/jwkprovider/pkg/jwks"
)

func newListCmd(cli *cliContext) *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List every key published by the JWKS endpoint",
		Long: `List every key published by the JWKS endpoint.
The key set is always fetched directly; caching and rate limiting do not apply.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := validateFormat(format, formatTable, formatJSON); err != nil {
				return err
			}

			cfg, err := cli.loadConfig()
			if err != nil {
				return err
			}
			opts := cfg.Options()
			opts.CacheEnabled = false
			opts.RateLimitEnabled = false

			provider, err := opts.Build()
			if err != nil {
				return err
			}
			urlProvider, ok := provider.(*jwks.URLProvider)
			if !ok {
				return fmt.Errorf("unexpected provider type %T", provider)
			}

			keys, err := urlProvider.GetAll(cmd.Context())
			if err != nil {
				return fmt.Errorf("failed to list keys: %w", err)
			}

			out := cmd.OutOrStdout()
			if format == formatJSON {
				return printJSON(out, keys)
			}
			if len(keys) == 0 {
				_, err := fmt.Fprintf(out, "No keys published at %s\n", urlProvider.URL())
				return err
			}
			return printKeyTable(out, keys)
		},
	}

	cmd.Flags().StringVar(&format, "format", formatTable, "Output format (table or json)")

	return cmd
}
