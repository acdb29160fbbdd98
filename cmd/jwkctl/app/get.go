// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package app

import (
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"io"

	"github.com/golang-jwt/jwt/v5"
	"github.com/spf13/cobra"

	"github.com/stacklok/jwkprovider/pkg/jwks"
)

func newGetCmd(cli *cliContext) *cobra.Command {
	var (
		format string
		token  string
	)

	cmd := &cobra.Command{
		Use:   "get [kid]",
		Short: "Fetch a single key by key ID",
		Long: `Fetch the key with the given key ID from the JWKS endpoint.
When the key ID is omitted and the endpoint publishes exactly one key, that key is returned.
With --token the key ID is read from the header of the given JWT. The token is not verified.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := validateFormat(format, formatTable, formatJSON, formatPEM); err != nil {
				return err
			}

			kid := ""
			switch {
			case len(args) == 1 && token != "":
				return errors.New("a key ID and --token cannot be used together")
			case len(args) == 1:
				kid = args[0]
			case token != "":
				var err error
				if kid, err = keyIDFromToken(token); err != nil {
					return err
				}
			}

			provider, err := cli.buildProvider()
			if err != nil {
				return err
			}

			key, err := provider.Get(cmd.Context(), kid)
			if err != nil {
				return fmt.Errorf("failed to get key: %w", err)
			}

			out := cmd.OutOrStdout()
			switch format {
			case formatJSON:
				return printJSON(out, key)
			case formatPEM:
				return printPublicKeyPEM(out, key)
			default:
				return printKeyTable(out, []*jwks.Key{key})
			}
		},
	}

	cmd.Flags().StringVar(&format, "format", formatTable, "Output format (table, json or pem)")
	cmd.Flags().StringVar(&token, "token", "", "JWT whose kid header selects the key")

	return cmd
}

// printPublicKeyPEM writes the public key in PKIX PEM form.
func printPublicKeyPEM(w io.Writer, key *jwks.Key) error {
	publicKey, err := key.PublicKey()
	if err != nil {
		return err
	}
	der, err := x509.MarshalPKIXPublicKey(publicKey)
	if err != nil {
		return fmt.Errorf("failed to encode public key: %w", err)
	}
	return pem.Encode(w, &pem.Block{Type: "PUBLIC KEY", Bytes: der})
}

// keyIDFromToken reads the kid header of a JWT without verifying it.
func keyIDFromToken(tokenString string) (string, error) {
	parser := jwt.NewParser(jwt.WithoutClaimsValidation())
	token, _, err := parser.ParseUnverified(tokenString, jwt.MapClaims{})
	if err != nil {
		return "", fmt.Errorf("failed to parse token: %w", err)
	}
	kid, ok := token.Header["kid"].(string)
	if !ok || kid == "" {
		return "", errors.New("token header has no kid")
	}
	return kid, nil
}
