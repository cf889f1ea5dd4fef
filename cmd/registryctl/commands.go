// Copyright File Registry Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/leseb/fileregistry/pkg/core/registry"
)

func newHTTPClient(timeout time.Duration) *http.Client {
	return &http.Client{Timeout: timeout}
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func fingerprintFile(path, alg string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	return registry.FingerprintWith(f, alg)
}

func addAlgorithmFlag(cmd *cobra.Command, alg *string) {
	cmd.Flags().StringVarP(alg, "algorithm", "a", registry.AlgSHA256,
		fmt.Sprintf("fingerprint algorithm %v", registry.Algorithms()))
}

func parseID(s string) (uint64, error) {
	id, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%q: %w", s, registry.ErrInvalidID)
	}
	return id, nil
}

func (c *cli) fingerprintCmd() *cobra.Command {
	var alg string

	cmd := &cobra.Command{
		Use:   "fingerprint <file>",
		Short: "Print the signature of a local file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sig, err := fingerprintFile(args[0], alg)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), sig)
			return nil
		},
	}

	addAlgorithmFlag(cmd, &alg)
	return cmd
}

func (c *cli) registerCmd() *cobra.Command {
	var name, file, signature, alg string

	cmd := &cobra.Command{
		Use:   "register",
		Short: "Register a file signature under your identity",
		Long: `Register a file signature under your identity.

The signature is either given directly with --signature or computed from
a local file with --file. --name defaults to the file's base name.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if c.v.GetString("identity") == "" {
				return errors.New("an identity is required: use --identity or REGISTRYCTL_IDENTITY")
			}
			if file != "" {
				sig, err := fingerprintFile(file, alg)
				if err != nil {
					return err
				}
				signature = sig
				if name == "" {
					name = filepath.Base(file)
				}
			}

			id, err := c.client().Create(cmd.Context(), name, signature)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), map[string]any{
				"id":        id,
				"name":      name,
				"signature": signature,
			})
		},
	}

	cmd.Flags().StringVarP(&name, "name", "n", "", "display name of the file")
	cmd.Flags().StringVarP(&file, "file", "f", "", "compute the signature from this file")
	cmd.Flags().StringVarP(&signature, "signature", "s", "", "64-character signature to register")
	addAlgorithmFlag(cmd, &alg)
	cmd.MarkFlagsMutuallyExclusive("file", "signature")
	cmd.MarkFlagsOneRequired("file", "signature")
	return cmd
}

func (c *cli) idCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "id <signature>",
		Short: "Look up the file id registered for a signature",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := c.client().LookupID(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), id)
			return nil
		},
	}
}

func (c *cli) ownerCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "owner <id>",
		Short: "Look up the owner of a file id",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			owner, err := c.client().LookupOwner(cmd.Context(), id)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), owner)
			return nil
		},
	}
}

func (c *cli) ownerOfCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "owner-of <signature>",
		Short: "Look up the owner of a signature",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			owner, err := c.client().LookupOwnerBySignature(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), owner)
			return nil
		},
	}
}

func (c *cli) listCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list [owner]",
		Short: "List the file ids owned by an identity (default: your identity)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			owner := c.v.GetString("identity")
			if len(args) == 1 {
				owner = args[0]
			}
			if owner == "" {
				return errors.New("an owner is required: pass one or set --identity")
			}
			ids, err := c.client().ListIDsByOwner(cmd.Context(), registry.Identity(owner))
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), ids)
		},
	}
}

func (c *cli) eventsCmd() *cobra.Command {
	var after uint64

	cmd := &cobra.Command{
		Use:   "events",
		Short: "Print creation events recorded by the server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := c.client().Events(cmd.Context(), after)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), resp.Data)
		},
	}

	cmd.Flags().Uint64Var(&after, "after", 0, "only events with an id greater than this")
	return cmd
}
