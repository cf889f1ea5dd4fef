// Copyright File Registry Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/leseb/fileregistry/pkg/client"
	"github.com/leseb/fileregistry/pkg/core/registry"
)

const envPrefix = "REGISTRYCTL"

// cli holds the state shared by all subcommands.
type cli struct {
	v       *viper.Viper
	cfgFile string
}

func newRootCmd() *cobra.Command {
	c := &cli{v: viper.New()}

	root := &cobra.Command{
		Use:   "registryctl",
		Short: "Command line client for the file registry",
		Long: `Register file signatures and look up their owners.

Settings are read from flags, REGISTRYCTL_* environment variables and
~/.config/registryctl/config.yaml, in that order of precedence.

Examples:
  # Register a local file under your identity
  registryctl register --name "Sales report" --file report.pdf --identity 0xabc...

  # Who owns this file?
  registryctl owner-of $(registryctl fingerprint report.pdf)`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return c.initConfig()
		},
	}

	root.PersistentFlags().StringVarP(&c.cfgFile, "config", "c", "",
		"config file (default: ~/.config/registryctl/config.yaml)")
	root.PersistentFlags().String("server", "http://localhost:8080", "registry server URL")
	root.PersistentFlags().String("identity", "", "caller identity sent with registrations")
	root.PersistentFlags().Duration("timeout", 30*time.Second, "request timeout")

	// Bind flags to viper
	_ = c.v.BindPFlag("server", root.PersistentFlags().Lookup("server"))
	_ = c.v.BindPFlag("identity", root.PersistentFlags().Lookup("identity"))
	_ = c.v.BindPFlag("timeout", root.PersistentFlags().Lookup("timeout"))

	root.AddCommand(
		c.fingerprintCmd(),
		c.registerCmd(),
		c.idCmd(),
		c.ownerCmd(),
		c.ownerOfCmd(),
		c.listCmd(),
		c.eventsCmd(),
	)
	return root
}

func (c *cli) initConfig() error {
	c.v.SetEnvPrefix(envPrefix)
	c.v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	c.v.AutomaticEnv()

	if c.cfgFile != "" {
		c.v.SetConfigFile(c.cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil
		}
		c.v.AddConfigPath(filepath.Join(home, ".config", "registryctl"))
		c.v.SetConfigName("config")
		c.v.SetConfigType("yaml")
	}

	if err := c.v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) && c.cfgFile == "" {
			return nil
		}
		return err
	}
	return nil
}

// client builds an API client from the resolved settings.
func (c *cli) client() *client.Client {
	opts := []client.Option{
		client.WithHTTPClient(newHTTPClient(c.v.GetDuration("timeout"))),
	}
	if id := c.v.GetString("identity"); id != "" {
		opts = append(opts, client.WithIdentity(registry.Identity(id)))
	}
	return client.New(c.v.GetString("server"), opts...)
}
