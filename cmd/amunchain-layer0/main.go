// Copyright (C) 2024-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Command amunchain-layer0 is the node's process entrypoint (C12,
// spec §6): run the node from a TOML config file, or derive and print
// the validator's peer identifier without starting it.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	luxlog "github.com/luxfi/log"

	"github.com/amunchain/layer0/config"
	"github.com/amunchain/layer0/gossip"
	"github.com/amunchain/layer0/keystore"
	"github.com/amunchain/layer0/node"
)

// exitCode carries the process exit status through cobra's error
// path so invalid/missing arguments exit 2, matching spec §6, while
// every other runtime failure exits 1.
type exitCode struct {
	code int
	err  error
}

func (e *exitCode) Error() string { return e.err.Error() }
func (e *exitCode) Unwrap() error { return e.err }

func usageError(format string, args ...interface{}) error {
	return &exitCode{code: 2, err: fmt.Errorf(format, args...)}
}

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "amunchain-layer0: %v\n", err)
		var ec *exitCode
		if e, ok := err.(*exitCode); ok {
			ec = e
		}
		if ec != nil {
			os.Exit(ec.code)
		}
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var printPeerID bool

	cmd := &cobra.Command{
		Use:           "amunchain-layer0 <config.toml>",
		Short:         "Amunchain Layer0 permissioned consensus node",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if printPeerID {
				if len(args) != 1 {
					return usageError("--print-peer-id requires exactly one argument: <data_dir>")
				}
				return runPrintPeerID(args[0])
			}
			if len(args) != 1 {
				return usageError("expected exactly one argument: <config.toml>")
			}
			return runNode(args[0])
		},
	}
	cmd.Flags().BoolVar(&printPeerID, "print-peer-id", false, "print the validator's peer identifier and exit")
	cmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return usageError("%v", err)
	})
	return cmd
}

func runPrintPeerID(dataDir string) error {
	pub, err := keystore.PublicKey(dataDir)
	if err != nil {
		return err
	}
	id, err := gossip.PeerIDFromPubKey(pub)
	if err != nil {
		return err
	}
	fmt.Println(id.String())
	return nil
}

func runNode(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	passphrase := keystore.Passphrase()
	priv, err := keystore.Load(cfg.Node.DataDir, passphrase)
	if err != nil {
		if err == keystore.ErrNoKey {
			if _, genErr := keystore.Generate(cfg.Node.DataDir, passphrase); genErr != nil {
				return genErr
			}
			priv, err = keystore.Load(cfg.Node.DataDir, passphrase)
		}
		if err != nil {
			return err
		}
	}

	log := luxlog.NewLogger(cfg.Node.Name)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	n, err := node.New(ctx, cfg, priv, log)
	if err != nil {
		return err
	}
	return n.Run(ctx)
}
