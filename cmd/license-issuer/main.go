package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"todocx/internal/license"
	"todocx/internal/quota"
	"todocx/internal/security"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var secret string

	cmd := &cobra.Command{
		Use:           "license-issuer",
		Short:         "Mint and inspect To-Docx activation codes",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVar(&secret, "secret", os.Getenv("TODOCX_LICENSE_SECRET"),
		"Signing secret (defaults to the built-in key)")

	cmd.AddCommand(newIssueCommand(&secret))
	cmd.AddCommand(newVerifyCommand(&secret))
	cmd.AddCommand(newFingerprintCommand())
	return cmd
}

func newIssueCommand(secret *string) *cobra.Command {
	var (
		machine string
		expire  string
		apiKey  string
		amount  string
	)

	cmd := &cobra.Command{
		Use:   "issue",
		Short: "Create a signed activation code for one machine",
		RunE: func(cmd *cobra.Command, args []string) error {
			p := license.Payload{
				Machine: strings.ToUpper(strings.TrimSpace(machine)),
				Expire:  expire,
				APIKey:  apiKey,
			}
			if amount != "" {
				q, err := decimal.NewFromString(amount)
				if err != nil {
					return fmt.Errorf("invalid quota %q: %w", amount, err)
				}
				p.Quota = q
			}

			blob, err := license.NewIssuer(*secret).Issue(p)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), blob)
			return err
		},
	}

	cmd.Flags().StringVar(&machine, "machine", "", "16 character machine code of the customer")
	cmd.Flags().StringVar(&expire, "expire", "", "Last valid day, YYYY-MM-DD")
	cmd.Flags().StringVar(&apiKey, "api-key", "", "Speech recognition API key bound to the license")
	cmd.Flags().StringVar(&amount, "quota", "0", "Prepaid quota in currency units")
	_ = cmd.MarkFlagRequired("machine")
	_ = cmd.MarkFlagRequired("expire")
	return cmd
}

func newVerifyCommand(secret *string) *cobra.Command {
	var (
		machine string
		blob    string
	)

	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Check an activation code against a machine code",
		RunE: func(cmd *cobra.Command, args []string) error {
			if blob == "-" {
				data, err := io.ReadAll(cmd.InOrStdin())
				if err != nil {
					return err
				}
				blob = string(data)
			}

			p, err := license.NewVerifier(*secret).Verify(strings.ToUpper(strings.TrimSpace(machine)), blob)
			if err != nil {
				return err
			}
			return writePayload(cmd.OutOrStdout(), p)
		},
	}

	cmd.Flags().StringVar(&machine, "machine", "", "Machine code the code must be bound to")
	cmd.Flags().StringVar(&blob, "blob", "", "Activation code, or - to read it from stdin")
	_ = cmd.MarkFlagRequired("machine")
	_ = cmd.MarkFlagRequired("blob")
	return cmd
}

func newFingerprintCommand() *cobra.Command {
	var verbose bool

	cmd := &cobra.Command{
		Use:   "fingerprint",
		Short: "Print the machine code of this host",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := slog.New(slog.NewTextHandler(io.Discard, nil))
			if verbose {
				logger = slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: slog.LevelDebug}))
			}
			g := security.NewFingerprintGenerator(logger)

			if verbose {
				for _, r := range g.Collect(cmd.Context()) {
					fmt.Fprintf(cmd.ErrOrStderr(), "%-14s present=%t\n", r.Source, r.Present())
				}
			}
			_, err := fmt.Fprintln(cmd.OutOrStdout(), g.Fingerprint(cmd.Context()))
			return err
		},
	}

	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Report which identifiers were found")
	return cmd
}

// writePayload prints p with the API key masked
func writePayload(w io.Writer, p *license.Payload) error {
	out := map[string]string{
		"machine": p.Machine,
		"expire":  p.Expire,
		"quota":   p.Quota.String(),
	}
	if p.APIKey != "" {
		out["api_key"] = quota.MaskAPIKey(p.APIKey)
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}
