package main

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"zkledger.dev/node/contracts/cash"
	"zkledger.dev/node/ledger"
	"zkledger.dev/node/serde/registry"
	"zkledger.dev/node/witness"
	"zkledger.dev/node/zkp"
)

func newConfigCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration as YAML",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := opts.load()
			if err != nil {
				return err
			}
			b, err := cfg.YAML()
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(b)
			return err
		},
	}
}

func newTypeIDCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "typeid [name...]",
		Short: "Print stable type ids; without arguments list the registered types",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			if len(args) > 0 {
				for _, name := range args {
					_, _ = fmt.Fprintf(out, "%d\t%s\n", registry.StableID(name), name)
				}
				return nil
			}
			reg, err := contracts()
			if err != nil {
				return err
			}
			for _, r := range reg.Registrations() {
				_, _ = fmt.Fprintf(out, "%d\t%s\t%d bytes\n", r.ID, r.Name, r.Codec.Size())
			}
			return nil
		},
	}
}

func readTx(path string) (*ledger.WireTransaction, error) {
	b, err := os.ReadFile(path) // #nosec G304 -- operator supplied path.
	if err != nil {
		return nil, err
	}
	return ledger.UnmarshalWireTransaction(b)
}

func newIssueCmd(opts *options) *cobra.Command {
	var (
		amount   int64
		currency string
		owner    string
		out      string
	)
	cmd := &cobra.Command{
		Use:   "issue",
		Short: "Create a cash issuance, record it as verified and write it to a file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			key, err := ledger.PublicKeyFromBase58(owner)
			if err != nil {
				return fmt.Errorf("owner: %w", err)
			}
			svc, done, err := opts.service()
			if err != nil {
				return err
			}
			defer done()
			party := ledger.Party{Name: "Issuer", Key: key}
			wtx, err := ledger.NewTransactionBuilder(svc.Serializer).
				SetNotary(party).
				AddOutputState(cash.State{Amount: amount, Currency: currency, Owner: key, Issuer: party}, cash.ContractName).
				AddCommand(cash.Issue{}, key).
				Build(svc.Digest)
			if err != nil {
				return err
			}
			if err := svc.Accept(cmd.Context(), wtx); err != nil {
				return err
			}
			b, err := wtx.MarshalBinary()
			if err != nil {
				return err
			}
			if err := os.WriteFile(out, b, 0o600); err != nil {
				return err
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), wtx.ID())
			return nil
		},
	}
	cmd.Flags().Int64Var(&amount, "amount", 0, "amount in minor units")
	cmd.Flags().StringVar(&currency, "currency", "USD", "ISO currency code")
	cmd.Flags().StringVar(&owner, "owner", "", "owner public key, base58")
	cmd.Flags().StringVar(&out, "out", "issue.tx", "output file")
	_ = cmd.MarkFlagRequired("owner")
	return cmd
}

func newWitnessCmd(opts *options) *cobra.Command {
	w := &cobra.Command{Use: "witness", Short: "Witness diagnostics"}
	w.AddCommand(&cobra.Command{
		Use:   "size <tx-file>",
		Short: "Print the witness size and its zero padding; producers must be verified",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			wtx, err := readTx(args[0])
			if err != nil {
				return err
			}
			svc, done, err := opts.service()
			if err != nil {
				return err
			}
			defer done()
			ins, err := producerUtxos(svc.Store.GetVerified, wtx.Inputs)
			if err != nil {
				return err
			}
			refs, err := producerUtxos(svc.Store.GetVerified, wtx.References)
			if err != nil {
				return err
			}
			wit, err := witness.Build(wtx, svc.Serializer, witness.AllVisible, ins, refs)
			if err != nil {
				return err
			}
			total := wit.Size(nil)
			zeros := wit.Size(func(b byte) bool { return b == 0 })
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "total %d bytes, zero %d bytes\n", total, zeros)
			return nil
		},
	})
	return w
}

func producerUtxos(
	get func(ledger.SecureHash) (*ledger.WireTransaction, bool, error),
	list func() ([]ledger.StateRef, error),
) ([]witness.UtxoInfo, error) {
	refs, err := list()
	if err != nil {
		return nil, err
	}
	out := make([]witness.UtxoInfo, 0, len(refs))
	for _, r := range refs {
		producer, ok, err := get(r.TxID)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, fmt.Errorf("producer of %s is not verified", r)
		}
		u, err := witness.UtxoOf(producer, int(r.Index))
		if err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, nil
}

func newResolveCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "resolve <tx-file>",
		Short: "Download and verify the backchain of a transaction",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			wtx, err := readTx(args[0])
			if err != nil {
				return err
			}
			svc, done, err := opts.service()
			if err != nil {
				return err
			}
			defer done()
			order, err := svc.Resolver.Resolve(cmd.Context(), wtx)
			if err != nil {
				return err
			}
			for _, id := range order {
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), id)
			}
			return nil
		},
	}
}

func newVerifyCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "verify <tx-file>",
		Short: "Resolve the backchain, then verify and record the transaction",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			wtx, err := readTx(args[0])
			if err != nil {
				return err
			}
			svc, done, err := opts.service()
			if err != nil {
				return err
			}
			defer done()
			if err := svc.Accept(cmd.Context(), wtx); err != nil {
				var me *zkp.MismatchError
				if errors.As(err, &me) {
					return fmt.Errorf("rejected: %s %d does not match its commitment", me.Kind, me.Index)
				}
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "verified %s\n", wtx.ID())
			return nil
		},
	}
}

func newServeCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve verified transactions to peers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			svc, done, err := opts.service()
			if err != nil {
				return err
			}
			defer done()
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return svc.Serve(ctx)
		},
	}
}
