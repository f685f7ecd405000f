package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/telekom/props-override/pkg/api"
	"github.com/telekom/props-override/pkg/cli/output"
	"github.com/telekom/props-override/pkg/policy"
	"github.com/telekom/props-override/pkg/props"
	"github.com/telekom/props-override/pkg/system"
)

// identityFromArgs reads PACKAGE and an optional PROCESS. A missing process
// leaves the identity untouched by the policy.
func identityFromArgs(args []string) policy.Identity {
	id := policy.Identity{Package: args[0]}
	if len(args) > 1 {
		id.Process = args[1]
	}
	return id
}

// initProcess evaluates id the way a hosting process does at startup and
// returns the process together with the store that received the writes.
func initProcess(rt *runtimeState, id policy.Identity) (*policy.Process, *props.Store, func(), error) {
	aud, err := rt.Auditor()
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to set up audit: %w", err)
	}
	cleanup := func() {
		if err := aud.Close(); err != nil {
			rt.Logger().Sugar().Warnw("Failed to close audit manager", "error", err)
		}
	}

	if rt.cfg.Overrides.CertifiedIncomplete() {
		rt.Logger().Sugar().Warnw("Certified fingerprint configured without device or model; empty values will be written",
			"device", rt.cfg.Overrides.CertifiedDevice, "model", rt.cfg.Overrides.CertifiedModel)
	}

	store := props.NewStore()
	log := system.WithCaller(rt.Logger().Sugar(), id.Package, id.Process)
	eval := policy.NewEvaluator(rt.Registry(), store, log, policy.WithAuditor(asAuditor(aud)))

	proc := &policy.Process{}
	if _, err := proc.Init(eval, id); err != nil {
		cleanup()
		return nil, nil, nil, err
	}
	return proc, store, cleanup, nil
}

func NewEvaluateCommand() *cobra.Command {
	var (
		features    []string
		attestChain []string
	)

	cmd := &cobra.Command{
		Use:   "evaluate PACKAGE [PROCESS]",
		Short: "Show the override decision for an application identity",
		Example: `  propsctl evaluate com.google.android.gms com.google.android.gms.unstable
  propsctl evaluate com.google.android.apps.photos com.google.android.apps.photos --feature PIXEL_2021_EXPERIENCE
  propsctl evaluate com.android.vending com.android.vending --attest-chain com.android.vending.Installer -o json`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := getRuntime(cmd)
			if err != nil {
				return err
			}
			proc, store, cleanup, err := initProcess(rt, identityFromArgs(args))
			if err != nil {
				return err
			}
			defer cleanup()

			resp := api.NewEvaluateResponse(proc.State(), store)
			if len(features) > 0 {
				resp.Features = make(map[string]bool, len(features))
				for _, f := range features {
					resp.Features[f] = proc.FilterFeature(f, true)
				}
			}
			if cmd.Flags().Changed("attest-chain") {
				resp.Attestation = api.Attest(proc.State(), attestChain)
			}

			return rt.writeObject(resp, func(w io.Writer) { output.WriteDecision(w, resp) })
		},
	}

	cmd.Flags().StringSliceVar(&features, "feature", nil, "Feature names to run through the feature filter")
	cmd.Flags().StringSliceVar(&attestChain, "attest-chain", nil, "Call chain to run through the attestation guard")
	return cmd
}

func NewFeatureCommand() *cobra.Command {
	var def bool

	cmd := &cobra.Command{
		Use:   "feature PACKAGE PROCESS FEATURE",
		Short: "Show whether a system feature is reported to an application",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := getRuntime(cmd)
			if err != nil {
				return err
			}
			proc, _, cleanup, err := initProcess(rt, identityFromArgs(args[:2]))
			if err != nil {
				return err
			}
			defer cleanup()

			resp := api.FeatureResponse{Feature: args[2], Default: def, Result: proc.FilterFeature(args[2], def)}
			return rt.writeObject(resp, func(w io.Writer) {
				_, _ = fmt.Fprintf(w, "%s: %t\n", resp.Feature, resp.Result)
			})
		},
	}

	cmd.Flags().BoolVar(&def, "default", true, "Answer of the host system for the feature")
	return cmd
}

func NewAttestCommand() *cobra.Command {
	var chain []string

	cmd := &cobra.Command{
		Use:   "attest PACKAGE PROCESS",
		Short: "Run the attestation guard for an application identity",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := getRuntime(cmd)
			if err != nil {
				return err
			}
			proc, _, cleanup, err := initProcess(rt, identityFromArgs(args))
			if err != nil {
				return err
			}
			defer cleanup()

			resp := api.Attest(proc.State(), chain)
			return rt.writeObject(resp, func(w io.Writer) {
				if resp.Allowed {
					_, _ = fmt.Fprintln(w, "allowed")
					return
				}
				_, _ = fmt.Fprintf(w, "blocked: %s\n", resp.Reason)
			})
		},
	}

	cmd.Flags().StringSliceVar(&chain, "chain", nil, "Frames of the call chain, outermost first")
	return cmd
}
