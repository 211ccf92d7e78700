package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	json "github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"github.com/drover-io/drover"
	"github.com/drover-io/drover/internal/adapters/template"
)

var (
	configPath string
	dataDir    string
	specDir    string
	verbose    bool
)

var rootCmd = &cobra.Command{
	Use:   "droverd",
	Short: "droverd - campaign execution daemon",
	Long: `droverd schedules large multi-stage data-processing campaigns against
external batch backends. It polls a durable work queue, advances each
campaign graph node one lifecycle transition at a time, and contains
failures per subtree so unrelated branches keep moving.`,
	SilenceUsage: true,
}

func main() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to config file")
	rootCmd.PersistentFlags().StringVar(&dataDir, "data-dir", "", "override data directory")
	rootCmd.PersistentFlags().StringVar(&specDir, "spec-dir", "", "override spec library directory")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")

	rootCmd.AddCommand(
		runCmd(),
		submitCmd(),
		statusCmd(),
		operatorCmd("accept", "Accept a reviewable node", func(m *drover.Manager, fullname string) (*drover.Node, error) {
			return m.Accept(fullname)
		}),
		rejectCmd(),
		operatorCmd("reset", "Reset a failed node to waiting", func(m *drover.Manager, fullname string) (*drover.Node, error) {
			return m.Reset(fullname)
		}),
		operatorCmd("replace", "Supersede a failed node with a fresh attempt", func(m *drover.Manager, fullname string) (*drover.Node, error) {
			return m.Replace(fullname)
		}),
		unblockCmd(),
		operatorCmd("archive", "Archive a finished node", func(m *drover.Manager, fullname string) (*drover.Node, error) {
			return m.Archive(fullname)
		}),
		diagCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func openManager() (*drover.Manager, error) {
	cfg, err := drover.LoadConfig(configPath)
	if err != nil {
		return nil, err
	}
	if dataDir != "" {
		cfg.DataDir = dataDir
	}
	if specDir != "" {
		cfg.SpecDir = specDir
	}

	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	cfg.Logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	return drover.Open(cfg)
}

func runCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run the scheduling daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			mgr, err := openManager()
			if err != nil {
				return err
			}
			defer mgr.Close()

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			if err := mgr.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		},
	}
}

func submitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "submit <submission.yaml>",
		Short: "Submit a campaign from a submission document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			doc, err := template.ParseSubmission(data)
			if err != nil {
				return err
			}

			mgr, err := openManager()
			if err != nil {
				return err
			}
			defer mgr.Close()

			node, err := mgr.Submit(cmd.Context(), doc)
			if err != nil {
				return err
			}
			fmt.Printf("campaign %s submitted (node %d)\n", node.Fullname, node.ID)
			return nil
		},
	}
}

func statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status [fullname]",
		Short: "Show the status rollup of a subtree, or all campaigns",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			mgr, err := openManager()
			if err != nil {
				return err
			}
			defer mgr.Close()

			var out any
			if len(args) == 1 {
				out, err = mgr.Status(args[0])
			} else {
				out, err = mgr.Campaigns()
			}
			if err != nil {
				return err
			}
			return printJSON(out)
		},
	}
}

func operatorCmd(use, short string, action func(*drover.Manager, string) (*drover.Node, error)) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <fullname>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			mgr, err := openManager()
			if err != nil {
				return err
			}
			defer mgr.Close()

			node, err := action(mgr, args[0])
			if err != nil {
				return err
			}
			fmt.Printf("%s -> %s\n", node.Fullname, node.Status)
			return nil
		},
	}
}

func rejectCmd() *cobra.Command {
	var reason string
	cmd := &cobra.Command{
		Use:   "reject <fullname>",
		Short: "Reject a reviewable or not-yet-running node",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			mgr, err := openManager()
			if err != nil {
				return err
			}
			defer mgr.Close()

			node, err := mgr.Reject(args[0], reason)
			if err != nil {
				return err
			}
			fmt.Printf("%s -> %s\n", node.Fullname, node.Status)
			return nil
		},
	}
	cmd.Flags().StringVar(&reason, "reason", "", "free-text reason recorded as a diagnostic")
	return cmd
}

func unblockCmd() *cobra.Command {
	var fail bool
	cmd := &cobra.Command{
		Use:   "unblock <fullname>",
		Short: "Acknowledge a stalled node",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			mgr, err := openManager()
			if err != nil {
				return err
			}
			defer mgr.Close()

			node, err := mgr.Unblock(args[0], fail)
			if err != nil {
				return err
			}
			fmt.Printf("%s -> %s (blocked=%v)\n", node.Fullname, node.Status, node.Blocked)
			return nil
		},
	}
	cmd.Flags().BoolVar(&fail, "fail", false, "mark the stalled node failed instead of resuming")
	return cmd
}

func diagCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "diag <fullname>",
		Short: "List a node's failure diagnostics",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			mgr, err := openManager()
			if err != nil {
				return err
			}
			defer mgr.Close()

			diags, err := mgr.Diagnostics(args[0])
			if err != nil {
				return err
			}
			return printJSON(diags)
		},
	}
}

func printJSON(v any) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}
