package main

import (
	"context"
	"errors"
	"fmt"

	gojson "github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"github.com/hupe1980/celltrie"
	"github.com/hupe1980/celltrie/cell"
	"github.com/hupe1980/celltrie/checkpoint"
)

// Owners and values are decoded generically: owners to their JSON scalar
// form, values to raw JSON.
type entryMap = celltrie.Map[any, gojson.RawMessage]

var errNotFound = errors.New("not found")

type app struct {
	configPath string
	checkpoint string

	cfg *Config
	mgr *checkpoint.Manager
}

func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:           "celltrie",
		Short:         "Inspect and maintain celltrie checkpoints",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.init(cmd.Context())
		},
	}

	root.PersistentFlags().StringVarP(&a.configPath, "config", "c", "celltrie.yaml", "path to the YAML config")
	root.PersistentFlags().StringVar(&a.checkpoint, "checkpoint", "", "checkpoint name (default: the current checkpoint)")

	root.AddCommand(
		a.newInspectCmd(),
		a.newListCmd(),
		a.newGetCmd(),
		a.newSubtreeCmd(),
		a.newRecompressCmd(),
		a.newPruneCmd(),
	)

	return root
}

func (a *app) init(ctx context.Context) error {
	cfg, err := LoadConfig(a.configPath)
	if err != nil {
		return err
	}

	store, ps, err := cfg.Open(ctx)
	if err != nil {
		return err
	}

	a.cfg = cfg
	a.mgr = cfg.Manager(store, ps, cfg.Logger())

	return nil
}

// resolve returns the checkpoint selected by --checkpoint or args, falling
// back to the current one.
func (a *app) resolve(ctx context.Context, args []string) (string, error) {
	if len(args) > 0 && args[0] != "" {
		return args[0], nil
	}

	if a.checkpoint != "" {
		return a.checkpoint, nil
	}

	return a.mgr.Latest(ctx)
}

func (a *app) load(ctx context.Context) (*entryMap, error) {
	name, err := a.resolve(ctx, nil)
	if err != nil {
		return nil, err
	}

	return checkpoint.LoadNamed[any, gojson.RawMessage](ctx, a.mgr, name, celltrie.WithLogger(a.cfg.Logger()))
}

func (a *app) newInspectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "inspect [name]",
		Short: "Show the frame and stream header of a checkpoint",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name, err := a.resolve(cmd.Context(), args)
			if err != nil {
				return err
			}

			info, err := a.mgr.Stat(cmd.Context(), name)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "name:        %s\n", info.Name)
			fmt.Fprintf(out, "size:        %d bytes\n", info.Size)
			fmt.Fprintf(out, "compression: %s (level %d)\n", info.Header.Compression, info.Header.Level)
			fmt.Fprintf(out, "crc32c:      %08x\n", info.Header.CRC)
			fmt.Fprintf(out, "codec:       %s\n", info.Stream.Codec)
			fmt.Fprintf(out, "read-only:   %t\n", info.Stream.ReadOnly)
			fmt.Fprintf(out, "entries:     %d\n", info.Stream.Count)

			return nil
		},
	}
}

func (a *app) newListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List stored checkpoints, oldest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			names, err := a.mgr.List(cmd.Context())
			if err != nil {
				return err
			}

			latest, err := a.mgr.Latest(cmd.Context())
			if err != nil && !errors.Is(err, checkpoint.ErrNoCheckpoint) {
				return err
			}

			for _, n := range names {
				marker := " "
				if n == latest {
					marker = "*"
				}

				fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", marker, n)
			}

			return nil
		},
	}
}

func parseOwner(s string) any {
	var owner any
	if err := gojson.Unmarshal([]byte(s), &owner); err != nil {
		return s
	}

	return owner
}

type entryJSON struct {
	Cell  string            `json:"cell"`
	Owner any               `json:"owner"`
	Value gojson.RawMessage `json:"value"`
}

func (a *app) newGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <cell> <owner>",
		Short: "Print the value stored for a cell and owner",
		Long: "Print the value stored for a cell and owner. The owner is parsed as JSON " +
			"and taken as a plain string if that fails.",
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := cell.ParseCell(args[0])
			if err != nil {
				return err
			}

			m, err := a.load(cmd.Context())
			if err != nil {
				return err
			}

			owner := parseOwner(args[1])

			v, ok := m.Get(cell.KeyOf(c, owner))
			if !ok {
				return fmt.Errorf("%s/%v: %w", c, owner, errNotFound)
			}

			_, err = fmt.Fprintln(cmd.OutOrStdout(), string(v))

			return err
		},
	}
}

func (a *app) newSubtreeCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "subtree <cell>",
		Short: "Print every entry inside a cell as JSON lines",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := cell.ParseCell(args[0])
			if err != nil {
				return err
			}

			m, err := a.load(cmd.Context())
			if err != nil {
				return err
			}

			enc := gojson.NewEncoder(cmd.OutOrStdout())
			n := 0

			for k, v := range m.Subtree(c).All() {
				if limit > 0 && n >= limit {
					break
				}

				if err := enc.Encode(entryJSON{Cell: k.Cell().String(), Owner: k.Owner(), Value: v}); err != nil {
					return err
				}

				n++
			}

			fmt.Fprintf(cmd.ErrOrStderr(), "%d entries\n", n)

			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "maximum number of entries to print (0 prints all)")

	return cmd
}

func (a *app) newRecompressCmd() *cobra.Command {
	var (
		compression string
		level       int
	)

	cmd := &cobra.Command{
		Use:   "recompress [name]",
		Short: "Rewrite a checkpoint with another compression",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := checkpoint.ParseCompression(compression)
			if err != nil {
				return err
			}

			name, err := a.resolve(cmd.Context(), args)
			if err != nil {
				return err
			}

			newName, err := a.mgr.Recompress(cmd.Context(), name, c, level)
			if err != nil {
				return err
			}

			_, err = fmt.Fprintln(cmd.OutOrStdout(), newName)

			return err
		},
	}

	cmd.Flags().StringVar(&compression, "compression", "zstd", "target compression: none, lz4 or zstd")
	cmd.Flags().IntVar(&level, "level", checkpoint.DefaultLevel, "compression level")

	return cmd
}

func (a *app) newPruneCmd() *cobra.Command {
	var keep int

	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Delete old checkpoints, keeping the newest ones and the current one",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			deleted, err := a.mgr.Prune(cmd.Context(), keep)

			for _, n := range deleted {
				fmt.Fprintln(cmd.OutOrStdout(), "deleted", n)
			}

			return err
		},
	}

	cmd.Flags().IntVar(&keep, "keep", 3, "number of checkpoints to keep")

	return cmd
}
