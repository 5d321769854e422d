// Command equilibriumctl is a thin CLI over a Context's resource store:
// get/put/delete/search single resources and trigger a reconcile sweep.
// It is an external collaborator, not part of the framework itself (§1
// Non-goals excludes "a CLI or UI" from the spec proper) — it exists
// here only to give cobra/pflag and lumberjack a concrete home the way
// the teacher's cmd/main.go exercises its own flag/logging stack.
package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/go-logr/logr"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zapr"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/NiklasRosenstein/equilibrium/internal/control"
	"github.com/NiklasRosenstein/equilibrium/internal/jsonstore"
	"github.com/NiklasRosenstein/equilibrium/internal/manifest"
	"github.com/NiklasRosenstein/equilibrium/internal/resource"
	"github.com/NiklasRosenstein/equilibrium/internal/store"
)

var (
	storeDir      string
	logFile       string
	clusterScoped bool
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "equilibriumctl",
		Short: "Inspect and mutate an equilibrium resource store from the command line",
	}
	root.PersistentFlags().StringVar(&storeDir, "store", "data", "path to the jsonstore backing directory")
	root.PersistentFlags().StringVar(&logFile, "log-file", "", "if set, write logs to this file (rotated via lumberjack) instead of stderr")

	root.AddCommand(newReconcileCmd())
	root.AddCommand(newResourcesCmd())
	return root
}

// newLogger builds a zapr logger over zap, writing to logFile through a
// lumberjack.Logger when one is configured and to stderr otherwise — the
// same zap/zapr pairing the rest of this repo's examples use, fed
// through lumberjack the way the teacher's manager binary would rotate
// its own log file if it wrote to one instead of stdout.
func newLogger() (logr.Logger, error) {
	if logFile == "" {
		zlog, err := zap.NewDevelopment()
		if err != nil {
			return logr.Discard(), err
		}
		return zapr.NewLogger(zlog), nil
	}

	writer := zapcore.AddSync(&lumberjack.Logger{
		Filename:   logFile,
		MaxSize:    100,
		MaxBackups: 3,
		MaxAge:     28,
	})
	core := zapcore.NewCore(zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig()), writer, zap.InfoLevel)
	return zapr.NewLogger(zap.New(core)), nil
}

func newContext() (*control.Context, error) {
	backing, err := jsonstore.New(storeDir)
	if err != nil {
		return nil, fmt.Errorf("open store at %s: %w", storeDir, err)
	}
	log, err := newLogger()
	if err != nil {
		return nil, err
	}
	return control.NewContext(backing, control.WithLogger(log))
}

// ensureType registers a pass-through codec for t if nothing is
// registered yet, so the CLI can put/get resources of types it has no
// compiled-in Go definition for. Specs travel as plain
// map[string]any — exactly the shape the store already persists them
// in — rather than decoding into any domain type.
func ensureType(ctx *control.Context, t resource.Type, namespaced bool) error {
	if _, err := ctx.Types.Lookup(t); err == nil {
		return nil
	}
	return ctx.Types.Register(t, control.SpecCodec{
		SpecType: passthroughSpec{namespaced: namespaced},
		Decode:   func(tree map[string]any) (any, error) { return tree, nil },
		Encode:   func(v any) (map[string]any, error) { return v.(map[string]any), nil },
	})
}

type passthroughSpec struct{ namespaced bool }

func (p passthroughSpec) Namespaced() bool { return p.namespaced }

func newReconcileCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reconcile",
		Short: "Run one reconcile sweep over every registered controller",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, err := newContext()
			if err != nil {
				return err
			}
			return ctx.Reconcile()
		},
	}
}

func newResourcesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "resources",
		Short: "Get, put, delete and search resources in the store",
	}
	cmd.AddCommand(newGetCmd(), newPutCmd(), newDeleteCmd(), newSearchCmd())
	return cmd
}

func newGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <apiVersion> <kind> <namespace> <name>",
		Short: "Print a single resource as JSON",
		Args:  cobra.ExactArgs(4),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, err := newContext()
			if err != nil {
				return err
			}
			uri := resource.URI{APIVersion: args[0], Kind: args[1], Namespace: args[2], Name: args[3]}
			r, ok, err := ctx.Get(uri)
			if err != nil {
				return err
			}
			if !ok {
				return &resource.NotFoundError{URI: uri}
			}
			out, err := r.ToJSON()
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(out))
			return nil
		},
	}
}

func newPutCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "put <manifest-file>",
		Short: "Apply every document in a YAML manifest file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, err := newContext()
			if err != nil {
				return err
			}

			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()

			resources, err := manifest.Load(f)
			if err != nil {
				return err
			}
			for _, r := range resources {
				if r.Type() != (resource.Type{APIVersion: store.NamespaceAPIVersion, Kind: store.NamespaceKind}) {
					if err := ensureType(ctx, r.Type(), !clusterScoped); err != nil {
						return err
					}
				}
				if _, err := ctx.Put(r); err != nil {
					return fmt.Errorf("put %s: %w", r.URI(), err)
				}
				fmt.Fprintln(cmd.OutOrStdout(), r.URI())
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&clusterScoped, "cluster-scoped", false, "register any newly-seen type as cluster-scoped instead of namespaced")
	return cmd
}

func newDeleteCmd() *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "delete <apiVersion> <kind> <namespace> <name>",
		Short: "Delete a single resource",
		Args:  cobra.ExactArgs(4),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, err := newContext()
			if err != nil {
				return err
			}
			uri := resource.URI{APIVersion: args[0], Kind: args[1], Namespace: args[2], Name: args[3]}
			return ctx.Delete(uri, true, force)
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "physically remove the resource immediately instead of setting its deletion marker")
	return cmd
}

func newSearchCmd() *cobra.Command {
	var namespace, name, labels string
	cmd := &cobra.Command{
		Use:   "search <apiVersion> <kind>",
		Short: "List URIs matching the given filters",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, err := newContext()
			if err != nil {
				return err
			}
			uris, err := ctx.Search(store.SearchRequest{
				APIVersion: args[0],
				Kind:       args[1],
				Namespace:  namespace,
				Name:       name,
				Labels:     parseLabels(labels),
			})
			if err != nil {
				return err
			}
			for _, uri := range uris {
				fmt.Fprintln(cmd.OutOrStdout(), uri)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&namespace, "namespace", "", "restrict to this namespace")
	cmd.Flags().StringVar(&name, "name", "", "restrict to this name")
	cmd.Flags().StringVar(&labels, "labels", "", "comma-separated label subset, e.g. tier=core,env=prod")
	return cmd
}

// parseLabels turns "k=v,k2=v2" into the map HasLabels-style subset
// matching expects. Malformed pairs (missing "=") are ignored rather
// than erroring, since this is a convenience CLI flag, not an API.
func parseLabels(s string) map[string]string {
	if s == "" {
		return nil
	}
	out := make(map[string]string)
	for _, pair := range strings.Split(s, ",") {
		k, v, ok := strings.Cut(pair, "=")
		if !ok {
			continue
		}
		out[k] = v
	}
	return out
}
