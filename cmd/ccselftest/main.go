// Command ccselftest runs the known-answer and consistency checks of the
// arithmetic and curve packages and optionally writes the results as a
// Prometheus textfile for node_exporter.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/moonfruit/go-corecrypto/ccec"
	"github.com/moonfruit/go-corecrypto/ccrng"
	"github.com/moonfruit/go-corecrypto/internal/logging"
	"github.com/moonfruit/go-corecrypto/internal/selftest"
)

const envPrefix = "CCSELFTEST"

func main() {
	// On failure cobra prints the error, so only the exit status is left.
	if newRootCmd(viper.New()).Execute() != nil {
		os.Exit(1)
	}
}

func newRootCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "ccselftest",
		Short:         "Run the corecrypto self-tests",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return initConfig(v)
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context(), v, cmd.OutOrStdout())
		},
	}

	v.SetEnvPrefix(envPrefix)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))

	flags := cmd.Flags()
	flags.String("config", "", "YAML configuration file")
	flags.String("log-level", "info", "logging level")
	flags.String("log-format", "console", "logging format, console or json")
	flags.StringSlice("curves", nil, "curves to check, default all")
	flags.String("textfile", "", "write Prometheus metrics to this file")
	flags.String("namespace", "corecrypto", "metric namespace")
	flags.Uint64("seed", 0, "seed a deterministic generator instead of the system source")

	if err := bindFlags(v, flags); err != nil {
		panic(err)
	}
	return cmd
}

// flagKeys maps flag names to the viper keys that also take the
// CCSELFTEST_ environment and the config file.
var flagKeys = map[string]string{
	"config":     "config",
	"log-level":  "logging.level",
	"log-format": "logging.format",
	"curves":     "curves",
	"textfile":   "metrics.textfile",
	"namespace":  "metrics.namespace",
	"seed":       "seed",
}

func bindFlags(v *viper.Viper, flags *pflag.FlagSet) error {
	for name, key := range flagKeys {
		flag := flags.Lookup(name)
		if flag == nil {
			return errors.Errorf("no flag %q", name)
		}
		if err := v.BindPFlag(key, flag); err != nil {
			return errors.Wrapf(err, "binding flag %q", name)
		}
	}
	return nil
}

func initConfig(v *viper.Viper) error {
	if path := v.GetString("config"); path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return errors.Wrapf(err, "reading config file %s", path)
		}
	}
	return logging.Init(logging.Config{
		Format: v.GetString("logging.format"),
		Level:  v.GetString("logging.level"),
	})
}

func curves(v *viper.Viper) ([]*ccec.CurveParams, error) {
	var names []string
	for _, s := range v.GetStringSlice("curves") {
		for _, name := range strings.Split(s, ",") {
			if name = strings.TrimSpace(name); name != "" {
				names = append(names, name)
			}
		}
	}

	var out []*ccec.CurveParams
	for _, name := range names {
		cp, err := ccec.NamedCurveParams(strings.ToUpper(name))
		if err != nil {
			return nil, err
		}
		out = append(out, cp)
	}
	return out, nil
}

func run(ctx context.Context, v *viper.Viper, out io.Writer) error {
	if ctx == nil {
		ctx = context.Background()
	}
	cps, err := curves(v)
	if err != nil {
		return err
	}

	metrics := selftest.NewMetrics(v.GetString("metrics.namespace"))
	opts := []selftest.Option{selftest.WithMetrics(metrics)}
	if len(cps) > 0 {
		opts = append(opts, selftest.WithCurves(cps...))
	}
	if seed := v.GetUint64("seed"); seed != 0 {
		opts = append(opts, selftest.WithRNG(ccrng.NewDRBGFromUint64(seed)))
	}

	results, runErr := selftest.NewRunner(opts...).Run(ctx)
	for _, r := range results {
		status := "PASS"
		if !r.Passed() {
			status = "FAIL"
		}
		curve := r.Curve
		if curve == "" {
			curve = "-"
		}
		fmt.Fprintf(out, "%s\t%-14s\t%-6s\t%s\n", status, r.Name, curve, r.Duration)
		if r.Err != nil {
			fmt.Fprintf(out, "\t%v\n", r.Err)
		}
	}

	if path := v.GetString("metrics.textfile"); path != "" {
		reg := prometheus.NewRegistry()
		reg.MustRegister(metrics.Collectors()...)
		if err := prometheus.WriteToTextfile(path, reg); err != nil {
			return errors.Wrap(err, "writing metrics")
		}
	}
	return runErr
}
