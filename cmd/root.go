// Package cmd implements CLI commands using cobra framework.
package cmd

import (
	"github.com/go-faster/errors"
	"github.com/spf13/cobra"

	"firestige.xyz/someip/internal/config"
	"firestige.xyz/someip/internal/log"

	// reporters register themselves
	_ "firestige.xyz/someip/plugins/reporter/console"
	_ "firestige.xyz/someip/plugins/reporter/kafka"
)

// version is overridden at build time with -ldflags "-X firestige.xyz/someip/cmd.version=..."
var version = "0.1.0"

type globalOptions struct {
	configFile string
	logLevel   string

	cfg *config.Config
}

func newRootCmd() *cobra.Command {
	opts := &globalOptions{}

	rootCmd := &cobra.Command{
		Use:   "someip",
		Short: "someip - SOME/IP traffic classifier",
		Long: `someip identifies SOME/IP (Scalable service-Oriented MiddlewarE over IP)
flows in captured traffic. Each TCP or UDP flow is classified once, from its
first payload, by validating the 16-byte SOME/IP header, recognizing the
Magic Cookie handshake messages and falling back to the well-known ports
30490, 30491 and 30501.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return opts.load()
		},
	}

	rootCmd.PersistentFlags().StringVarP(&opts.configFile, "config", "c", "",
		"config file path (defaults and SOMEIP_* environment only when empty)")
	rootCmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "",
		"override log level (trace|debug|info|warn|error)")

	rootCmd.AddCommand(newClassifyCmd(opts))
	rootCmd.AddCommand(newInspectCmd(opts))
	rootCmd.AddCommand(newValidateCmd(opts))
	rootCmd.AddCommand(newVersionCmd())
	return rootCmd
}

// load reads configuration and initializes logging.
func (o *globalOptions) load() error {
	cfg, err := config.Load(o.configFile)
	if err != nil {
		return errors.Wrap(err, "load configuration")
	}
	if o.logLevel != "" {
		cfg.Log.Level = o.logLevel
		if err := cfg.Validate(); err != nil {
			return err
		}
	}
	if err := log.Init(cfg.Log); err != nil {
		return errors.Wrap(err, "init logger")
	}
	o.cfg = cfg
	return nil
}

// Execute runs the command line. It is called by main.main().
func Execute() error {
	return newRootCmd().Execute()
}
