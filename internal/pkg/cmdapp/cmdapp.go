package cmdapp

import (
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// InitApplication adds the --config flag and loads config before the command runs.
// Environment variable MONGO_URL overrides the key mongo.url.
func InitApplication(rootCommand *cobra.Command) {
	Config.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	Config.AutomaticEnv()
	cobra.OnInitialize(initConfig)
	rootCommand.PersistentFlags().StringVarP(&configFile, "config", "c", "", "config file (default is config.yaml)")
}

// BindFlags binds every persistent flag of the command to the config key of the same name
func BindFlags(cmd *cobra.Command) error {
	var res error
	cmd.PersistentFlags().VisitAll(func(f *pflag.Flag) {
		if f.Name == "config" || res != nil {
			return
		}
		if err := Config.BindPFlag(f.Name, f); err != nil {
			res = errors.Wrapf(err, "Can't bind flag %s", f.Name)
		}
	})
	return res
}

// Execute runs the command, a panic is logged and ends the process with code 1
func Execute(cmd *cobra.Command) {
	defer func() {
		if r := recover(); r != nil {
			Log.Error(r)
			os.Exit(1)
		}
	}()
	if err := cmd.Execute(); err != nil {
		panic(err)
	}
}

// CheckOrPanic panics with err wrapped by msg
func CheckOrPanic(err error, msg string) {
	if err == nil {
		return
	}
	if msg != "" {
		err = errors.Wrap(err, msg)
	}
	panic(err)
}

// LogIf logs not nil err
func LogIf(err error) {
	if err != nil {
		Log.Error(err)
	}
}

// NewSignalChannel returns a channel notified on SIGINT and SIGTERM
func NewSignalChannel() chan os.Signal {
	fc := make(chan os.Signal, 1)
	signal.Notify(fc, os.Interrupt, syscall.SIGTERM)
	return fc
}
