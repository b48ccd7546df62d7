package cmdapp

import (
	"os"
	"path/filepath"

	"github.com/heirko/go-contrib/logrusHelper"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

// Config keeps trainer settings: flags, then environment, then the yaml file
var Config = viper.New()

// Log is the trainer logger, configured from the logger section of Config
var Log = logrus.New()

// configFile is set by the --config flag
var configFile string

// configPaths lists dirs searched for config.yaml when --config is not set
func configPaths() []string {
	res := []string{"."}
	if ex, err := os.Executable(); err == nil {
		res = append(res, filepath.Dir(ex))
	}
	return res
}

func initConfig() {
	if configFile != "" {
		Config.SetConfigFile(configFile)
	} else {
		for _, p := range configPaths() {
			Config.AddConfigPath(p)
		}
		Config.SetConfigName("config")
	}
	if err := Config.ReadInConfig(); err != nil {
		if configFile != "" {
			Log.Error("Can't read config: ", err)
			panic(1)
		}
		Log.Warn("No config file, using flags and environment: ", err)
	}
	initLog()
	if f := Config.ConfigFileUsed(); f != "" {
		Log.Info("Config loaded from: ", f)
	}
}

func initLog() {
	Config.SetDefault("logger", map[string]interface{}{
		"level":                              "info",
		"formatter.name":                     "text",
		"formatter.options.full_timestamp":   true,
		"formatter.options.timestamp_format": "2006-01-02T15:04:05.000",
	})
	if err := logrusHelper.SetConfig(Log, logrusHelper.UnmarshalConfiguration(Config.Sub("logger"))); err != nil {
		Log.Error("Can't init log ", err)
	}
}
