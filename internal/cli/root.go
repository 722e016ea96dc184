package cli

import (
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/23skdu/longbow-bodkin/internal/logger"
)

var (
	cfgFile string
	Version = "0.1.0"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "bodkin",
	Short: "Beam search translation over ensembled scoring models",
	Long: `Decode source sentences into target sentences with beam search,
optionally ensembling several scoring models per step.

Examples:
  # Translate a corpus with a 2-model ensemble
  bodkin translate --model a.json --model b.json \
      --src-vocab src.json --trg-vocab trg.json < input.txt

  # Serve translation over HTTP/WebSocket
  bodkin serve --model a.json --src-vocab src.json --trg-vocab trg.json

  # Score hypotheses with an external evaluation script
  bodkin score --script factors2word.sh --hyp hyp.txt --hyp-mult hyp.mult.txt --ref ref.de`,
}

// Execute adds all child commands to the root command and sets flags
// appropriately. Called once from main.
func Execute() {
	rootCmd.Version = Version
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().
		StringVar(&cfgFile, "config", "", "config file path (e.g. bodkin.yaml)")
	rootCmd.PersistentFlags().
		String("log-level", "info", "logging level (debug, info, warn, error)")
	rootCmd.PersistentFlags().
		String("log-format", "console", "logging output format (console, json)")

	mustBindPFlag("log.level", "log-level")
	mustBindPFlag("log.format", "log-format")

	viper.SetDefault("log.level", "info")
	viper.SetDefault("log.format", "console")
}

// initConfig reads in the config file and environment variables if set.
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		if home, err := os.UserHomeDir(); err == nil {
			viper.AddConfigPath(home)
		}
		viper.AddConfigPath(".")
		viper.SetConfigName("bodkin")
		viper.SetConfigType("yaml")
	}

	viper.SetEnvPrefix("BODKIN")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		logger.Log.Debug("config file loaded", "path", viper.ConfigFileUsed())
	}

	logger.Setup(viper.GetString("log.level"), viper.GetString("log.format"))
}

func mustBindPFlag(key, flag string) {
	if err := viper.BindPFlag(key, rootCmd.PersistentFlags().Lookup(flag)); err != nil {
		panic(err)
	}
}
