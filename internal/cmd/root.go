// Package cmd is the gavel command-line surface: one-shot audits against
// the built-in static judge, session inspection, and store maintenance.
package cmd

import (
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Iron-Ham/gavel/internal/config"
)

var rootCmd = &cobra.Command{
	Use:   "gavel",
	Short: "Iterative adversarial code-audit engine",
	Long: `Gavel audits code artifacts through an adversarial review loop:
each submitted revision is judged against weighted quality dimensions,
scored, and either shipped or sent back with evidence until the session
completes on score, stagnation, or the loop ceiling.`,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringP("config", "c", "", "config file (default is .gavel.yaml in cwd or $HOME)")
	_ = viper.BindPFlag("config", rootCmd.PersistentFlags().Lookup("config"))
}

func initConfig() {
	config.SetDefaults()

	if cfgFile := viper.GetString("config"); cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName(".gavel")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")
		viper.AddConfigPath("$HOME")
	}

	viper.AutomaticEnv()
	viper.SetEnvPrefix("GAVEL")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// A missing config file is fine; defaults and env cover everything.
	_ = viper.ReadInConfig()
}
