package config

import (
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"tlvf/internal/dirs"
)

// Init wires Viper with config paths, env, defaults, and flag bindings.
// It is non-fatal: any errors are returned for optional handling by caller.
func Init(root *cobra.Command) error {
	// Ensure base directories exist
	_ = dirs.EnsureAll()

	// Setup config search path
	if cfgDir, err := dirs.ConfigDir(); err == nil {
		_ = dirs.Ensure(cfgDir)
		viper.AddConfigPath(cfgDir)
	}
	viper.SetConfigName("config") // supports config.{yaml|yml|json|toml}

	// Environment variables: TLVF_*
	viper.SetEnvPrefix("TLVF")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	// Bind root persistent flags to Viper keys
	_ = viper.BindPFlag("threshold_gb", root.PersistentFlags().Lookup("threshold-gb"))
	_ = viper.BindPFlag("passes", root.PersistentFlags().Lookup("passes"))
	_ = viper.BindPFlag("work_dir", root.PersistentFlags().Lookup("work-dir"))
	_ = viper.BindPFlag("comskip", root.PersistentFlags().Lookup("comskip"))
	_ = viper.BindPFlag("ffmpeg", root.PersistentFlags().Lookup("ffmpeg"))
	_ = viper.BindPFlag("ffprobe", root.PersistentFlags().Lookup("ffprobe"))
	_ = viper.BindPFlag("comskip_path", root.PersistentFlags().Lookup("comskip-path"))
	_ = viper.BindPFlag("jobs", root.PersistentFlags().Lookup("jobs"))
	_ = viper.BindPFlag("verbose", root.PersistentFlags().Lookup("verbose"))

	// Read config file if present (ignore not found)
	_ = viper.ReadInConfig()

	return nil
}
