package cli

import (
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// configured returns value when the flag was given on the command line,
// else the configured key (env or config file), else value, which is
// then the flag default.
func configured[T any](cmd *cobra.Command, value T, key string, flagName string, get func(string) T) T {
	if cmd == nil || flagChanged(cmd, flagName) || !viper.IsSet(key) {
		return value
	}
	return get(key)
}

func resolveString(cmd *cobra.Command, value string, key string, flagName string) string {
	return configured(cmd, value, key, flagName, viper.GetString)
}

func resolveStrings(cmd *cobra.Command, values []string, key string, flagName string) []string {
	return configured(cmd, values, key, flagName, viper.GetStringSlice)
}

func resolveBool(cmd *cobra.Command, value bool, key string, flagName string) bool {
	return configured(cmd, value, key, flagName, viper.GetBool)
}

func resolveInt(cmd *cobra.Command, value int, key string, flagName string) int {
	return configured(cmd, value, key, flagName, viper.GetInt)
}

func flagChanged(cmd *cobra.Command, name string) bool {
	if cmd == nil || strings.TrimSpace(name) == "" {
		return false
	}
	if flag := cmd.Flags().Lookup(name); flag != nil {
		return flag.Changed
	}
	if flag := cmd.PersistentFlags().Lookup(name); flag != nil {
		return flag.Changed
	}
	return false
}
