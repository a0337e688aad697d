// Package main provides the micro CLI: a thin wrapper around Connect and
// the discovery façade for running and probing NATS Micro services from a
// shell, grounded on the reference implementation's cli package.
package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	micro "github.com/charbonats/nats-micro"
)

var rootCmd = &cobra.Command{
	Use:   "micro",
	Short: "micro runs and inspects NATS Micro services",
	Long: `micro is the command-line companion to the nats-micro library.

It connects to a NATS server and can host a service process (run/dev) or
probe the services already running on the network (ping/info/stats/request).`,
}

func init() {
	rootCmd.Version = "0.1.0"

	flags := rootCmd.PersistentFlags()
	flags.StringP("server", "s", "nats://localhost:4222", "NATS server URL")
	flags.Int("max-reconnect", 60, "maximum number of reconnect attempts")
	flags.Float64("reconnect-delay", 2.0, "delay between reconnect attempts, in seconds")
	flags.String("username", "", "username for authentication")
	flags.String("password", "", "password for authentication")
	flags.String("token", "", "token for authentication")
	flags.Bool("readable-id", false, "run the hosted service with a UUID instance id instead of the default hex token")

	_ = viper.BindPFlag("server", flags.Lookup("server"))
	_ = viper.BindPFlag("max_reconnect", flags.Lookup("max-reconnect"))
	_ = viper.BindPFlag("reconnect_delay", flags.Lookup("reconnect-delay"))
	_ = viper.BindPFlag("username", flags.Lookup("username"))
	_ = viper.BindPFlag("password", flags.Lookup("password"))
	_ = viper.BindPFlag("token", flags.Lookup("token"))
	_ = viper.BindPFlag("readable_id", flags.Lookup("readable-id"))

	viper.SetEnvPrefix("nats")
	_ = viper.BindEnv("server", "NATS_SERVER")
	_ = viper.BindEnv("max_reconnect", "NATS_MAX_RECONNECT")
	_ = viper.BindEnv("reconnect_delay", "NATS_RECONNECT_DELAY")
	_ = viper.BindEnv("username", "NATS_USERNAME")
	_ = viper.BindEnv("password", "NATS_PASSWORD")
	_ = viper.BindEnv("token", "NATS_TOKEN")

	rootCmd.AddCommand(runCmd, devCmd, pingCmd, infoCmd, statsCmd, requestCmd)
}

// connectConfig builds a ConnectConfig from the bound flags/env vars,
// standing in for flags.Flags.get_connect_options in the reference CLI.
func connectConfig() micro.ConnectConfig {
	cfg := micro.ConnectConfig{
		URL:            viper.GetString("server"),
		MaxReconnect:   viper.GetInt("max_reconnect"),
		ReconnectDelay: time.Duration(viper.GetFloat64("reconnect_delay") * float64(time.Second)),
		Username:       viper.GetString("username"),
		Password:       viper.GetString("password"),
		Token:          viper.GetString("token"),
	}
	return cfg
}

// childEnv builds the environment passed to a hosted service subprocess,
// standing in for the reference CLI's direct construction of Service
// objects: everything the child needs to reach the same NATS server and
// honor the same CLI flags travels as env vars instead of in-process state.
func childEnv() []string {
	env := append(os.Environ(), "NATS_SERVER="+connectConfig().URL)
	if viper.GetBool("readable_id") {
		env = append(env, "NATS_READABLE_ID=1")
	}
	return env
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
