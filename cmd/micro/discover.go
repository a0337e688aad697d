package main

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	micro "github.com/charbonats/nats-micro"
)

var requestTimeout time.Duration
var requestMaxCount int
var requestMaxInterval time.Duration

func init() {
	for _, c := range []*cobra.Command{pingCmd, infoCmd, statsCmd} {
		c.Flags().DurationVar(&requestTimeout, "timeout", 500*time.Millisecond, "maximum time to wait for replies")
		c.Flags().IntVar(&requestMaxCount, "max-count", 0, "stop after this many replies (0: unlimited)")
		c.Flags().DurationVar(&requestMaxInterval, "max-interval", 0, "stop after this much time passes with no new reply (0: disabled)")
	}
}

func discoverOpts() micro.RequestManyOpts {
	return micro.RequestManyOpts{
		MaxWait:     requestTimeout,
		MaxCount:    requestMaxCount,
		MaxInterval: requestMaxInterval,
	}
}

func withClient(fn func(*micro.Client) error) error {
	nc, err := micro.Connect(connectConfig())
	if err != nil {
		return fmt.Errorf("connecting: %w", err)
	}
	defer nc.Close()
	return fn(micro.NewClient(nc, micro.APIPrefix))
}

func printJSON(v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}

var pingCmd = &cobra.Command{
	Use:   "ping [service]",
	Short: "Discover services by sending a PING",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		service := ""
		if len(args) == 1 {
			service = args[0]
		}
		return withClient(func(c *micro.Client) error {
			replies, err := c.Ping(service, discoverOpts())
			if err != nil {
				return err
			}
			return printJSON(replies)
		})
	},
}

var infoCmd = &cobra.Command{
	Use:   "info [service]",
	Short: "Discover service schemas by sending an INFO request",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		service := ""
		if len(args) == 1 {
			service = args[0]
		}
		return withClient(func(c *micro.Client) error {
			replies, err := c.Info(service, discoverOpts())
			if err != nil {
				return err
			}
			return printJSON(replies)
		})
	},
}

var statsCmd = &cobra.Command{
	Use:   "stats [service]",
	Short: "Collect service statistics by sending a STATS request",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		service := ""
		if len(args) == 1 {
			service = args[0]
		}
		return withClient(func(c *micro.Client) error {
			replies, err := c.Stats(service, discoverOpts())
			if err != nil {
				return err
			}
			return printJSON(replies)
		})
	},
}

var requestCmd = &cobra.Command{
	Use:   "request <subject> [payload]",
	Short: "Send a single point-to-point request and print the reply",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		subject := args[0]
		payload := ""
		if len(args) == 2 {
			payload = args[1]
		}
		return withClient(func(c *micro.Client) error {
			ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
			defer cancel()
			reply, err := c.Request(ctx, subject, []byte(payload), nil)
			if err != nil {
				return err
			}
			fmt.Println(string(reply))
			return nil
		})
	},
}
