// Copyright © 2018 packet.net

package cmd

import (
	"context"
	"fmt"
	"log"
	"net"

	"github.com/packethost/topoctl/protos/topoctl"
	"github.com/spf13/cobra"
)

// communicateCmd represents the communicate command
var communicateCmd = &cobra.Command{
	Use:     "communicate",
	Short:   "Install a bidirectional path between two hosts",
	Example: "topoctl communicate 10.0.0.1 10.0.0.2",
	Args: func(_ *cobra.Command, args []string) error {
		if len(args) != 2 {
			return fmt.Errorf("requires a source and a destination ip")
		}
		return verifyIPv4s(args)
	},
	Run: func(cmd *cobra.Command, args []string) {
		conn := connectGRPC()
		resp, err := conn.Communicate(context.Background(), &topoctl.CommunicationRequest{Src: args[0], Dst: args[1]})
		if err != nil {
			log.Fatal(err)
		}
		printJSON(resp)
		if resp.Status == topoctl.StatusPartial {
			log.Fatalf("%d of %d rules failed", len(resp.Failed), len(resp.Failed)+len(resp.Installed))
		}
	},
}

func verifyIPv4s(args []string) error {
	for _, arg := range args {
		if net.ParseIP(arg).To4() == nil {
			return fmt.Errorf("invalid ipv4: %s", arg)
		}
	}
	return nil
}

func init() {
	rootCmd.AddCommand(communicateCmd)
}
