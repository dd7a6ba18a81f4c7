// Copyright © 2018 packet.net

package cmd

import (
	"context"
	"log"

	"github.com/packethost/topoctl/protos/topoctl"
	"github.com/spf13/cobra"
)

// ipCmd represents the ip command
var ipCmd = &cobra.Command{
	Use:     "ip",
	Short:   "Get the first discovered host owning an ip",
	Example: "topoctl ip 10.0.0.2 10.0.0.3",
	Args: func(_ *cobra.Command, args []string) error {
		return verifyIPv4s(args)
	},
	Run: func(cmd *cobra.Command, args []string) {
		conn := connectGRPC()
		for _, ip := range args {
			h, err := conn.HostByIP(context.Background(), &topoctl.HostRequest{IP: ip})
			if err != nil {
				log.Fatal(err)
			}
			printJSON(h)
		}
	},
}

func init() {
	rootCmd.AddCommand(ipCmd)
}
