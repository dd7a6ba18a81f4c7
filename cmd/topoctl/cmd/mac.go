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

// macCmd represents the mac command
var macCmd = &cobra.Command{
	Use:     "mac",
	Short:   "Get a host by its mac",
	Example: "topoctl mac 00:00:00:00:00:01 00:00:00:00:00:02",
	Args: func(_ *cobra.Command, args []string) error {
		for _, arg := range args {
			if _, err := net.ParseMAC(arg); err != nil {
				return fmt.Errorf("invalid mac: %s", arg)
			}
		}
		return nil
	},
	Run: func(cmd *cobra.Command, args []string) {
		conn := connectGRPC()
		for _, mac := range args {
			h, err := conn.HostByMAC(context.Background(), &topoctl.HostRequest{MAC: mac})
			if err != nil {
				log.Fatal(err)
			}
			printJSON(h)
		}
	},
}

func init() {
	rootCmd.AddCommand(macCmd)
}
