// Copyright © 2018 packet.net

package cmd

import (
	"context"
	"log"

	"github.com/packethost/topoctl/protos/topoctl"
	"github.com/spf13/cobra"
)

// flowsCmd represents the flows command
var flowsCmd = &cobra.Command{
	Use:   "flows",
	Short: "Get every forwarding rule the controller installed",
	Run: func(cmd *cobra.Command, args []string) {
		conn := connectGRPC()
		resp, err := conn.Flows(context.Background(), &topoctl.Empty{})
		if err != nil {
			log.Fatal(err)
		}
		printJSON(resp.Flows)
	},
}

func init() {
	rootCmd.AddCommand(flowsCmd)
}
