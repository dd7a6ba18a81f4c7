// Copyright © 2018 packet.net

package cmd

import (
	"context"
	"log"

	"github.com/packethost/topoctl/protos/topoctl"
	"github.com/spf13/cobra"
)

// snapshotCmd represents the snapshot command
var snapshotCmd = &cobra.Command{
	Use:   "snapshot",
	Short: "Get the switches, hosts, links and flows known to the controller",
	Run: func(cmd *cobra.Command, args []string) {
		conn := connectGRPC()
		snap, err := conn.Snapshot(context.Background(), &topoctl.Empty{})
		if err != nil {
			log.Fatal(err)
		}
		printJSON(snap)
	},
}

func init() {
	rootCmd.AddCommand(snapshotCmd)
}
