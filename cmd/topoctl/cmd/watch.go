// Copyright © 2018 packet.net

package cmd

import (
	"context"
	"io"
	"log"

	"github.com/packethost/topoctl/protos/topoctl"
	"github.com/spf13/cobra"
)

// watchCmd represents the watch command
var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Print a topology snapshot after every change",
	Run: func(cmd *cobra.Command, args []string) {
		conn := connectGRPC()
		stream, err := conn.Watch(context.Background(), &topoctl.Empty{})
		if err != nil {
			log.Fatal(err)
		}

		var snap *topoctl.Snapshot
		for snap, err = stream.Recv(); err == nil && snap != nil; snap, err = stream.Recv() {
			printJSON(snap)
		}
		if err != nil && err != io.EOF {
			log.Fatal(err)
		}
	},
}

func init() {
	rootCmd.AddCommand(watchCmd)
}
