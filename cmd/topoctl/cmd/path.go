// Copyright © 2018 packet.net

package cmd

import (
	"context"
	"fmt"
	"log"
	"strconv"

	"github.com/packethost/topoctl/protos/topoctl"
	"github.com/spf13/cobra"
)

// pathCmd represents the path command
var pathCmd = &cobra.Command{
	Use:     "path",
	Short:   "Get the shortest switch path between two datapaths",
	Example: "topoctl path 1 4",
	Args: func(_ *cobra.Command, args []string) error {
		if len(args) != 2 {
			return fmt.Errorf("requires a source and a destination dpid")
		}
		for _, arg := range args {
			if _, err := strconv.ParseUint(arg, 0, 64); err != nil {
				return fmt.Errorf("invalid dpid: %s", arg)
			}
		}
		return nil
	},
	Run: func(cmd *cobra.Command, args []string) {
		src, _ := strconv.ParseUint(args[0], 0, 64)
		dst, _ := strconv.ParseUint(args[1], 0, 64)

		conn := connectGRPC()
		resp, err := conn.Path(context.Background(), &topoctl.PathRequest{Src: src, Dst: dst})
		if err != nil {
			log.Fatal(err)
		}
		printJSON(resp.Path)
	},
}

func init() {
	rootCmd.AddCommand(pathCmd)
}
