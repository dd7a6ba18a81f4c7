// Copyright © 2018 packet.net

package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"

	"github.com/packethost/topoctl/protos/topoctl"
	"github.com/spf13/cobra"
)

func decodeEvent(s string) (*topoctl.Event, error) {
	dec := json.NewDecoder(strings.NewReader(s))
	dec.DisallowUnknownFields()

	ev := &topoctl.Event{}
	if err := dec.Decode(ev); err != nil {
		return nil, fmt.Errorf("invalid json: %s", s)
	}
	return ev, nil
}

// publishCmd represents the publish command
var publishCmd = &cobra.Command{
	Use:     "publish",
	Short:   "Publish discovery events to the controller",
	Example: `topoctl publish '{"switch_join":{"dpid":1}}' '{"link_add":{"src_dpid":1,"src_port_no":2,"dst_dpid":2,"dst_port_no":2}}'`,
	Args: func(_ *cobra.Command, args []string) error {
		for _, arg := range args {
			if _, err := decodeEvent(arg); err != nil {
				return err
			}
		}
		return nil
	},
	Run: func(cmd *cobra.Command, args []string) {
		conn := connectGRPC()
		for _, arg := range args {
			ev, _ := decodeEvent(arg)
			if _, err := conn.Publish(context.Background(), ev); err != nil {
				log.Fatal(err)
			}
		}
	},
}

func init() {
	rootCmd.AddCommand(publishCmd)
}
