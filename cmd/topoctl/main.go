// Copyright © 2018 packet.net

package main

import "github.com/packethost/topoctl/cmd/topoctl/cmd"

func main() {
	cmd.Execute()
}
