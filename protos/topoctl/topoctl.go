// Package topoctl is the wire contract of the topoctl Controller service.
// Messages travel as JSON over gRPC.
package topoctl

type Empty struct{}

type Port struct {
	No     uint32 `json:"port_no"`
	HWAddr string `json:"hw_addr,omitempty"`
	Name   string `json:"name,omitempty"`
	Up     bool   `json:"up"`
}

type SwitchJoin struct {
	DPID  uint64 `json:"dpid"`
	Ports []Port `json:"ports,omitempty"`
}

type SwitchLeave struct {
	DPID uint64 `json:"dpid"`
}

type HostJoin struct {
	MAC  string   `json:"mac"`
	IPv4 []string `json:"ipv4,omitempty"`
	DPID uint64   `json:"dpid"`
	Port uint32   `json:"port_no"`
}

type LinkAdd struct {
	Src     uint64 `json:"src_dpid"`
	SrcPort uint32 `json:"src_port_no"`
	Dst     uint64 `json:"dst_dpid"`
	DstPort uint32 `json:"dst_port_no"`
}

type LinkRemove struct {
	Src uint64 `json:"src_dpid"`
	Dst uint64 `json:"dst_dpid"`
}

type PortStateChange struct {
	DPID uint64 `json:"dpid"`
	Port uint32 `json:"port_no"`
	Up   bool   `json:"up"`
}

type PacketIn struct {
	DPID   uint64 `json:"dpid"`
	InPort uint32 `json:"in_port"`
	Data   []byte `json:"data"`
}

// Event carries exactly one of its fields.
type Event struct {
	SwitchJoin      *SwitchJoin      `json:"switch_join,omitempty"`
	SwitchLeave     *SwitchLeave     `json:"switch_leave,omitempty"`
	HostJoin        *HostJoin        `json:"host_join,omitempty"`
	LinkAdd         *LinkAdd         `json:"link_add,omitempty"`
	LinkRemove      *LinkRemove      `json:"link_remove,omitempty"`
	PortStateChange *PortStateChange `json:"port_state_change,omitempty"`
	PacketIn        *PacketIn        `json:"packet_in,omitempty"`
}

// CommunicationRequest asks for a bidirectional path between two host IPv4
// addresses.
type CommunicationRequest struct {
	Src string `json:"src"`
	Dst string `json:"dst"`
}

type Rule struct {
	DPID   uint64 `json:"dpid"`
	InPort uint32 `json:"in_port"`
	Src    string `json:"dl_src"`
	Dst    string `json:"dl_dst"`
	Out    uint32 `json:"output"`
}

type FailedRule struct {
	Rule  Rule   `json:"rule"`
	Error string `json:"error"`
}

const (
	StatusInstalled = "installed"
	StatusPartial   = "partial"
)

type CommunicationResponse struct {
	Status    string       `json:"status"`
	Src       string       `json:"src_mac"`
	Dst       string       `json:"dst_mac"`
	Path      []uint64     `json:"path"`
	Installed []Rule       `json:"installed"`
	Failed    []FailedRule `json:"failed,omitempty"`
}

type Switch struct {
	DPID      uint64   `json:"dpid"`
	Name      string   `json:"name"`
	Ports     []Port   `json:"ports"`
	Neighbors []uint64 `json:"neighbors"`
}

type Host struct {
	Name string   `json:"name"`
	MAC  string   `json:"mac"`
	IPv4 []string `json:"ipv4"`
	DPID uint64   `json:"dpid"`
	Port uint32   `json:"port_no"`
}

type Link struct {
	Src     uint64 `json:"src_dpid"`
	SrcPort uint32 `json:"src_port_no"`
	Dst     uint64 `json:"dst_dpid"`
	DstPort uint32 `json:"dst_port_no"`
}

type Edge struct {
	From string `json:"from"`
	To   string `json:"to"`
}

type Snapshot struct {
	Nodes    []string `json:"nodes"`
	Edges    []Edge   `json:"edges"`
	Switches []Switch `json:"switches"`
	Hosts    []Host   `json:"hosts"`
	Links    []Link   `json:"links"`
	Flows    []Rule   `json:"flows"`
}

// HostRequest looks a host up by MAC or by IPv4 address, depending on the
// call it is sent with.
type HostRequest struct {
	MAC string `json:"mac,omitempty"`
	IP  string `json:"ip,omitempty"`
}

type PathRequest struct {
	Src uint64 `json:"src_dpid"`
	Dst uint64 `json:"dst_dpid"`
}

type PathResponse struct {
	Path []uint64 `json:"path"`
}

type FlowsResponse struct {
	Flows []Rule `json:"flows"`
}

// CommandsRequest subscribes an agent to the datapaths it manages. No
// datapaths means all of them.
type CommandsRequest struct {
	DPIDs []uint64 `json:"dpids,omitempty"`
}

// Command is an OpenFlow 1.3 message for the agent to write to the datapath.
type Command struct {
	DPID    uint64 `json:"dpid"`
	Message []byte `json:"message"`
}
