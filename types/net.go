package types

// NetState is the mesh stack's view of the node, as reported on net/state.
type NetState string

const (
	NetOff           NetState = "off"
	NetUnprovisioned NetState = "unprovisioned"
	NetCommissioning NetState = "commissioning"
	NetJoined        NetState = "joined"
	NetLeft          NetState = "left"
	NetError         NetState = "error"
)

type OKReply struct {
	OK bool `json:"ok"`
}

type ErrorReply struct {
	OK    bool   `json:"ok"`
	Error string `json:"error"`
}
