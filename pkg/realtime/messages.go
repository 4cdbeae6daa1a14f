package realtime

// MessageType identifies a client-to-server invokable method.
type MessageType string

const (
	MsgTestMethod MessageType = "TestMethod"
	MsgJoinGroup  MessageType = "JoinGroup"
	MsgLeaveGroup MessageType = "LeaveGroup"
)

// ClientMessage is the framing for every client-to-server message.
type ClientMessage struct {
	Type    MessageType `json:"type"`
	Message string      `json:"message,omitempty"`
	Group   string      `json:"group,omitempty"`
}
