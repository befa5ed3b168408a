package h1

type State uint8

const (
	Idle State = iota
	SendResponse
	SendBody
	Done
	MustClose
	Closed
	Error
	SwitchedProtocol
)

var stateNames = [...]string{
	Idle:             "IDLE",
	SendResponse:     "SEND_RESPONSE",
	SendBody:         "SEND_BODY",
	Done:             "DONE",
	MustClose:        "MUST_CLOSE",
	Closed:           "CLOSED",
	Error:            "ERROR",
	SwitchedProtocol: "SWITCHED_PROTOCOL",
}

func (s State) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return "UNKNOWN"
}
