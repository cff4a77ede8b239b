package collective

import "fmt"

type ActionKind uint8

const (
	Send ActionKind = iota
	Recv
	Shuffle
	Unroll
	Resolve
	Join
)

var kindNames = map[ActionKind]string{
	Send:    "send",
	Recv:    "recv",
	Shuffle: "shuffle",
	Unroll:  "unroll",
	Resolve: "resolve",
	Join:    "join",
}

func (k ActionKind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

// ActionID identifies an action within one collective. The same
// (kind, round, partner) always yields the same id.
type ActionID struct {
	Kind    ActionKind
	Round   int
	Partner int
}

func (id ActionID) String() string {
	return fmt.Sprintf("%s r=%d,p=%d", id.Kind, id.Round, id.Partner)
}

// SendRole selects the buffer a send reads from.
type SendRole uint8

const (
	SendInPlace  SendRole = iota // the result buffer
	SendPrevRecv                 // the receive scratch buffer
	SendTemp                     // the packed send scratch buffer
)

// RecvRole selects the buffer a receive lands in.
type RecvRole uint8

const (
	RecvInPlace    RecvRole = iota // straight into the result buffer
	RecvReduce                     // into scratch, then reduced into the result buffer
	RecvPackedTemp                 // into scratch, kept packed
	RecvUnpackTemp                 // into scratch, then unpacked into the result buffer
)

type State uint8

const (
	Created State = iota
	Pending
	Ready
	Active
	Completed
)

var stateNames = [...]string{"created", "pending", "ready", "active", "completed"}

func (s State) String() string { return stateNames[s] }

// Action is one step of a collective. Self and Partner are virtual ranks,
// PhysPartner is the communicator rank playing Partner. Offset and Count
// are in elements of the logical buffer.
type Action struct {
	ID          ActionID
	Self        int
	PhysPartner int
	Offset      int
	Count       int
	SendRole    SendRole
	RecvRole    RecvRole

	state  State
	unmet  int
	nprecs int
	buf    []byte // resolved transport buffer while active
}

func NewSend(round, self, partner, physPartner, offset, count int, role SendRole) *Action {
	return &Action{
		ID:          ActionID{Kind: Send, Round: round, Partner: partner},
		Self:        self,
		PhysPartner: physPartner,
		Offset:      offset,
		Count:       count,
		SendRole:    role,
	}
}

func NewRecv(round, self, partner, physPartner, offset, count int, role RecvRole) *Action {
	return &Action{
		ID:          ActionID{Kind: Recv, Round: round, Partner: partner},
		Self:        self,
		PhysPartner: physPartner,
		Offset:      offset,
		Count:       count,
		RecvRole:    role,
	}
}

// NewUtility creates an action without transport side effect: a Join,
// Unroll, Shuffle, or a Resolve waiting on the communicator rank partner.
func NewUtility(kind ActionKind, round, partner int) *Action {
	return &Action{ID: ActionID{Kind: kind, Round: round, Partner: partner}}
}

func (a *Action) State() State { return a.state }

func (a *Action) isComm() bool {
	return a.ID.Kind == Send || a.ID.Kind == Recv
}

func (a *Action) sameShape(b *Action) bool {
	return a.Self == b.Self && a.PhysPartner == b.PhysPartner &&
		a.Offset == b.Offset && a.Count == b.Count &&
		a.SendRole == b.SendRole && a.RecvRole == b.RecvRole
}

func (a *Action) String() string {
	return fmt.Sprintf("action %s r=%d,p=%d,o=%d,n=%d", a.ID.Kind, a.ID.Round, a.ID.Partner, a.Offset, a.Count)
}
