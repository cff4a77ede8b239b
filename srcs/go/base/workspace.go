package base

// Workspace contains the data that a collective operation will be performed on.
type Workspace struct {
	SendBuf *Vector
	RecvBuf *Vector // if RecvBuf == SendBuf, will perform inplace operation
	OP      OP
	Name    string
}

func (w Workspace) IsEmpty() bool {
	return len(w.SendBuf.Data) == 0
}

func (w Workspace) IsInplace() bool {
	if w.IsEmpty() {
		return w.SendBuf == w.RecvBuf
	}
	return &w.SendBuf.Data[0] == &w.RecvBuf.Data[0]
}

func (w Workspace) Forward() error {
	if !w.IsInplace() {
		return w.RecvBuf.CopyFrom(w.SendBuf)
	}
	return nil
}
