package protocol

// Message is one decoded frame. Payload always matches Kind.
type Message struct {
	Kind    Kind
	Payload Payload
}

// New wraps a payload into a message tagged with its kind.
func New(p Payload) Message {
	if p == nil {
		return Message{}
	}
	return Message{Kind: p.Kind(), Payload: p}
}

// As extracts the payload of m as T.
func As[T Payload](m Message) (T, bool) {
	v, ok := m.Payload.(T)
	return v, ok
}
