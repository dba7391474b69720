package event

// Listener receives events whose kind is in its declared set.
// Name is used for diagnostics only; uniqueness is not enforced.
type Listener interface {
	Name() string
	Kinds() []Kind
	OnEvent(e Event)
}

// NewListener wraps a handler function as a Listener.
func NewListener(name string, kinds []Kind, handler func(e Event)) Listener {
	return &funcListener{
		name:    name,
		kinds:   append([]Kind(nil), kinds...),
		handler: handler,
	}
}

type funcListener struct {
	name    string
	kinds   []Kind
	handler func(e Event)
}

func (l *funcListener) Name() string {
	return l.name
}

func (l *funcListener) Kinds() []Kind {
	return l.kinds
}

func (l *funcListener) OnEvent(e Event) {
	if l.handler != nil {
		l.handler(e)
	}
}
