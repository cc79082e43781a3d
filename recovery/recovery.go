package recovery

// Strategy decides how a best-effort step reacts to a failure.
type Strategy interface {
	OnError(err error, location Location) Action
}

type Location struct {
	Component string
	Path      string
}

type Action int

const (
	ActionFail Action = iota
	ActionSkip
	ActionWarn
)

func (a Action) String() string {
	switch a {
	case ActionFail:
		return "fail"
	case ActionSkip:
		return "skip"
	case ActionWarn:
		return "warn"
	default:
		return "unknown"
	}
}
