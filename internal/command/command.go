package command

// Command is the closed set of recognized mention commands. Anything
// that is not an exact, case-sensitive match is Unknown; matching never
// trims, so "!OptIn" and " !optin" are unknown by design.
type Command int

const (
	Unknown Command = iota
	OptIn
	OptOut
	Status
)

// Parse resolves raw mention text to a command.
func Parse(text string) Command {
	switch text {
	case "!optin":
		return OptIn
	case "!optout":
		return OptOut
	case "!status":
		return Status
	default:
		return Unknown
	}
}

func (c Command) String() string {
	switch c {
	case OptIn:
		return "optin"
	case OptOut:
		return "optout"
	case Status:
		return "status"
	default:
		return "unknown"
	}
}
