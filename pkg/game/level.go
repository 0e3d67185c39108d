// Package game defines the episode levels, their per-level state models,
// and the function-call surface the model drives them through.
package game

import "fmt"

// Level identifies one episode of the game.
type Level int

const (
	Intro         Level = -1
	Lobby         Level = 0
	Interrogation Level = 1
	Cyber         Level = 2
	Forensics     Level = 3
	Market        Level = 4
	Defusal       Level = 5
	Victory       Level = 6
)

// String returns the level's name.
func (l Level) String() string {
	switch l {
	case Intro:
		return "intro"
	case Lobby:
		return "lobby"
	case Interrogation:
		return "interrogation"
	case Cyber:
		return "cyber"
	case Forensics:
		return "forensics"
	case Market:
		return "market"
	case Defusal:
		return "defusal"
	case Victory:
		return "victory"
	default:
		return fmt.Sprintf("level(%d)", int(l))
	}
}

// Playable reports whether the level is a live episode rather than a menu
// screen.
func (l Level) Playable() bool {
	return l >= Interrogation && l <= Defusal
}

// Voice returns the prebuilt voice acting the level's character. Non-playable
// levels use a neutral narrator voice.
func (l Level) Voice() string {
	switch l {
	case Interrogation:
		return "Charon"
	case Cyber:
		return "Puck"
	case Forensics:
		return "Kore"
	case Market:
		return "Fenrir"
	case Defusal:
		return "Kore"
	default:
		return "Puck"
	}
}

// Character returns the in-world name of the level's speaker.
func (l Level) Character() string {
	switch l {
	case Interrogation:
		return "Vex"
	case Cyber:
		return "GHOST"
	case Forensics:
		return "ORACLE"
	case Market:
		return "Zero"
	case Defusal:
		return "UNIT-7"
	default:
		return ""
	}
}

// ParseLevel resolves a level name or number from the command line.
func ParseLevel(s string) (Level, error) {
	switch s {
	case "1", "interrogation":
		return Interrogation, nil
	case "2", "cyber":
		return Cyber, nil
	case "3", "forensics":
		return Forensics, nil
	case "4", "market":
		return Market, nil
	case "5", "defusal":
		return Defusal, nil
	}
	return Lobby, fmt.Errorf("game: unknown level %q", s)
}
