package game

import "github.com/tiagomatias930/Chronicles-of-the-Unspoken/pkg/live"

// Declared function names.
const (
	ToolUpdateInterrogation = "updateInterrogation"
	ToolUpdateCyber         = "updateCyberState"
	ToolUpdateForensics     = "updateForensicsState"
	ToolAssessItem          = "assessItem"
	ToolUpdateBomb          = "updateBombState"
)

var interrogationTool = live.Tool{
	Name:        ToolUpdateInterrogation,
	Description: "Update the psychological state of the suspect Vex.",
	Parameters: map[string]any{
		"type": "object",
		"properties": map[string]any{
			"suspectStress": map[string]any{"type": "number"},
			"resistance":    map[string]any{"type": "number"},
			"lastThought":   map[string]any{"type": "string"},
		},
		"required": []string{"suspectStress", "resistance", "lastThought"},
	},
}

var cyberTool = live.Tool{
	Name:        ToolUpdateCyber,
	Description: "Update the firewall hacking progress.",
	Parameters: map[string]any{
		"type": "object",
		"properties": map[string]any{
			"firewallIntegrity": map[string]any{"type": "number"},
			"statusMessage":     map[string]any{"type": "string"},
		},
		"required": []string{"firewallIntegrity", "statusMessage"},
	},
}

var forensicsTool = live.Tool{
	Name:        ToolUpdateForensics,
	Description: "Update the digital forensics analysis progress.",
	Parameters: map[string]any{
		"type": "object",
		"properties": map[string]any{
			"corruptionLevel": map[string]any{"type": "number"},
			"evidenceFound":   map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
			"statusMessage":   map[string]any{"type": "string"},
		},
		"required": []string{"corruptionLevel", "evidenceFound", "statusMessage"},
	},
}

var marketTool = live.Tool{
	Name:        ToolAssessItem,
	Description: "Evaluate an item shown to the camera.",
	Parameters: map[string]any{
		"type": "object",
		"properties": map[string]any{
			"itemDesc": map[string]any{"type": "string"},
			"value":    map[string]any{"type": "number"},
			"message":  map[string]any{"type": "string"},
		},
		"required": []string{"itemDesc", "value", "message"},
	},
}

var bombTool = live.Tool{
	Name:        ToolUpdateBomb,
	Description: "Update bomb defusal status.",
	Parameters: map[string]any{
		"type": "object",
		"properties": map[string]any{
			"status":      map[string]any{"type": "string", "enum": []string{"active", "exploded", "defused"}},
			"message":     map[string]any{"type": "string"},
			"stability":   map[string]any{"type": "number"},
			"timePenalty": map[string]any{"type": "number"},
		},
		"required": []string{"status", "message", "stability"},
	},
}

// Declarations returns the function declarations a level's session offers
// the model. Menu levels offer none.
func Declarations(level Level) []live.Tool {
	switch level {
	case Interrogation:
		return []live.Tool{interrogationTool}
	case Cyber:
		return []live.Tool{cyberTool}
	case Forensics:
		return []live.Tool{forensicsTool}
	case Market:
		return []live.Tool{marketTool}
	case Defusal:
		return []live.Tool{bombTool}
	default:
		return nil
	}
}
