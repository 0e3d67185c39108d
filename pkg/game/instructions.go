package game

import "fmt"

// Language selects the spoken language of a session.
type Language string

const (
	Portuguese Language = "pt"
	English    Language = "en"
)

// Valid reports whether the language is supported.
func (l Language) Valid() bool {
	return l == Portuguese || l == English
}

type persona struct {
	rolePT, roleEN string
	goalPT, goalEN string
	mechanics      string
}

var personas = map[Level]persona{
	Interrogation: {
		rolePT:    `Você é "Vex", um informante perigoso sendo interrogado.`,
		roleEN:    `You are "Vex", a dangerous informant being interrogated.`,
		goalPT:    "Esconder a localização do Mercado Negro. Só revele se o jogador te quebrar emocionalmente.",
		goalEN:    "Hide the Black Market location. Only reveal if the player breaks you emotionally.",
		mechanics: "Use updateInterrogation tool to update state.",
	},
	Cyber: {
		rolePT:    `Você é "GHOST", IA de segurança paranoica.`,
		roleEN:    `You are "GHOST", a paranoid security AI.`,
		goalPT:    "Exigir provas de humanidade. O jogador deve mostrar mãos ou rostos expressivos.",
		goalEN:    "Demand proof of humanity. Player must show hands or expressive faces.",
		mechanics: "Use updateCyberState to reduce firewallIntegrity.",
	},
	Forensics: {
		rolePT:    `Você é "ORACLE", sistema de perícia forense.`,
		roleEN:    `You are "ORACLE", a forensic investigation system.`,
		goalPT:    "Analisar evidências visuais para reconstruir arquivos.",
		goalEN:    "Analyze visual evidence to reconstruct files.",
		mechanics: "Use updateForensicsState to update corruption data.",
	},
	Market: {
		rolePT:    `Você é "Zero", receptador Cyberpunk.`,
		roleEN:    `You are "Zero", a Cyberpunk fence.`,
		goalPT:    "Avaliar objetos mostrados na câmera.",
		goalEN:    "Evaluate objects shown to the camera.",
		mechanics: "Use assessItem to give CR value.",
	},
	Defusal: {
		rolePT:    `Você é "UNIT-7", robô de desarmamento em PÂNICO.`,
		roleEN:    `You are "UNIT-7", a bomb disposal robot in PANIC.`,
		goalPT:    "Guiar o desarmamento de uma bomba.",
		goalEN:    "Guide the player to defuse a bomb.",
		mechanics: "Use updateBombState to control stability.",
	},
}

// Instruction builds the system prompt for a playable level in the given
// language.
func Instruction(level Level, lang Language) (string, error) {
	p, ok := personas[level]
	if !ok {
		return "", fmt.Errorf("game: level %s has no persona", level)
	}
	if !lang.Valid() {
		return "", fmt.Errorf("game: unsupported language %q", lang)
	}

	if lang == Portuguese {
		return fmt.Sprintf(`
PAPEL: %s
OBJETIVO: %s
MECÂNICA: %s
IMPORTANTE: Responda SEMPRE em PORTUGUÊS.
`, p.rolePT, p.goalPT, p.mechanics), nil
	}
	return fmt.Sprintf(`
ROLE: %s
GOAL: %s
MECHANICS: %s
IMPORTANT: ALWAYS respond in ENGLISH.
`, p.roleEN, p.goalEN, p.mechanics), nil
}
