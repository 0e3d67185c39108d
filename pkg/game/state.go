package game

// InterrogationState tracks the suspect's psyche during level one. The
// player wins by driving Resistance to zero.
type InterrogationState struct {
	// SuspectStress runs 0-100.
	SuspectStress float64 `json:"suspect_stress"`

	// Resistance runs 100 down to 0; zero is a win.
	Resistance float64 `json:"resistance"`

	// LastThought is the suspect's internal monologue.
	LastThought string `json:"last_thought"`
}

// CyberState tracks the firewall breach during level two.
type CyberState struct {
	// FirewallIntegrity runs 100 down to 0.
	FirewallIntegrity float64 `json:"firewall_integrity"`

	StatusMessage string `json:"status_message"`

	// UploadSpeed is display-only and not model-driven.
	UploadSpeed float64 `json:"upload_speed"`
}

// ForensicsState tracks evidence reconstruction during level three.
type ForensicsState struct {
	// CorruptionLevel runs 100 down to 0.
	CorruptionLevel float64 `json:"corruption_level"`

	EvidenceFound []string `json:"evidence_found"`

	StatusMessage string `json:"status_message"`
}

// MarketState tracks the fence's appraisals during level four.
type MarketState struct {
	Credits   float64 `json:"credits"`
	LastItem  string  `json:"last_item"`
	LastOffer float64 `json:"last_offer"`
	Message   string  `json:"message"`
}

// BombStatus is the defusal outcome during level five.
type BombStatus string

const (
	BombActive   BombStatus = "active"
	BombExploded BombStatus = "exploded"
	BombDefused  BombStatus = "defused"
)

// Valid reports whether s is one of the declared statuses.
func (s BombStatus) Valid() bool {
	switch s {
	case BombActive, BombExploded, BombDefused:
		return true
	}
	return false
}

// BombState tracks the device during level five.
type BombState struct {
	Status    BombStatus `json:"status"`
	Message   string     `json:"message"`
	Stability float64    `json:"stability"`

	// TimePenalty is seconds knocked off the countdown for mistakes.
	TimePenalty float64 `json:"time_penalty,omitempty"`
}
