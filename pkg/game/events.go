package game

import (
	"fmt"
	"sync"

	"github.com/tiagomatias930/Chronicles-of-the-Unspoken/pkg/toolcall"
)

// Events decodes model function calls into typed level-state updates.
// Callbacks are optional; a call with no listener is still acknowledged.
type Events struct {
	mu sync.RWMutex

	onInterrogation func(InterrogationState)
	onCyber         func(CyberState)
	onForensics     func(ForensicsState)
	onMarket        func(MarketState)
	onBomb          func(BombState)
}

// OnInterrogation sets the suspect-state listener.
func (e *Events) OnInterrogation(fn func(InterrogationState)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.onInterrogation = fn
}

// OnCyber sets the firewall-state listener.
func (e *Events) OnCyber(fn func(CyberState)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.onCyber = fn
}

// OnForensics sets the evidence-state listener.
func (e *Events) OnForensics(fn func(ForensicsState)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.onForensics = fn
}

// OnMarket sets the appraisal listener.
func (e *Events) OnMarket(fn func(MarketState)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.onMarket = fn
}

// OnBomb sets the defusal listener.
func (e *Events) OnBomb(fn func(BombState)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.onBomb = fn
}

// Register installs one handler per declared function on b.
func (e *Events) Register(b *toolcall.Bridge) {
	b.Register(ToolUpdateInterrogation, e.handleInterrogation)
	b.Register(ToolUpdateCyber, e.handleCyber)
	b.Register(ToolUpdateForensics, e.handleForensics)
	b.Register(ToolAssessItem, e.handleMarket)
	b.Register(ToolUpdateBomb, e.handleBomb)
}

func (e *Events) handleInterrogation(call toolcall.Call) (string, error) {
	stress, ok := toolcall.Float(call.Args, "suspectStress")
	if !ok {
		return "", missingArg(call, "suspectStress")
	}
	resistance, ok := toolcall.Float(call.Args, "resistance")
	if !ok {
		return "", missingArg(call, "resistance")
	}
	thought, _ := toolcall.String(call.Args, "lastThought")

	e.mu.RLock()
	fn := e.onInterrogation
	e.mu.RUnlock()
	if fn != nil {
		fn(InterrogationState{
			SuspectStress: stress,
			Resistance:    resistance,
			LastThought:   thought,
		})
	}
	return "", nil
}

func (e *Events) handleCyber(call toolcall.Call) (string, error) {
	integrity, ok := toolcall.Float(call.Args, "firewallIntegrity")
	if !ok {
		return "", missingArg(call, "firewallIntegrity")
	}
	status, _ := toolcall.String(call.Args, "statusMessage")

	e.mu.RLock()
	fn := e.onCyber
	e.mu.RUnlock()
	if fn != nil {
		fn(CyberState{FirewallIntegrity: integrity, StatusMessage: status})
	}
	return "", nil
}

func (e *Events) handleForensics(call toolcall.Call) (string, error) {
	corruption, ok := toolcall.Float(call.Args, "corruptionLevel")
	if !ok {
		return "", missingArg(call, "corruptionLevel")
	}
	evidence, _ := toolcall.StringSlice(call.Args, "evidenceFound")
	status, _ := toolcall.String(call.Args, "statusMessage")

	e.mu.RLock()
	fn := e.onForensics
	e.mu.RUnlock()
	if fn != nil {
		fn(ForensicsState{
			CorruptionLevel: corruption,
			EvidenceFound:   evidence,
			StatusMessage:   status,
		})
	}
	return "", nil
}

func (e *Events) handleMarket(call toolcall.Call) (string, error) {
	item, ok := toolcall.String(call.Args, "itemDesc")
	if !ok {
		return "", missingArg(call, "itemDesc")
	}
	value, ok := toolcall.Float(call.Args, "value")
	if !ok {
		return "", missingArg(call, "value")
	}
	message, _ := toolcall.String(call.Args, "message")

	e.mu.RLock()
	fn := e.onMarket
	e.mu.RUnlock()
	if fn != nil {
		fn(MarketState{LastItem: item, LastOffer: value, Message: message})
	}
	return "", nil
}

func (e *Events) handleBomb(call toolcall.Call) (string, error) {
	rawStatus, ok := toolcall.String(call.Args, "status")
	if !ok {
		return "", missingArg(call, "status")
	}
	status := BombStatus(rawStatus)
	if !status.Valid() {
		return "", fmt.Errorf("%s: unknown status %q", call.Name, rawStatus)
	}
	stability, ok := toolcall.Float(call.Args, "stability")
	if !ok {
		return "", missingArg(call, "stability")
	}
	message, _ := toolcall.String(call.Args, "message")
	penalty, _ := toolcall.Float(call.Args, "timePenalty")

	e.mu.RLock()
	fn := e.onBomb
	e.mu.RUnlock()
	if fn != nil {
		fn(BombState{
			Status:      status,
			Message:     message,
			Stability:   stability,
			TimePenalty: penalty,
		})
	}
	return "", nil
}

func missingArg(call toolcall.Call, key string) error {
	return fmt.Errorf("%s: missing argument %q", call.Name, key)
}
