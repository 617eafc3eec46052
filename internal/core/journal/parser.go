package journal

import (
	"bytes"
	"encoding/json"
	"strings"
	"time"
)

// DefaultEvents are the journal events that mean the ship arrived somewhere.
var DefaultEvents = []string{"FSDJump", "CarrierJump"}

// Arrival reports that the commander entered a star system.
type Arrival struct {
	System    string
	Timestamp time.Time
	File      string
}

// Parser extracts arrivals from journal lines.
type Parser struct {
	events map[string]struct{}
}

// NewParser returns a Parser that accepts the named events. An empty list
// selects DefaultEvents.
func NewParser(events []string) *Parser {
	if len(events) == 0 {
		events = DefaultEvents
	}
	p := &Parser{events: make(map[string]struct{}, len(events))}
	for _, e := range events {
		p.events[strings.TrimSpace(e)] = struct{}{}
	}
	return p
}

type record struct {
	Timestamp  string `json:"timestamp"`
	Event      string `json:"event"`
	StarSystem string `json:"StarSystem"`
}

// Parse decodes one line. ok is false for blank, malformed or irrelevant
// lines and for arrival records without a system name.
func (p *Parser) Parse(line []byte) (Arrival, bool) {
	line = bytes.TrimSpace(line)
	if len(line) == 0 || line[0] != '{' {
		return Arrival{}, false
	}

	var rec record
	if err := json.Unmarshal(line, &rec); err != nil {
		return Arrival{}, false
	}
	if _, ok := p.events[rec.Event]; !ok {
		return Arrival{}, false
	}

	system := strings.TrimSpace(rec.StarSystem)
	if system == "" {
		return Arrival{}, false
	}

	ts, _ := time.Parse(time.RFC3339, rec.Timestamp)
	return Arrival{System: system, Timestamp: ts}, true
}
