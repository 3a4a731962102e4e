package engine

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/stakesim/stakesim/internal/domain"
)

// eventJSON is the wire form of one input stream line: a type tag plus the
// matching payload.
type eventJSON struct {
	Type       string                  `json:"type"`
	Bet        *domain.BetRecord       `json:"bet,omitempty"`
	Resolution *domain.ResolutionEvent `json:"resolution,omitempty"`
}

// DecodeEvents reads a JSONL event stream: one event per line, each an
// object with a "type" of "bet" or "resolution" and the corresponding
// payload. Blank lines and #-prefixed comment lines are skipped. Events are
// returned in file order, which the engine treats as simulated time order.
func DecodeEvents(r io.Reader) ([]Event, error) {
	var events []Event

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}

		var raw eventJSON
		if err := json.Unmarshal([]byte(text), &raw); err != nil {
			return nil, fmt.Errorf("engine: decode events line %d: %w", line, err)
		}

		switch raw.Type {
		case "bet":
			if raw.Bet == nil {
				return nil, fmt.Errorf("engine: decode events line %d: bet event without bet payload", line)
			}
			events = append(events, Event{Bet: raw.Bet})
		case "resolution":
			if raw.Resolution == nil {
				return nil, fmt.Errorf("engine: decode events line %d: resolution event without resolution payload", line)
			}
			events = append(events, Event{Resolution: raw.Resolution})
		default:
			return nil, fmt.Errorf("engine: decode events line %d: unknown event type %q", line, raw.Type)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("engine: decode events: %w", err)
	}
	return events, nil
}

// LoadEvents decodes an event stream from a file.
func LoadEvents(path string) ([]Event, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("engine: open events %s: %w", path, err)
	}
	defer f.Close()
	return DecodeEvents(f)
}
