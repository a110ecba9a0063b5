// Package ingest turns newline-delimited JSON into tracked events.
package ingest

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	json "github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/bft-labs/outqueue/internal/domain"
	"github.com/bft-labs/outqueue/internal/ports"
)

// EventIDField is the event id property stamped on events that lack one.
const EventIDField = "eid"

// ErrInvalidLine is returned for lines that are not a JSON object.
var ErrInvalidLine = errors.New("invalid event line")

// Tracker accepts events.
type Tracker interface {
	Track(ctx context.Context, event any) error
}

// Stats summarizes one ReadAll call.
type Stats struct {
	Lines   int
	Tracked int
	Invalid int
}

// Decode parses one line into an event object and stamps a random eid when
// the event has none. Numbers keep their textual form.
func Decode(line []byte) (map[string]any, error) {
	dec := json.NewDecoder(bytes.NewReader(line))
	dec.UseNumber()

	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidLine, err)
	}
	event, ok := v.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%w: not an object", ErrInvalidLine)
	}
	if id, ok := event[EventIDField].(string); !ok || id == "" {
		event[EventIDField] = uuid.New().String()
	}
	return event, nil
}

// ReadAll tracks every line of r. Blank lines are skipped and malformed
// ones are logged and counted. A missing collector does not stop the read
// since the events stay queued; any other tracking error does.
func ReadAll(ctx context.Context, r io.Reader, t Tracker, logger ports.Logger) (Stats, error) {
	var stats Stats
	br := bufio.NewReader(r)

	for {
		if err := ctx.Err(); err != nil {
			return stats, err
		}

		line, readErr := br.ReadBytes('\n')
		line = bytes.TrimSpace(line)
		if len(line) > 0 {
			stats.Lines++
			if err := trackLine(ctx, line, t); err != nil {
				switch {
				case errors.Is(err, ErrInvalidLine):
					stats.Invalid++
					logger.Warn("skipping invalid event line", ports.Int("line", stats.Lines), ports.Err(err))
				case errors.Is(err, domain.ErrNoCollector):
					stats.Tracked++
				default:
					return stats, err
				}
			} else {
				stats.Tracked++
			}
		}

		if readErr == io.EOF {
			return stats, nil
		}
		if readErr != nil {
			return stats, fmt.Errorf("read events: %w", readErr)
		}
	}
}

func trackLine(ctx context.Context, line []byte, t Tracker) error {
	event, err := Decode(line)
	if err != nil {
		return err
	}
	return t.Track(ctx, event)
}
