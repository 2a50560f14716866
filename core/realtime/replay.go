package realtime

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/koscakluka/ema-transcript/core/events"
)

const maxRecordedEventSize = 4 * 1024 * 1024

// Replay feeds a JSONL recording, one wire event per line, to handler. Blank
// lines and lines starting with '#' are ignored and undecodable lines are
// logged and skipped. Events are stamped when their line is decoded.
func Replay(ctx context.Context, r io.Reader, handler Handler) error {
	ctx, span := tracer.Start(ctx, "replay realtime events")
	defer span.End()

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxRecordedEventSize)

	line := 0
	for scanner.Scan() {
		line++
		if err := ctx.Err(); err != nil {
			return err
		}

		msg := bytes.TrimSpace(scanner.Bytes())
		if len(msg) == 0 || msg[0] == '#' {
			continue
		}

		event, err := events.Decode(msg)
		if err != nil {
			logger.WarnContext(ctx, "Skipping undecodable recorded event", "line", line, "error", err)
			continue
		}
		handler(ctx, event)
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("failed to read recording: %w", err)
	}

	return nil
}
