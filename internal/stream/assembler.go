package stream

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"go.uber.org/zap"

	"github.com/overlax/overlax/internal/logger"
)

// FailureMessage replaces the reply text when a stream cannot be completed.
const FailureMessage = "Sorry, try again!"

const maxLineSize = 1 << 20

// Assembler concatenates delta frames into the reply text
type Assembler struct {
	// FallbackRaw appends non-data lines verbatim.
	FallbackRaw bool
	Logger      *zap.Logger
}

// Assemble reads r until the done sentinel or EOF. onUpdate receives the whole
// accumulated text after every change, never the individual fragment.
func (a *Assembler) Assemble(ctx context.Context, r io.Reader, onUpdate func(full string)) (string, error) {
	log := a.Logger
	if log == nil {
		log = zap.NewNop()
	}

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	var acc strings.Builder
	frames := 0

	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return acc.String(), err
		}

		frame := ParseLine(scanner.Text())
		switch frame.Kind {
		case FrameDone:
			log.Debug("stream_done", zap.Int("frames", frames), zap.Int("length", acc.Len()))
			return acc.String(), nil
		case FrameDelta:
			frames++
			acc.WriteString(frame.Content)
		case FrameRaw:
			if !a.FallbackRaw {
				continue
			}
			acc.WriteString(frame.Content)
		case FrameInvalid:
			log.Debug("stream_frame_invalid",
				zap.String("payload", logger.SanitizeString(frame.Content, logger.MaxErrorMessageLength)))
			continue
		default:
			continue
		}

		if onUpdate != nil {
			onUpdate(acc.String())
		}
	}

	if err := scanner.Err(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return acc.String(), ctxErr
		}
		return acc.String(), fmt.Errorf("failed to read stream: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return acc.String(), err
	}

	log.Debug("stream_eof", zap.Int("frames", frames), zap.Int("length", acc.Len()))
	return acc.String(), nil
}
