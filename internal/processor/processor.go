// Package processor orchestrates the per-line parsing pipeline: read a
// source line by line, classify each line against the pattern set, extract
// typed fields on a match, and keep unmatched lines as sentinel records.
package processor

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"go.uber.org/zap"

	"github.com/pklundberg/logsieve/internal/classify"
	"github.com/pklundberg/logsieve/internal/coerce"
	"github.com/pklundberg/logsieve/internal/patterns"
	"github.com/pklundberg/logsieve/pkg/models"
)

// ErrSourceRead marks a failure to open or read an input source. It is the
// only fatal outcome of a processing run; individual malformed lines never
// are.
var ErrSourceRead = errors.New("source read")

const (
	// defaultMaxLineSize bounds the scanner buffer, not the match: a line
	// up to this size is attempted whole, never truncated.
	defaultMaxLineSize = 1024 * 1024
	initialBufferSize  = 64 * 1024
)

// Options tune a Processor.
type Options struct {
	// FoldContinuations appends an indented line that matches no pattern
	// to the preceding record's message instead of emitting a sentinel,
	// the way multiline tracebacks are usually logged. Off by default
	// because it trades away the one-record-per-line invariant.
	FoldContinuations bool

	// MaxLineSize caps the scanner buffer. Zero means the default (1MB).
	MaxLineSize int
}

// Processor parses one source at a time, sequentially and in input order.
// It holds no cross-call state; a single Processor may be reused for many
// sources, and independent sources may be processed concurrently by
// separate calls sharing the same pattern set.
type Processor struct {
	set     *patterns.Set
	coercer *coerce.Coercer
	opts    Options
	logger  *zap.Logger
}

// New creates a Processor over an immutable pattern set.
func New(set *patterns.Set, coercer *coerce.Coercer, logger *zap.Logger, opts Options) *Processor {
	if coercer == nil {
		coercer = coerce.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.MaxLineSize <= 0 {
		opts.MaxLineSize = defaultMaxLineSize
	}
	return &Processor{set: set, coercer: coercer, opts: opts, logger: logger}
}

// Process consumes the source line by line and returns one record per
// input line, in input order. It completes even when every pattern fails
// to match; only a read failure aborts, wrapped in ErrSourceRead.
func (p *Processor) Process(ctx context.Context, source string, r io.Reader) (*models.Result, error) {
	result := &models.Result{
		Source:  source,
		Columns: p.set.Columns(),
		Matches: make(map[string]int),
	}

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, initialBufferSize), p.opts.MaxLineSize)

	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		p.consume(scanner.Text(), result)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrSourceRead, source, err)
	}

	p.logger.Debug("source processed",
		zap.String("source", source),
		zap.Int("lines", result.Lines()),
		zap.Int("unmatched", result.Unmatched),
	)
	return result, nil
}

// ProcessFile opens and processes a file. An open failure is a source read
// error, same as a mid-stream one.
func (p *Processor) ProcessFile(ctx context.Context, path string) (*models.Result, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSourceRead, err)
	}
	defer f.Close()
	return p.Process(ctx, path, f)
}

// consume routes one line into the result.
func (p *Processor) consume(line string, result *models.Result) {
	def, m := classify.Classify(line, p.set)
	if def != nil {
		result.Records = append(result.Records, p.coercer.Extract(line, def, m))
		result.Matches[def.Name]++
		return
	}

	if p.opts.FoldContinuations && isContinuation(line) && len(result.Records) > 0 {
		prev := &result.Records[len(result.Records)-1]
		prev.Fields[models.FieldMessage] = prev.Message() + " " + strings.TrimSpace(line)
		result.Folded++
		return
	}

	result.Records = append(result.Records, models.UnmatchedRecord(line))
	result.Unmatched++
}

// isContinuation reports whether an unmatched line looks like the
// continuation of a previous entry: indented and not empty.
func isContinuation(line string) bool {
	if strings.TrimSpace(line) == "" {
		return false
	}
	return line[0] == ' ' || line[0] == '\t'
}
