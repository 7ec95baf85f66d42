package fslm

// ARPA back-off language model file parsing, built as a grammar of
// stream.Iteratee values the way original_source/arpa.go parses the
// same file format for the hash-table model. Each n-gram line found
// is handed to a Builder via AddNgram; Builder filters, validates and
// quantizes from there.

import (
	"bytes"
	"fmt"
	"io"
	"strconv"

	"github.com/kho/easy"
	"github.com/kho/stream"
)

// arpaTop is the top-level grammar: the header, zero or more n-gram
// sections, the \end\ marker, then end of input.
type arpaTop struct {
	builder *Builder
}

func (it arpaTop) Final() error { return stream.Match(`\data\`).Final() }

func (it arpaTop) Next(line []byte) (stream.Iteratee, bool, error) {
	return stream.Seq{
		stream.Match(`\data\`),
		skipNgramCounts{},
		stream.Star{ngramSection{it.builder}},
		stream.Match(`\end\`),
		stream.EOF,
	}, false, nil
}

// ReadArpa reads an ARPA-format language model from r, feeding every
// n-gram it finds to a fresh Builder constructed with params, and
// returns the frozen LM.
func ReadArpa(r io.Reader, params Params) (*LM, error) {
	builder := NewBuilder(params)
	if err := stream.Run(stream.EnumRead(r, lineSplit), arpaTop{builder}); err != nil {
		return nil, fmt.Errorf("fslm: ReadArpa: %w", err)
	}
	return builder.Build()
}

// ReadArpaFile is ReadArpa reading from the named file.
func ReadArpaFile(path string, params Params) (*LM, error) {
	in, err := easy.Open(path)
	if err != nil {
		return nil, fmt.Errorf("fslm: ReadArpaFile: %w", err)
	}
	defer in.Close()
	return ReadArpa(in, params)
}

// skipNgramCounts consumes the "ngram 1=..." count lines, which this
// package does not need (n-gram counts are never used to preallocate
// here; Builder grows its slices on demand).
type skipNgramCounts struct{}

func (skipNgramCounts) Final() error { return nil }

func (it skipNgramCounts) Next(line []byte) (stream.Iteratee, bool, error) {
	if line[0] == '\\' {
		return nil, false, nil
	}
	return it, true, nil
}

// ngramSection reads one "\N-grams:" header and dispatches to an
// ngramEntries scanner for that order.
type ngramSection struct {
	builder *Builder
}

func (it ngramSection) Final() error { return stream.ErrExpect(`\N-grams: ...`) }

func (it ngramSection) Next(line []byte) (stream.Iteratee, bool, error) {
	if line[0] != '\\' || !bytes.HasSuffix(line, []byte("-grams:")) {
		return nil, false, stream.ErrExpect(`section header "\N-grams:"`)
	}
	n, err := strconv.Atoi(string(line[1 : len(line)-len("-grams:")]))
	if err != nil || n <= 0 {
		return nil, false, stream.ErrExpect(`positive integer in section header "\N-grams:"`)
	}
	return newNgramEntries(n, it.builder), true, nil
}

// ngramEntries scans zero or more entries of a single n-gram order,
// handing each to the builder.
type ngramEntries struct {
	builder *Builder
	n       int

	// Reused across Next calls to avoid per-line allocation.
	logp, backoff Weight
	context       []string
	word          string
}

func newNgramEntries(n int, b *Builder) *ngramEntries {
	return &ngramEntries{builder: b, n: n, context: make([]string, n-1)}
}

func (it *ngramEntries) Final() error { return nil }

func (it *ngramEntries) Next(line []byte) (stream.Iteratee, bool, error) {
	if line[0] == '\\' {
		return nil, false, nil
	}
	if err := it.parseLine(line); err != nil {
		return nil, false, err
	}
	it.builder.AddNgram(it.context, it.word, it.logp, it.backoff)
	return it, true, nil
}

func (it *ngramEntries) parseLine(line []byte) error {
	tok, rest := tokenSplit(line)
	if tok == "" {
		return stream.ErrExpect("log-probability")
	}
	f, err := strconv.ParseFloat(tok, WeightSize)
	if err != nil {
		return err
	}
	it.logp = Weight(f)

	for i := 1; i < it.n; i++ {
		tok, rest = tokenSplit(rest)
		if tok == "" {
			return stream.ErrExpect(fmt.Sprintf("%d context word(s)", it.n))
		}
		it.context[i-1] = tok
	}

	tok, rest = tokenSplit(rest)
	if tok == "" {
		return stream.ErrExpect("word")
	}
	it.word = tok

	tok, rest = tokenSplit(rest)
	if tok == "" {
		it.backoff = 0
	} else if f, err := strconv.ParseFloat(tok, WeightSize); err == nil {
		it.backoff = Weight(f)
	} else {
		return err
	}

	if len(rest) != 0 {
		return stream.ErrExpect("end of line")
	}
	return nil
}

// Low-level line/token lexing, shared with the rest of the package's
// text-format parsing.

func isSpace(b byte) bool {
	switch b {
	case '\t', '\v', '\f', '\r', ' ':
		return true
	default:
		return false
	}
}

// lineSplit is a bufio.SplitFunc (used indirectly via stream.EnumRead)
// that trims leading/trailing whitespace and blank lines.
func lineSplit(data []byte, atEOF bool) (int, []byte, error) {
	l, r, n := -1, -1, 0
	for i, b := range data {
		if !isSpace(b) && b != '\n' {
			l = i
			break
		}
	}
	if l < 0 {
		return len(data), nil, nil
	}
	for i, b := range data[l+1:] {
		if b == '\n' {
			r, n = l+i, l+i+2
			break
		}
	}
	if r < 0 {
		if !atEOF {
			return l, nil, nil
		}
		r, n = len(data)-1, len(data)
	}
	for isSpace(data[r]) {
		r--
	}
	return n, data[l : r+1], nil
}

func tokenSplit(line []byte) (string, []byte) {
	r := len(line)
	for i, b := range line {
		if isSpace(b) {
			r = i
			break
		}
	}
	token := string(line[:r])
	for i, b := range line[r:] {
		if !isSpace(b) {
			return token, line[r+i:]
		}
	}
	return token, nil
}
