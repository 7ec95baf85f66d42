package fslm

// Binary container: a single byte stream holding a magic number, a
// gob-encoded params blob, the Lexicon block, and the NgramLoudsTrie
// block (which itself carries max_n and the optional backoff table),
// per spec §6.1. Grounded on original_source/model.go's
// header+magic+mmap structure: a short fixed preamble followed by a
// gob blob for the schema-stable metadata, with the bulk payload
// written in a dedicated binary format rather than through gob
// (gob's per-call reflection overhead is what the source's own
// MarshalBinary doc comment calls out as "unfortunately very slow").
//
// Unlike the source, which reinterprets the mmapped bytes in place
// via unsafe.Pointer/reflect.SliceHeader, LoadMapped here parses the
// mapped bytes through the same decoder as Load: every component
// still receives an owned, heap-allocated copy of its backing slices.
// This trades the source's true zero-copy aliasing for a decoder that
// cannot violate the Vector/BitVector invariants, at the cost of one
// copy proportional to the container's size. What mmap still buys is
// lifetime control: the mapping is paged in by the OS ahead of that
// copy instead of the process reading (and retaining) the whole file
// eagerly, and MappedFile.Close releases it once the LM built from it
// no longer needs the source bytes.
//
// See DESIGN.md for why this was chosen over reproducing the unsafe
// aliasing tricks.

import (
	"bytes"
	"encoding/gob"
	"fmt"
	"io"
	"os"
	"syscall"
)

// magicNumber identifies a serialized LM container.
const magicNumber uint32 = 0x464C534D // "FSLM", little-endian on the wire.

// Save writes lm's full container to w.
func Save(w io.Writer, lm *LM) error {
	if err := writeU32(w, magicNumber); err != nil {
		return fmt.Errorf("container: writing magic: %w", err)
	}
	blob, err := encodeParams(lm.params)
	if err != nil {
		return fmt.Errorf("container: encoding params: %w", err)
	}
	paramsVec := Vector[int8]{}
	for _, b := range blob {
		paramsVec.PushBack(int8(b))
	}
	if err := paramsVec.WriteTo(w); err != nil {
		return fmt.Errorf("container: writing params blob: %w", err)
	}
	if err := lm.lexicon.WriteTo(w); err != nil {
		return fmt.Errorf("container: writing lexicon: %w", err)
	}
	if err := lm.ngrams.WriteTo(w); err != nil {
		return fmt.Errorf("container: writing n-gram model: %w", err)
	}
	return nil
}

// Load reads a full container from r into a frozen LM.
func Load(r io.Reader) (*LM, error) {
	magic, err := readU32(r)
	if err != nil {
		return nil, fmt.Errorf("container: reading magic: %w", err)
	}
	if magic != magicNumber {
		return nil, fmt.Errorf("container: bad magic number %#x", magic)
	}

	var paramsVec Vector[int8]
	if err := paramsVec.ReadFrom(r); err != nil {
		return nil, fmt.Errorf("container: reading params blob: %w", err)
	}
	blob := make([]byte, paramsVec.Len())
	for i := range blob {
		blob[i] = byte(paramsVec.At(i))
	}
	params, err := decodeParams(blob)
	if err != nil {
		return nil, fmt.Errorf("container: decoding params: %w", err)
	}

	lex, err := ReadLexicon(r)
	if err != nil {
		return nil, fmt.Errorf("container: reading lexicon: %w", err)
	}
	ngrams, err := ReadNgramModel(r, params.QuantizerRange)
	if err != nil {
		return nil, fmt.Errorf("container: reading n-gram model: %w", err)
	}
	return NewLM(lex, ngrams, params), nil
}

func encodeParams(p Params) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(p); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decodeParams(b []byte) (Params, error) {
	var p Params
	err := gob.NewDecoder(bytes.NewReader(b)).Decode(&p)
	return p, err
}

// MappedFile owns a read-only mmap of a container file. Close must be
// called once the LM built from it is no longer in use.
type MappedFile struct {
	file *os.File
	data []byte
}

// OpenMappedFile mmaps path read-only.
func OpenMappedFile(path string) (*MappedFile, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	stat, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}
	data, err := syscall.Mmap(int(f.Fd()), 0, int(stat.Size()), syscall.PROT_READ, syscall.MAP_SHARED)
	if err != nil {
		f.Close()
		return nil, err
	}
	return &MappedFile{file: f, data: data}, nil
}

// Close unmaps the file and closes its descriptor.
func (m *MappedFile) Close() error {
	err1 := syscall.Munmap(m.data)
	err2 := m.file.Close()
	if err1 != nil {
		return err1
	}
	return err2
}

// LoadMapped mmaps path and parses a container out of the mapping. The
// returned MappedFile must be kept open (and eventually Closed by the
// caller) for as long as the LM is used; see the package doc comment
// above for what mmap does and doesn't buy here.
func LoadMapped(path string) (*LM, *MappedFile, error) {
	mf, err := OpenMappedFile(path)
	if err != nil {
		return nil, nil, err
	}
	lm, err := Load(bytes.NewReader(mf.data))
	if err != nil {
		mf.Close()
		return nil, nil, err
	}
	return lm, mf, nil
}
