package models

import (
	"fmt"

	"github.com/pkg/errors"
)

type ErrorKind int

const (
	MalformedElf ErrorKind = iota + 1
	UnsupportedElfType
	SectionNotFound
	SegmentOutOfBounds
	MissingDynamicSymbols
	MissingRelocationSection
	UnresolvedAbiSymbol
	AbiTableFull
	TruncatedImage
	UnsupportedMachine
	UnsupportedRelocation
	RelocationOutOfBounds
	EntryOutOfBounds
)

var kindNames = map[ErrorKind]string{
	MalformedElf:             "MalformedElf",
	UnsupportedElfType:       "UnsupportedElfType",
	SectionNotFound:          "SectionNotFound",
	SegmentOutOfBounds:       "SegmentOutOfBounds",
	MissingDynamicSymbols:    "MissingDynamicSymbols",
	MissingRelocationSection: "MissingRelocationSection",
	UnresolvedAbiSymbol:      "UnresolvedAbiSymbol",
	AbiTableFull:             "AbiTableFull",
	TruncatedImage:           "TruncatedImage",
	UnsupportedMachine:       "UnsupportedMachine",
	UnsupportedRelocation:    "UnsupportedRelocation",
	RelocationOutOfBounds:    "RelocationOutOfBounds",
	EntryOutOfBounds:         "EntryOutOfBounds",
}

func (k ErrorKind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("ErrorKind(%d)", int(k))
}

// LoadError is the only error type the load pipeline produces. None of its
// kinds are recoverable: the boot sequence halts on any of them.
type LoadError struct {
	Kind ErrorKind
	// offending file/zone offset, if any
	Off uint64
	// offending section or symbol name, if any
	Name string
	Msg  string
	Err  error
}

func (e *LoadError) Error() string {
	s := e.Kind.String()
	if e.Msg != "" {
		s += ": " + e.Msg
	}
	if e.Err != nil {
		s += ": " + e.Err.Error()
	}
	return s
}

func (e *LoadError) Unwrap() error {
	return e.Err
}

// LoadErrorf returns a stack-annotated *LoadError.
func LoadErrorf(kind ErrorKind, off uint64, name string, format string, args ...interface{}) error {
	return errors.WithStack(&LoadError{
		Kind: kind,
		Off:  off,
		Name: name,
		Msg:  fmt.Sprintf(format, args...),
	})
}

func WrapLoadError(err error, kind ErrorKind, format string, args ...interface{}) error {
	return errors.WithStack(&LoadError{
		Kind: kind,
		Msg:  fmt.Sprintf(format, args...),
		Err:  err,
	})
}

// AsLoadError digs the *LoadError out of a pkg/errors chain.
func AsLoadError(err error) (*LoadError, bool) {
	le, ok := errors.Cause(err).(*LoadError)
	return le, ok
}

func KindOf(err error) ErrorKind {
	if le, ok := AsLoadError(err); ok {
		return le.Kind
	}
	return 0
}
