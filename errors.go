package main

import (
	"fmt"

	"github.com/pkg/errors"
)

type ErrorKind uint

const (
	MissingMetadata ErrorKind = iota + 1
	MalformedMetadata
	ThumbnailDecodeError
	OutputWriteError
	InputReadError
	InvalidProfile
)

func (k ErrorKind) String() string {
	switch k {
	case MissingMetadata:
		return "missing metadata"
	case MalformedMetadata:
		return "malformed metadata"
	case ThumbnailDecodeError:
		return "thumbnail decode error"
	case OutputWriteError:
		return "output write error"
	case InputReadError:
		return "input read error"
	case InvalidProfile:
		return "invalid profile"
	}
	return "error"
}

// Stage names the pipeline step a kind of failure belongs to.
func (k ErrorKind) Stage() string {
	switch k {
	case MissingMetadata, MalformedMetadata:
		return "metadata"
	case ThumbnailDecodeError:
		return "thumbnail"
	case OutputWriteError:
		return "output"
	case InputReadError:
		return "input"
	case InvalidProfile:
		return "profile"
	}
	return "convert"
}

// ConvertError is returned by every stage of a conversion. Tag is the
// metadata tag, thumbnail block or path the failure refers to; Line is the
// 1-based input line when known.
type ConvertError struct {
	Kind ErrorKind
	Tag  string
	Line int
	Err  error
}

func (e *ConvertError) Error() string {
	msg := e.Kind.String()
	if e.Tag != "" {
		msg = fmt.Sprintf("%s: %s", msg, e.Tag)
	}
	if e.Line > 0 {
		msg = fmt.Sprintf("%s at line %d", msg, e.Line)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *ConvertError) Unwrap() error { return e.Err }

func (e *ConvertError) Stage() string { return e.Kind.Stage() }

func newConvertError(kind ErrorKind, tag string, line int, err error) error {
	return &ConvertError{Kind: kind, Tag: tag, Line: line, Err: err}
}

// KindOf reports the ErrorKind carried anywhere in err's chain, or 0.
func KindOf(err error) ErrorKind {
	var ce *ConvertError
	if errors.As(err, &ce) {
		return ce.Kind
	}
	return 0
}
