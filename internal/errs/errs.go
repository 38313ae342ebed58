// Package errs defines the error taxonomy shared by the retrieval components.
//
// Every component failure carries a Kind so that callers (the pipeline, the
// HTTP layer) can classify it without string matching.
package errs

import (
	"errors"
	"fmt"
	"strings"
)

// Kind classifies a failure.
type Kind int

const (
	KindUnknown Kind = iota
	// KindValidation marks bad caller input (empty image, several faces).
	KindValidation
	// KindNotFound marks missing data (no album, no stored embeddings).
	KindNotFound
	// KindParse marks malformed model output or stored data.
	KindParse
	// KindUpstream marks failures of the store or an external gateway.
	KindUpstream
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindNotFound:
		return "not_found"
	case KindParse:
		return "parse"
	case KindUpstream:
		return "upstream"
	default:
		return "unknown"
	}
}

// Error is a classified error. Op names the failing operation, Msg is a
// human-readable description, Err the optional cause.
type Error struct {
	Kind Kind
	Op   string
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	parts := make([]string, 0, 3)
	if e.Op != "" {
		parts = append(parts, e.Op)
	}
	if e.Msg != "" {
		parts = append(parts, e.Msg)
	}
	if e.Err != nil {
		parts = append(parts, e.Err.Error())
	}
	if len(parts) == 0 {
		return e.Kind.String() + " error"
	}
	return strings.Join(parts, ": ")
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New creates an error of the given kind.
func New(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Msg: msg}
}

// Newf creates an error of the given kind with a formatted message.
func Newf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// Wrap classifies err under kind and op. A nil err yields nil.
func Wrap(kind Kind, op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Op: op, Err: err}
}

// Upstream wraps a store or gateway failure.
func Upstream(op string, err error) error {
	return Wrap(KindUpstream, op, err)
}

// KindOf returns the kind of the outermost classified error in err's chain.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		if e.Kind == KindUnknown && e.Err != nil {
			return KindOf(e.Err)
		}
		return e.Kind
	}
	return KindUnknown
}

// Is reports whether err is classified as kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

var (
	ErrEmptyImage            = New(KindValidation, "reference image is empty")
	ErrUndecodableImage      = New(KindValidation, "reference image could not be decoded")
	ErrNoFaceDetected        = New(KindValidation, "no face detected in the reference image")
	ErrMultipleFacesDetected = New(KindValidation, "multiple faces detected in the reference image, please provide an image with exactly one face")

	ErrNoEmbeddingsAvailable = New(KindNotFound, "no face embeddings available for the project")
	ErrNoMatchingFaces       = New(KindNotFound, "no stored faces match the reference face")
	ErrAlbumNotFound         = New(KindNotFound, "album not found")
	ErrNoKnownPeople         = New(KindNotFound, "failed to fetch people names from albums")
	ErrNoSceneEmbeddings     = New(KindNotFound, "no image embeddings available for the project")
	ErrNoCriteriaResolved    = New(KindNotFound, "neither people nor scene criteria produced a result")

	ErrMalformedEmbedding  = New(KindParse, "malformed embedding")
	ErrMalformedExtraction = New(KindParse, "language model output is not a valid extraction")
)
