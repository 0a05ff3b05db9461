// SPDX-License-Identifier: MPL-2.0

package extract

import (
	"archive/tar"
	"errors"
	"fmt"

	"github.com/opencontainers/go-digest"
)

const (
	// StageStream is reading the source stream.
	StageStream Stage = "stream"
	// StageVerify is comparing the computed digest with the expected one.
	StageVerify Stage = "verify"
	// StageDecompress is gunzipping the forked stream.
	StageDecompress Stage = "decompress"
	// StageExtract is unpacking archive entries into the staging directory.
	StageExtract Stage = "extract"
	// StageInstall is promoting the staged tree into the output directory.
	StageInstall Stage = "install"
)

var (
	// ErrIntegrity indicates the stream digest does not match the expected digest.
	ErrIntegrity = errors.New("integrity check failed")

	// ErrFormat indicates the stream is not a valid gzip-compressed tar archive
	// or contains an entry the extraction policy does not allow.
	ErrFormat = errors.New("invalid archive")

	// ErrInvalidRequest is returned before any I/O when a Request is incomplete.
	ErrInvalidRequest = errors.New("invalid extraction request")

	// errAborted is passed through the pipe when one side of the fork fails, so
	// the other side can stop without reporting a second, derived error.
	errAborted = errors.New("extraction aborted")
)

type (
	// Stage names the part of the pipeline an error came from.
	Stage string

	// StageError reports which pipeline stage failed. Every fatal error returned
	// by Extract is a *StageError.
	StageError struct {
		Stage Stage
		Err   error
	}

	// DigestMismatchError is returned when the computed digest differs from the
	// expected one. It wraps ErrIntegrity.
	DigestMismatchError struct {
		Expected digest.Digest
		Got      digest.Digest
	}

	// EntryTypeError is returned for archive entries that are neither regular
	// files, directories nor symlinks. It wraps ErrFormat.
	EntryTypeError struct {
		Name     string
		Typeflag byte
	}
)

// Error returns "<stage>: <cause>".
func (e *StageError) Error() string {
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

// Unwrap returns the underlying cause.
func (e *StageError) Unwrap() error { return e.Err }

// Error shows both digests so a corrupted download can be told apart from a
// wrong expected value.
func (e *DigestMismatchError) Error() string {
	return fmt.Sprintf("digest mismatch: expected %s, computed %s", e.Expected, e.Got)
}

// Unwrap returns ErrIntegrity so callers can use errors.Is.
func (e *DigestMismatchError) Unwrap() error { return ErrIntegrity }

func (e *EntryTypeError) Error() string {
	return fmt.Sprintf("archive entry %q has unsupported type %s", e.Name, typeName(e.Typeflag))
}

// Unwrap returns ErrFormat so callers can use errors.Is.
func (e *EntryTypeError) Unwrap() error { return ErrFormat }

func stageErr(stage Stage, err error) error {
	if err == nil {
		return nil
	}
	return &StageError{Stage: stage, Err: err}
}

// formatErr marks err as a format error while keeping the original cause
// reachable through errors.Is/As.
func formatErr(err error) error {
	if errors.Is(err, ErrFormat) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrFormat, err)
}

func typeName(flag byte) string {
	switch flag {
	case tar.TypeLink:
		return "hardlink"
	case tar.TypeChar:
		return "char device"
	case tar.TypeBlock:
		return "block device"
	case tar.TypeFifo:
		return "fifo"
	case tar.TypeCont:
		return "contiguous file"
	case tar.TypeGNUSparse:
		return "sparse file"
	}
	return fmt.Sprintf("%q", flag)
}
