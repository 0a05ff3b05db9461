// SPDX-License-Identifier: MPL-2.0

package extract

import "archive/tar"

const (
	// ActionExtract materializes the entry in the staging directory.
	ActionExtract Action = iota
	// ActionSkip drops the entry without failing the extraction.
	ActionSkip
)

// Action is the outcome of applying the entry policy to an archive header.
type Action int

// String returns "extract" or "skip".
func (a Action) String() string {
	if a == ActionSkip {
		return "skip"
	}
	return "extract"
}

// Classify applies the entry policy to hdr:
//   - regular files and directories are extracted
//   - symlinks are skipped, so a remote artifact can never plant a link that
//     points outside the install tree
//   - pax global headers carry archive metadata, not content, and are skipped
//   - every other type (hard links, devices, fifos, unknown) is an
//     *EntryTypeError and aborts the extraction
func Classify(hdr *tar.Header) (Action, error) {
	switch hdr.Typeflag {
	case tar.TypeReg, tar.TypeRegA, tar.TypeDir: //nolint:staticcheck // TypeRegA still appears in old archives.
		return ActionExtract, nil
	case tar.TypeSymlink, tar.TypeXGlobalHeader:
		return ActionSkip, nil
	}
	return ActionSkip, &EntryTypeError{Name: hdr.Name, Typeflag: hdr.Typeflag}
}
