// Package tcattr reads and writes .tcattr ACL sidecar files.
//
// A sidecar describes the POSIX ACLs to restore on files in its containing
// directory. Change-sets are captured over metadata-lossy transports, so the
// sidecar is the only surviving record of permission intent. The format is a
// sequence of per-file stanzas separated by blank lines:
//
//	# file: etc/shadow
//	user::rw-
//	group::---
//	other::---
//
// The first line of a stanza names the file relative to the sidecar's
// directory; the remaining lines are an opaque ACL description kept verbatim
// for restoration.
package tcattr

import (
	"errors"
	"fmt"
	"strings"
)

// SidecarName is the filename of an ACL sidecar within a directory.
const SidecarName = ".tcattr"

// fileMarker introduces the stanza line that names the target file.
const fileMarker = "# file: "

// ErrMalformedSidecar indicates a sidecar that cannot be parsed into
// stanzas. Parsing is all-or-nothing: silently skipping permission intent
// on a security-relevant subtree is not acceptable.
var ErrMalformedSidecar = errors.New("malformed ACL sidecar")

// Record is one sidecar stanza: a file path relative to the sidecar's
// directory plus the verbatim ACL description recorded for it.
type Record struct {
	// Path is the target file, relative to the sidecar's directory.
	Path string

	// ACL is the recorded description, line-joined without the file
	// marker and without a trailing newline. It is never interpreted,
	// only handed back to the restore call verbatim.
	ACL string
}

// Parse parses sidecar content into records. Stanza order is preserved.
// An empty sidecar yields no records. Any stanza missing the file marker
// makes the whole sidecar malformed.
func Parse(data []byte) ([]Record, error) {
	var records []Record

	for _, stanza := range splitStanzas(string(data)) {
		lines := strings.Split(stanza, "\n")
		if !strings.HasPrefix(lines[0], fileMarker) {
			return nil, fmt.Errorf("%w: stanza %q has no %q marker",
				ErrMalformedSidecar, lines[0], strings.TrimSpace(fileMarker))
		}

		path := strings.TrimPrefix(lines[0], fileMarker)
		if path == "" {
			return nil, fmt.Errorf("%w: empty file path in stanza", ErrMalformedSidecar)
		}

		records = append(records, Record{
			Path: path,
			ACL:  strings.Join(lines[1:], "\n"),
		})
	}

	return records, nil
}

// Format serializes records back into sidecar content. The output
// round-trips through Parse unchanged, so normalization rewrites are
// idempotent.
func Format(records []Record) []byte {
	var b strings.Builder
	for i, rec := range records {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString(fileMarker)
		b.WriteString(rec.Path)
		b.WriteString("\n")
		if rec.ACL != "" {
			b.WriteString(rec.ACL)
			b.WriteString("\n")
		}
	}
	return []byte(b.String())
}

// splitStanzas splits sidecar content on blank lines, dropping empty
// fragments caused by leading, trailing or repeated separators.
func splitStanzas(data string) []string {
	var stanzas []string
	for _, chunk := range strings.Split(data, "\n\n") {
		chunk = strings.Trim(chunk, "\n")
		if chunk != "" {
			stanzas = append(stanzas, chunk)
		}
	}
	return stanzas
}
