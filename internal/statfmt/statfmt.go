// Package statfmt renders frame and byte counts with locale-aware
// digit grouping for vmctl stat output, using golang.org/x/text/message
// — a dependency the teacher's go.mod already requires, though the
// teacher repo itself never formats anything with it.
package statfmt

import (
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// Printer wraps a golang.org/x/text/message.Printer bound to a fixed
// locale, so vmctl's stat subcommand can render large frame counts like
// "1,048,576" instead of an unglazed integer.
type Printer struct {
	p *message.Printer
}

// New constructs a Printer for the given BCP 47 locale tag, e.g. "en".
func New(tag string) Printer {
	return Printer{p: message.NewPrinter(language.MustParse(tag))}
}

// Frames renders a frame count, e.g. "1,048,576 frames".
func (p Printer) Frames(n int) string {
	return p.p.Sprintf("%d frames", n)
}

// Bytes renders a byte count, e.g. "4,294,967,296 bytes".
func (p Printer) Bytes(n int64) string {
	return p.p.Sprintf("%d bytes", n)
}
