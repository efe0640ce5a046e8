package integrations

import "github.com/kerbaras/novelbind/pkg/data"

// Assembler packages a finished book into an output artifact and
// returns the path it was written to.
type Assembler interface {
	Write(book *data.Book) (string, error)
}
