package export

import (
	"bufio"
	"fmt"
	"io"
)

// WriteMapping writes one "code<TAB>name" line per interned type, ordered by
// code.
func WriteMapping(w io.Writer, names []string) error {
	bw := bufio.NewWriter(w)
	for code, name := range names {
		if _, err := fmt.Fprintf(bw, "%d\t%s\n", code, name); err != nil {
			return err
		}
	}
	return bw.Flush()
}
