package commands

import (
	"fmt"
	"io"
	"os"

	"github.com/jmylchreest/newsbridge/internal/output"
)

// openWriter opens path (stdout when empty) and wraps it in a writer for
// format. The returned func closes the file.
func openWriter(path string, format output.Format, pretty bool) (output.Writer, func(), error) {
	var out io.Writer = os.Stdout
	closeOut := func() {}
	if path != "" {
		f, err := os.Create(path)
		if err != nil {
			return nil, nil, fmt.Errorf("creating output file: %w", err)
		}
		out = f
		closeOut = func() { _ = f.Close() }
	}

	w, err := output.NewWriter(out, format, output.WithPretty(pretty))
	if err != nil {
		closeOut()
		return nil, nil, err
	}
	return w, closeOut, nil
}
