package program

import (
	"fmt"
	"io"
	"os/exec"
	"strings"
)

// PrintDot writes the location graph of f in GraphViz format. Each node is a
// location rendered by format; conditional edges are labelled with the
// branch they take.
func (f *Function) PrintDot(w io.Writer, format func(*Location) string) error {
	if format == nil {
		format = func(l *Location) string { return l.String() }
	}
	var sb strings.Builder
	sb.WriteString("digraph mgraph {\n")
	sb.WriteString("\tmode=\"heir\";\n")
	sb.WriteString("\tsplines=\"ortho\";\n\n")
	fmt.Fprintf(&sb, "\t\"ENTRY\" -> %q\n", format(f.At(f.Entry())))
	for id := range f.Body {
		from := format(f.At(id))
		loc := f.At(id)
		for _, s := range f.Successors(id) {
			to := format(f.At(s))
			switch {
			case loc.Kind != KindGoto || len(f.Successors(id)) == 1:
				fmt.Fprintf(&sb, "\t%q -> %q\n", from, to)
			case s == loc.Target:
				fmt.Fprintf(&sb, "\t%q -> %q [label=\"taken\"]\n", from, to)
			default:
				fmt.Fprintf(&sb, "\t%q -> %q [label=\"not-taken\"]\n", from, to)
			}
		}
	}
	fmt.Fprintf(&sb, "\t%q -> \"EXIT\"\n", format(f.At(f.Exit())))
	sb.WriteString("}\n")
	_, err := io.WriteString(w, sb.String())
	return err
}

// RenderDot runs the GraphViz dot command over a graph produced by PrintDot
// and writes the image to output. The format follows the output extension
// and defaults to svg.
func RenderDot(dot []byte, output string) error {
	format := "svg"
	if i := strings.LastIndexByte(output, '.'); i >= 0 && i < len(output)-1 {
		format = output[i+1:]
	}
	cmd := exec.Command("dot", "-T"+format, "-o", output)
	cmd.Stdin = strings.NewReader(string(dot))
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("dot: %w: %s", err, strings.TrimSpace(string(out)))
	}
	return nil
}
