package formatter

import (
	"bytes"
	"fmt"
	"os"
	"strings"
	"text/template"
	"unicode"

	"github.com/fatih/color"

	"github.com/gnolang/summarizer/internal/verify"
)

const tabWidth = 8

var (
	failureStyle  = color.New(color.FgRed, color.Bold)
	successStyle  = color.New(color.FgGreen, color.Bold)
	unknownStyle  = color.New(color.FgHiYellow, color.Bold)
	propertyStyle = color.New(color.FgYellow, color.Bold)
	fileStyle     = color.New(color.FgCyan, color.Bold)
	lineStyle     = color.New(color.FgHiBlue, color.Bold)
	messageStyle  = color.New(color.FgRed, color.Bold)
	traceStyle    = color.New(color.FgGreen, color.Bold)
	noStyle       = color.New(color.FgWhite)
)

// SourceCode holds the lines of one source file.
type SourceCode struct {
	Lines []string
}

// ReadSourceCode reads the file at path.
func ReadSourceCode(path string) (*SourceCode, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return &SourceCode{Lines: strings.Split(string(content), "\n")}, nil
}

// SourceLoader returns the source of a file named in a property position.
type SourceLoader func(filename string) (*SourceCode, error)

// CachedSources reads each file once.
func CachedSources() SourceLoader {
	cache := make(map[string]*SourceCode)
	return func(filename string) (*SourceCode, error) {
		if src, ok := cache[filename]; ok {
			return src, nil
		}
		src, err := ReadSourceCode(filename)
		if err != nil {
			return nil, err
		}
		cache[filename] = src
		return src, nil
	}
}

/***** Failure Builder *****/

type FailureData struct {
	ID              string
	Category        string
	Function        string
	Filename        string
	Padding         string
	Line            int
	Column          int
	MaxLineNumWidth int
	Message         string
	SnippetLines    []string
	CommonIndent    string
	Trace           []verify.Step
}

const failureTemplate = `{{header .ID .Category .MaxLineNumWidth .Filename .Line .Column}}
{{snippet .SnippetLines .Line .MaxLineNumWidth .CommonIndent .Padding}}
{{underlineAndMessage .Message .Padding .Line .Column .SnippetLines .CommonIndent}}{{trace .Trace .Padding}}
`

var failureTmpl = template.Must(template.New("failure").Funcs(template.FuncMap{
	"header":              header,
	"snippet":             codeSnippet,
	"underlineAndMessage": underlineAndMessage,
	"trace":               trace,
}).Parse(failureTemplate))

// FormatFailure renders a failed property with the source line of its
// assertion. The trace is included when withTrace is set.
func FormatFailure(p verify.Property, src *SourceCode, withTrace bool) string {
	line := p.Pos.Line
	maxLineNumWidth := calculateMaxLineNumWidth(line)

	var commonIndent string
	if src != nil && line > 0 && line <= len(src.Lines) {
		commonIndent = findCommonIndent(src.Lines[line-1 : line])
	}
	var lines []string
	if src != nil {
		lines = src.Lines
	}

	data := FailureData{
		ID:              p.ID,
		Category:        p.Category,
		Function:        p.Function,
		Filename:        p.Pos.File,
		Line:            line,
		Column:          p.Pos.Column,
		MaxLineNumWidth: maxLineNumWidth,
		Padding:         strings.Repeat(" ", maxLineNumWidth+1),
		Message:         p.Description,
		SnippetLines:    lines,
		CommonIndent:    commonIndent,
	}
	if withTrace {
		data.Trace = p.Trace
	}

	var buf bytes.Buffer
	if err := failureTmpl.Execute(&buf, data); err != nil {
		return fmt.Sprintf("Error formatting failure: %v", err)
	}
	return buf.String()
}

// utils functions used in the text templates

func header(id string, category string, maxLineNumWidth int, filename string, line int, column int) string {
	endString := failureStyle.Sprint("failure: ")
	endString += propertyStyle.Sprintf("%s", id)
	if category != "" {
		endString += noStyle.Sprintf(" (%s)", category)
	}
	endString += "\n"

	padding := strings.Repeat(" ", maxLineNumWidth)
	endString += lineStyle.Sprintf("%s--> ", padding)
	if column > 0 {
		endString += fileStyle.Sprintf("%s:%d:%d", filename, line, column)
	} else {
		endString += fileStyle.Sprintf("%s:%d", filename, line)
	}
	return endString
}

func codeSnippet(snippetLines []string, line int, maxLineNumWidth int, commonIndent string, padding string) string {
	endString := lineStyle.Sprintf("%s|", padding)
	if line-1 < 0 || line-1 >= len(snippetLines) {
		return endString
	}
	text := strings.TrimPrefix(snippetLines[line-1], commonIndent)
	lineNum := fmt.Sprintf("%*d", maxLineNumWidth, line)
	endString += "\n" + lineStyle.Sprintf("%s | ", lineNum) + expandTabs(text)
	return endString
}

func underlineAndMessage(message string, padding string, line int, column int, snippetLines []string, commonIndent string) string {
	if line <= 0 || line > len(snippetLines) {
		return lineStyle.Sprintf("%s= ", padding) + messageStyle.Sprintf("%s\n", message)
	}
	text := snippetLines[line-1]
	commonIndentWidth := calculateVisualColumn(commonIndent, len(commonIndent)+1)

	underlineStart := calculateVisualColumn(text, column) - commonIndentWidth
	if underlineStart < 0 {
		underlineStart = 0
	}
	underlineEnd := calculateVisualColumn(text, len(strings.TrimRightFunc(text, unicode.IsSpace))+1) - commonIndentWidth
	underlineLength := underlineEnd - underlineStart
	if underlineLength < 1 {
		underlineLength = 1
	}

	endString := lineStyle.Sprintf("%s| ", padding)
	endString += strings.Repeat(" ", underlineStart)
	endString += messageStyle.Sprintf("%s\n", strings.Repeat("~", underlineLength))
	endString += lineStyle.Sprintf("%s= ", padding)
	endString += messageStyle.Sprintf("%s\n", message)
	return endString
}

func trace(steps []verify.Step, padding string) string {
	if len(steps) == 0 {
		return ""
	}
	endString := traceStyle.Sprint("Trace:\n")
	for _, s := range steps {
		endString += lineStyle.Sprintf("%s| ", padding)
		endString += fmt.Sprintf("%s = %s (location %d)\n", s.Object, s.Value, s.Location)
	}
	return endString
}

func calculateMaxLineNumWidth(line int) int {
	return len(fmt.Sprintf("%d", line))
}

// calculateVisualColumn calculates the visual column position
// in a string. taking into account tab characters.
func calculateVisualColumn(line string, column int) int {
	if column < 0 {
		return 0
	}
	visualColumn := 0
	for i, ch := range line {
		if i+1 == column {
			break
		}
		if ch == '\t' {
			visualColumn += tabWidth - (visualColumn % tabWidth)
		} else {
			visualColumn++
		}
	}
	return visualColumn
}

func expandTabs(line string) string {
	var expanded strings.Builder
	visual := 0
	for _, ch := range line {
		if ch == '\t' {
			spaceCount := tabWidth - (visual % tabWidth)
			expanded.WriteString(strings.Repeat(" ", spaceCount))
			visual += spaceCount
			continue
		}
		expanded.WriteRune(ch)
		visual++
	}
	return expanded.String()
}

// findCommonIndent finds the common indent in the code snippet.
func findCommonIndent(lines []string) string {
	if len(lines) == 0 {
		return ""
	}

	// find first non-empty line's indent
	firstIndent := make([]rune, 0)
	for _, line := range lines {
		trimmed := strings.TrimLeftFunc(line, unicode.IsSpace)
		if trimmed != "" {
			firstIndent = []rune(line[:len(line)-len(trimmed)])
			break
		}
	}

	if len(firstIndent) == 0 {
		return ""
	}

	for _, line := range lines {
		trimmed := strings.TrimLeftFunc(line, unicode.IsSpace)
		if trimmed == "" {
			continue
		}
		firstIndent = commonPrefix(firstIndent, []rune(line[:len(line)-len(trimmed)]))
		if len(firstIndent) == 0 {
			break
		}
	}

	return string(firstIndent)
}

// commonPrefix finds the common prefix of two strings.
func commonPrefix(a, b []rune) []rune {
	minLen := len(a)
	if len(b) < minLen {
		minLen = len(b)
	}
	for i := 0; i < minLen; i++ {
		if a[i] != b[i] {
			return a[:i]
		}
	}
	return a[:minLen]
}
