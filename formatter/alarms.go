package formatter

import (
	"encoding/xml"
	"io"
	"os"

	"github.com/gnolang/summarizer/internal/verify"
)

type alarm struct {
	ID       string `xml:"id"`
	Message  string `xml:"message"`
	Category string `xml:"category"`
	File     string `xml:"file"`
	Line     int    `xml:"line"`
}

type alarms struct {
	XMLName    xml.Name `xml:"data"`
	Properties []alarm  `xml:"property"`
}

// WriteAlarms writes the failed properties as storefront alarms.
func WriteAlarms(w io.Writer, r *verify.Report) error {
	doc := alarms{Properties: []alarm{}}
	for _, p := range r.Properties {
		if p.Status != verify.StatusFail {
			continue
		}
		doc.Properties = append(doc.Properties, alarm{
			ID:       p.ID,
			Message:  p.Description,
			Category: p.Category,
			File:     p.Pos.File,
			Line:     p.Pos.Line,
		})
	}
	if _, err := io.WriteString(w, xml.Header); err != nil {
		return err
	}
	enc := xml.NewEncoder(w)
	enc.Indent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return err
	}
	_, err := io.WriteString(w, "\n")
	return err
}

// WriteAlarmsFile writes the storefront alarms to path.
func WriteAlarmsFile(path string, r *verify.Report) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := WriteAlarms(f, r); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
