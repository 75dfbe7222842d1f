package formatter

import (
	"encoding/xml"
	"io"

	"github.com/gnolang/summarizer/internal/verify"
)

type xmlLocation struct {
	File     string `xml:"file,attr,omitempty"`
	Line     int    `xml:"line,attr,omitempty"`
	Function string `xml:"function,attr"`
}

type xmlAssignment struct {
	Symbol   string `xml:"symbol,attr"`
	Object   string `xml:"object,attr"`
	Location int    `xml:"location,attr"`
	Value    string `xml:"value"`
}

type xmlResult struct {
	Property    string          `xml:"property,attr"`
	Status      string          `xml:"status,attr"`
	Description string          `xml:"description"`
	Category    string          `xml:"category,omitempty"`
	Location    xmlLocation     `xml:"location"`
	Trace       []xmlAssignment `xml:"goto_trace>assignment,omitempty"`
}

type xmlReport struct {
	XMLName xml.Name    `xml:"cprover"`
	Results []xmlResult `xml:"result"`
	Status  string      `xml:"cprover-status"`
}

// WriteXML writes the report in the XML interface format, ending with
// <cprover-status>SUCCESS</cprover-status> or FAILURE.
func WriteXML(w io.Writer, r *verify.Report, withTrace bool) error {
	doc := xmlReport{Status: "SUCCESS"}
	if r.Verdict == verify.Unsafe {
		doc.Status = "FAILURE"
	}
	for _, p := range r.Properties {
		res := xmlResult{
			Property:    p.ID,
			Status:      StatusWord(p.Status),
			Description: p.Description,
			Category:    p.Category,
			Location:    xmlLocation{File: p.Pos.File, Line: p.Pos.Line, Function: p.Function},
		}
		if withTrace {
			for _, s := range p.Trace {
				res.Trace = append(res.Trace, xmlAssignment(s))
			}
		}
		doc.Results = append(doc.Results, res)
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
