package formatter

import (
	"encoding/json"
	"io"

	"github.com/gnolang/summarizer/internal/verify"
)

type jsonProperty struct {
	verify.Property
	Status string `json:"status"`
}

type jsonReport struct {
	Verdict    string         `json:"verdict"`
	Failed     int            `json:"failed"`
	Unknown    int            `json:"unknown"`
	Properties []jsonProperty `json:"properties"`
}

// WriteJSON writes the report as one JSON document. Traces are dropped
// unless withTrace is set.
func WriteJSON(w io.Writer, r *verify.Report, withTrace bool) error {
	doc := jsonReport{
		Verdict:    r.Verdict.String(),
		Failed:     r.Failed(),
		Unknown:    r.Unknown(),
		Properties: make([]jsonProperty, 0, len(r.Properties)),
	}
	for _, p := range r.Properties {
		if !withTrace {
			p.Trace = nil
		}
		doc.Properties = append(doc.Properties, jsonProperty{Property: p, Status: StatusWord(p.Status)})
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(doc)
}
