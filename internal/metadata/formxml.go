package metadata

import (
	"encoding/xml"
	"errors"
	"io"
	"log"
	"strings"
)

// FormFields extracts the data field logical names referenced by a form's
// XML markup. Field names are lower-cased. Malformed markup yields whatever
// was collected before the parse error; the error is logged, not returned.
func FormFields(formXML string) map[string]bool {
	fields := make(map[string]bool)
	if formXML == "" {
		return fields
	}

	dec := xml.NewDecoder(strings.NewReader(formXML))
	for {
		tok, err := dec.Token()
		if err != nil {
			if !errors.Is(err, io.EOF) {
				log.Printf("WARN: parse form XML: %v", err)
			}
			return fields
		}
		start, ok := tok.(xml.StartElement)
		if !ok || start.Name.Local != "control" {
			continue
		}
		for _, attr := range start.Attr {
			if attr.Name.Local == "datafieldname" && attr.Value != "" {
				fields[strings.ToLower(attr.Value)] = true
			}
		}
	}
}
