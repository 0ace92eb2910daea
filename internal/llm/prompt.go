package llm

import (
	"fmt"
	"strings"

	"github.com/compliancedesk/filings/constants"
)

// BuildExtractionPrompt assembles the instruction sent to the model for one
// document. The record type vocabulary and the per-type field keys are
// embedded verbatim so the response can be checked against a closed set.
func BuildExtractionPrompt(fileName, document string) string {
	var b strings.Builder

	b.WriteString("You are a compliance back-office assistant. Extract every filing record from the document below into structured JSON.\n\n")

	b.WriteString("Allowed record_type values (use these exactly, nothing else):\n")
	for _, rt := range constants.RecordTypes {
		fmt.Fprintf(&b, "- %s (%s)\n", rt, constants.Titles[rt])
	}

	b.WriteString("\nFields per record type (use these keys in data; omit or null anything the document does not state; never invent values):\n")
	for _, rt := range constants.RecordTypes {
		fmt.Fprintf(&b, "%s: %s\n", rt, strings.Join(constants.FieldMaps[rt].Keys(), ", "))
	}

	b.WriteString(`
Respond with a single JSON object of this shape and nothing else:
{
  "files": [
    {
      "file_name": "<source file name>",
      "records": [
        {"record_type": "<one of the allowed values>", "data": {"<field key>": "<value>"}}
      ]
    }
  ]
}

Rules:
- One records entry per filing row or line item found in the document.
- Keep numbers as numbers where the document gives them as numbers.
- Dates stay in the format the document uses.
- If the document contains no extractable filing records, return {"files": []}.
`)

	fmt.Fprintf(&b, "\nSource file name: %s\n\nDocument:\n%s\n", fileName, document)
	return b.String()
}
