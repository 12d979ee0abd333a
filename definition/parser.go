package definition

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"strings"

	"github.com/taskgrid/taskgrid/model"
)

// activityElements lists the element local names treated as routable
// activities. Namespace prefixes are ignored so any BPMN dialect parses.
var activityElements = map[string]bool{
	"task":             true,
	"serviceTask":      true,
	"sendTask":         true,
	"receiveTask":      true,
	"userTask":         true,
	"scriptTask":       true,
	"businessRuleTask": true,
	"callActivity":     true,
	"externalTask":     true,
}

// ParseCatalog extracts per-activity routing metadata from a definition
// document. Activities without an id attribute cannot be addressed by a task
// and are skipped. A document without activities yields an empty catalog.
func ParseCatalog(definitionID string, data []byte) (*Catalog, error) {
	decoder := xml.NewDecoder(bytes.NewReader(data))
	catalog := &Catalog{DefinitionID: definitionID, Activities: map[string]*Activity{}}

	var current *Activity
	var structured *model.RoutingProperties
	inExtension := false

	for {
		token, err := decoder.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, &MetadataError{
				DefinitionID: definitionID,
				Reason:       fmt.Sprintf("invalid definition document: %v", err),
			}
		}
		switch actual := token.(type) {
		case xml.StartElement:
			local := actual.Name.Local
			switch {
			case activityElements[local]:
				id := attrValue(actual, "id")
				if id == "" {
					current = nil
					structured = nil
					continue
				}
				current = &Activity{ID: id, Name: attrValue(actual, "name")}
				structured = &model.RoutingProperties{}
			case local == "extensionElements":
				inExtension = current != nil
			case local == "property" && inExtension && current != nil:
				if name := attrValue(actual, "name"); name != "" {
					applyProperty(structured, name, attrValue(actual, "value"))
				}
			case local == "documentation" && current != nil:
				var text string
				if err := decoder.DecodeElement(&text, &actual); err != nil {
					return nil, &MetadataError{
						DefinitionID: definitionID,
						ActivityID:   current.ID,
						Reason:       fmt.Sprintf("invalid documentation element: %v", err),
					}
				}
				current.Documentation = strings.TrimSpace(text)
			}
		case xml.EndElement:
			local := actual.Name.Local
			switch {
			case activityElements[local]:
				if current != nil {
					current.Properties = effectiveProperties(structured, current.Documentation)
					catalog.Activities[current.ID] = current
				}
				current = nil
				structured = nil
				inExtension = false
			case local == "extensionElements":
				inExtension = false
			}
		}
	}
	return catalog, nil
}

func attrValue(element xml.StartElement, name string) string {
	for _, attr := range element.Attr {
		if attr.Name.Local == name {
			return attr.Value
		}
	}
	return ""
}
