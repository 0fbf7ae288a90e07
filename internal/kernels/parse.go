package kernels

import (
	"fmt"
	"regexp"
)

// EntryPoint is one externally callable compute function of a document.
type EntryPoint struct {
	Name string
	// Document is the name of the document that declares the entry point.
	Document string
	// Source is the whole document text. Backends compile the document and
	// select the entry point by name.
	Source string
	// Body is the text of the entry point itself, from its @compute attribute
	// up to the next entry point or the end of the document.
	Body string
}

var (
	entryRe = regexp.MustCompile(`@compute\b`)
	nameRe  = regexp.MustCompile(`^@compute\b[^{]*?\bfn\s+(\w+)\s*\(`)
)

// Parse discovers the entry points declared by doc, in document order.
func Parse(doc Document) ([]EntryPoint, error) {
	locs := entryRe.FindAllStringIndex(doc.Source, -1)
	out := make([]EntryPoint, 0, len(locs))
	seen := make(map[string]struct{}, len(locs))

	for i, loc := range locs {
		end := len(doc.Source)
		if i+1 < len(locs) {
			end = locs[i+1][0]
		}

		body := doc.Source[loc[0]:end]
		m := nameRe.FindStringSubmatch(body)
		if m == nil {
			return nil, fmt.Errorf("kernels: %s: @compute attribute at offset %d is not followed by a function", doc.Name, loc[0])
		}

		name := m[1]
		if _, dup := seen[name]; dup {
			return nil, fmt.Errorf("kernels: %s: duplicate entry point %q", doc.Name, name)
		}
		seen[name] = struct{}{}

		out = append(out, EntryPoint{
			Name:     name,
			Document: doc.Name,
			Source:   doc.Source,
			Body:     body,
		})
	}

	return out, nil
}
