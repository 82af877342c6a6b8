package catalog

import "encoding/xml"

// rawNode is a generic, order-preserving XML element tree. The mapping
// document grammar (spec §6) nests dynamic SQL tags and plain text
// arbitrarily inside statement bodies, so unlike a struct-tagged
// encoding/xml target we decode every element into this shape first and
// pattern-match on XMLName.Local while compiling — the XML tokenizer
// itself (encoding/xml's Decoder) stays a dumb, external collaborator
// exactly as spec §1 scopes it; nothing here knows mapping semantics.
type rawNode struct {
	XMLName  xml.Name
	Attrs    []xml.Attr
	Children []rawChild
}

// rawChild is one ordered child of a rawNode: either a text run or a
// nested element. Preserving order is required because ForEach/If/etc.
// bodies interleave literal SQL text with dynamic tags.
type rawChild struct {
	IsText bool
	Text   string
	Elem   *rawNode
}

func (n *rawNode) UnmarshalXML(d *xml.Decoder, start xml.StartElement) error {
	n.XMLName = start.Name
	n.Attrs = start.Attr
	for {
		tok, err := d.Token()
		if err != nil {
			return err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			child := &rawNode{}
			if err := child.UnmarshalXML(d, t); err != nil {
				return err
			}
			n.Children = append(n.Children, rawChild{Elem: child})
		case xml.CharData:
			n.Children = append(n.Children, rawChild{IsText: true, Text: string(t)})
		case xml.EndElement:
			return nil
		}
	}
}

// attr returns the named attribute's value and whether it was present.
func (n *rawNode) attr(name string) (string, bool) {
	for _, a := range n.Attrs {
		if a.Name.Local == name {
			return a.Value, true
		}
	}
	return "", false
}

func (n *rawNode) attrOr(name, def string) string {
	if v, ok := n.attr(name); ok {
		return v
	}
	return def
}

// elements returns the direct child elements, in document order.
func (n *rawNode) elements() []*rawNode {
	var out []*rawNode
	for _, c := range n.Children {
		if c.Elem != nil {
			out = append(out, c.Elem)
		}
	}
	return out
}

// mapperDocument is the root of one mapping file.
type mapperDocument struct {
	Namespace string
	Root      *rawNode
}

func parseMapperDocument(data []byte) (*mapperDocument, error) {
	var root rawNode
	if err := xml.Unmarshal(data, &root); err != nil {
		return nil, err
	}
	ns, _ := root.attr("namespace")
	return &mapperDocument{Namespace: ns, Root: &root}, nil
}
