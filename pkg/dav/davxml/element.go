// Package davxml is a small namespaced XML element tree.
//
// WebDAV bodies mix the DAV: vocabulary with arbitrary client namespaces,
// and dead properties must round-trip through the attribute store as text.
// Element keeps the fully resolved namespace of every node so a fragment can
// be serialized with String, stored, and parsed back with Parse unchanged.
package davxml

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"
)

// Namespace is the DAV: namespace URI.
const Namespace = "DAV:"

// XMLNamespace is the namespace bound to the reserved "xml" prefix. It is
// never declared.
const XMLNamespace = "http://www.w3.org/XML/1998/namespace"

// ErrMalformed is returned when a document cannot be parsed.
var ErrMalformed = errors.New("malformed XML")

// Name is a namespace-qualified element or attribute name.
type Name struct {
	Space string
	Local string
}

// DAV returns the DAV: name with the given local part.
func DAV(local string) Name {
	return Name{Space: Namespace, Local: local}
}

// String renders the name as "{space}local", or just "local" without a
// namespace. This is also the attribute key used for dead properties.
func (n Name) String() string {
	if n.Space == "" {
		return n.Local
	}
	return "{" + n.Space + "}" + n.Local
}

// ParseName is the inverse of Name.String.
func ParseName(s string) Name {
	if strings.HasPrefix(s, "{") {
		if end := strings.Index(s, "}"); end > 0 {
			return Name{Space: s[1:end], Local: s[end+1:]}
		}
	}
	return Name{Local: s}
}

// Attr is a single attribute.
type Attr struct {
	Name  Name
	Value string
}

// Element is one node of the tree. Text is the character data before the
// first child and Tail the character data that follows the element inside
// its parent, so mixed content keeps its order. Whitespace-only text between
// child elements is dropped on parse.
type Element struct {
	Name     Name
	Attrs    []Attr
	Children []*Element
	Text     string
	Tail     string
}

// NewElement returns an empty element.
func NewElement(name Name) *Element {
	return &Element{Name: name}
}

// NewText returns an element holding only text.
func NewText(name Name, text string) *Element {
	return &Element{Name: name, Text: text}
}

// Append adds children and returns e.
func (e *Element) Append(children ...*Element) *Element {
	e.Children = append(e.Children, children...)
	return e
}

// Add creates a child element and returns it.
func (e *Element) Add(name Name) *Element {
	child := NewElement(name)
	e.Children = append(e.Children, child)
	return child
}

// Child returns the first direct child with the given name, or nil.
func (e *Element) Child(name Name) *Element {
	for _, c := range e.Children {
		if c.Name == name {
			return c
		}
	}
	return nil
}

// Clear removes the element's children and text, keeping name and attributes.
func (e *Element) Clear() {
	e.Children = nil
	e.Text = ""
}

// IsEmpty reports whether the element has neither children nor text.
func (e *Element) IsEmpty() bool {
	return len(e.Children) == 0 && e.Text == ""
}

// Clone returns a deep copy detached from its parent: the copy has no Tail.
func (e *Element) Clone() *Element {
	if e == nil {
		return nil
	}
	return e.clone(false)
}

func (e *Element) clone(withTail bool) *Element {
	c := &Element{Name: e.Name, Text: e.Text}
	if withTail {
		c.Tail = e.Tail
	}
	if len(e.Attrs) > 0 {
		c.Attrs = append([]Attr(nil), e.Attrs...)
	}
	for _, child := range e.Children {
		c.Children = append(c.Children, child.clone(true))
	}
	return c
}

// String serializes the element. Every namespace used in the tree is
// declared on the outermost element: DAV: as "D", others as "ns0", "ns1"...
func (e *Element) String() string {
	var b strings.Builder
	prefixes := assignPrefixes(e)
	writeElement(&b, e, prefixes, true)
	return b.String()
}

// Write writes an XML declaration followed by the serialized element.
func Write(w io.Writer, root *Element) error {
	if _, err := io.WriteString(w, xml.Header); err != nil {
		return err
	}
	_, err := io.WriteString(w, root.String())
	return err
}

type prefixTable struct {
	order  []string
	prefix map[string]string
	next   int
}

func (t *prefixTable) add(space string) {
	if space == "" || space == XMLNamespace {
		return
	}
	if _, ok := t.prefix[space]; ok {
		return
	}
	if space == Namespace {
		t.prefix[space] = "D"
	} else {
		t.prefix[space] = fmt.Sprintf("ns%d", t.next)
		t.next++
	}
	t.order = append(t.order, space)
}

func assignPrefixes(root *Element) *prefixTable {
	t := &prefixTable{prefix: make(map[string]string)}
	var walk func(*Element)
	walk = func(e *Element) {
		t.add(e.Name.Space)
		for _, a := range e.Attrs {
			t.add(a.Name.Space)
		}
		for _, c := range e.Children {
			walk(c)
		}
	}
	walk(root)
	return t
}

func (t *prefixTable) qualify(n Name) string {
	switch n.Space {
	case "":
		return n.Local
	case XMLNamespace:
		return "xml:" + n.Local
	}
	return t.prefix[n.Space] + ":" + n.Local
}

func writeElement(b *strings.Builder, e *Element, t *prefixTable, root bool) {
	qname := t.qualify(e.Name)

	b.WriteString("<")
	b.WriteString(qname)
	if root {
		for _, space := range t.order {
			b.WriteString(" xmlns:")
			b.WriteString(t.prefix[space])
			b.WriteString(`="`)
			_ = xml.EscapeText(b, []byte(space))
			b.WriteString(`"`)
		}
	}
	for _, a := range e.Attrs {
		b.WriteString(" ")
		b.WriteString(t.qualify(a.Name))
		b.WriteString(`="`)
		_ = xml.EscapeText(b, []byte(a.Value))
		b.WriteString(`"`)
	}

	if e.IsEmpty() {
		b.WriteString("/>")
		return
	}

	b.WriteString(">")
	if e.Text != "" {
		_ = xml.EscapeText(b, []byte(e.Text))
	}
	for _, c := range e.Children {
		writeElement(b, c, t, false)
		if c.Tail != "" {
			_ = xml.EscapeText(b, []byte(c.Tail))
		}
	}
	b.WriteString("</")
	b.WriteString(qname)
	b.WriteString(">")
}

// Parse parses a single XML fragment.
func Parse(s string) (*Element, error) {
	return Decode(strings.NewReader(s))
}

// Decode reads one document from r and returns its root element.
func Decode(r io.Reader) (*Element, error) {
	dec := xml.NewDecoder(r)

	var (
		root  *Element
		stack []*Element
	)

	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			el := &Element{Name: Name{Space: t.Name.Space, Local: t.Name.Local}}
			for _, a := range t.Attr {
				if a.Name.Space == "xmlns" || (a.Name.Space == "" && a.Name.Local == "xmlns") {
					continue
				}
				space := a.Name.Space
				if space == "xml" {
					space = XMLNamespace
				}
				el.Attrs = append(el.Attrs, Attr{Name: Name{Space: space, Local: a.Name.Local}, Value: a.Value})
			}

			if len(stack) == 0 {
				if root != nil {
					return nil, fmt.Errorf("%w: multiple root elements", ErrMalformed)
				}
				root = el
			} else {
				parent := stack[len(stack)-1]
				parent.Children = append(parent.Children, el)
			}
			stack = append(stack, el)

		case xml.EndElement:
			dropInterElementSpace(stack[len(stack)-1])
			stack = stack[:len(stack)-1]

		case xml.CharData:
			if len(stack) > 0 {
				parent := stack[len(stack)-1]
				if n := len(parent.Children); n > 0 {
					parent.Children[n-1].Tail += string(t)
				} else {
					parent.Text += string(t)
				}
			} else if strings.TrimSpace(string(t)) != "" {
				return nil, fmt.Errorf("%w: text outside the root element", ErrMalformed)
			}
		}
	}

	if root == nil {
		return nil, fmt.Errorf("%w: empty document", ErrMalformed)
	}
	if len(stack) > 0 {
		return nil, fmt.Errorf("%w: unclosed element %s", ErrMalformed, stack[len(stack)-1].Name)
	}
	return root, nil
}

// dropInterElementSpace clears the text around e's children when all of it
// is whitespace. Mixed content is left untouched.
func dropInterElementSpace(e *Element) {
	if len(e.Children) == 0 {
		return
	}
	if strings.TrimSpace(e.Text) != "" {
		return
	}
	for _, c := range e.Children {
		if strings.TrimSpace(c.Tail) != "" {
			return
		}
	}
	e.Text = ""
	for _, c := range e.Children {
		c.Tail = ""
	}
}
