package compositor

import (
	"bytes"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"
)

// Producer is written into the info dictionary of every merged document.
const Producer = "price-overlay"

// canonical serializes the objects reachable from a catalog. Objects are
// numbered in depth-first order over sorted dictionary keys, so two equal
// documents give equal bytes whatever numbering the reader assigned.
type canonical struct {
	xrt     *model.XRefTable
	numbers map[int]int
	objects []types.Object
}

// writeCanonical writes ctx as a classic xref PDF. The info dictionary is
// rebuilt from now and the file identifier is a digest of the body, so the
// output depends only on the document and the clock.
func writeCanonical(w io.Writer, ctx *model.Context, now time.Time) error {
	if ctx.Root == nil {
		return errors.New("document has no catalog")
	}
	c := &canonical{xrt: ctx.XRefTable, numbers: map[int]int{}}
	if err := c.visit(*ctx.Root, 0); err != nil {
		return err
	}

	date := types.StringLiteral(types.DateString(now))
	info := types.Dict{
		"Producer":     types.StringLiteral(Producer),
		"CreationDate": date,
		"ModDate":      date,
	}
	c.objects = append(c.objects, info)

	var buf bytes.Buffer
	fmt.Fprintf(&buf, "%%PDF-%s\n%%\xE2\xE3\xCF\xD3\n", ctx.VersionString())
	offsets := make([]int, len(c.objects))
	for i, o := range c.objects {
		offsets[i] = buf.Len()
		fmt.Fprintf(&buf, "%d 0 obj\n", i+1)
		if err := c.writeObject(&buf, o); err != nil {
			return fmt.Errorf("object %d: %w", i+1, err)
		}
		buf.WriteString("\nendobj\n")
	}

	sum := sha256.Sum256(buf.Bytes())
	id := types.NewHexLiteral(sum[:16])

	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n", len(c.objects)+1)
	buf.WriteString("0000000000 65535 f \n")
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	trailer := types.Dict{
		"Size": types.Integer(len(c.objects) + 1),
		"Root": *types.NewIndirectRef(1, 0),
		"Info": *types.NewIndirectRef(len(c.objects), 0),
		"ID":   types.Array{id, id},
	}
	fmt.Fprintf(&buf, "trailer\n%s\nstartxref\n%d\n%%%%EOF\n", trailer.PDFString(), xref)

	_, err := w.Write(buf.Bytes())
	return err
}

const maxDepth = 512

func (c *canonical) visit(o types.Object, depth int) error {
	if depth > maxDepth {
		return errors.New("object graph too deep")
	}
	switch o := o.(type) {
	case types.IndirectRef:
		nr := o.ObjectNumber.Value()
		if _, ok := c.numbers[nr]; ok {
			return nil
		}
		obj, err := c.xrt.Dereference(o)
		if err != nil {
			return fmt.Errorf("dereference %d: %w", nr, err)
		}
		c.objects = append(c.objects, obj)
		c.numbers[nr] = len(c.objects)
		return c.visit(obj, depth+1)
	case types.Dict:
		for _, k := range sortedKeys(o) {
			if err := c.visit(o[k], depth+1); err != nil {
				return err
			}
		}
	case types.StreamDict:
		for _, k := range sortedKeys(o.Dict) {
			// Lengths are written inline.
			if k == "Length" {
				continue
			}
			if err := c.visit(o.Dict[k], depth+1); err != nil {
				return err
			}
		}
	case types.Array:
		for _, v := range o {
			if err := c.visit(v, depth+1); err != nil {
				return err
			}
		}
	}
	return nil
}

func (c *canonical) writeObject(buf *bytes.Buffer, o types.Object) error {
	switch o := o.(type) {
	case nil:
		buf.WriteString("null")
	case types.StreamDict:
		if o.Raw == nil && o.Content != nil {
			if err := o.Encode(); err != nil {
				return err
			}
		}
		d := c.remap(o.Dict).(types.Dict)
		d["Length"] = types.Integer(len(o.Raw))
		buf.WriteString(d.PDFString())
		buf.WriteString("\nstream\n")
		buf.Write(o.Raw)
		buf.WriteString("\nendstream")
	default:
		buf.WriteString(c.remap(o).PDFString())
	}
	return nil
}

func (c *canonical) remap(o types.Object) types.Object {
	switch o := o.(type) {
	case types.IndirectRef:
		return *types.NewIndirectRef(c.numbers[o.ObjectNumber.Value()], 0)
	case types.Dict:
		d := make(types.Dict, len(o))
		for k, v := range o {
			d[k] = c.remap(v)
		}
		return d
	case types.Array:
		a := make(types.Array, len(o))
		for i, v := range o {
			a[i] = c.remap(v)
		}
		return a
	}
	return o
}

func sortedKeys(d types.Dict) []string {
	keys := make([]string, 0, len(d))
	for k := range d {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
