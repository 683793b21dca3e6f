package document

import (
	"fmt"
	"os"
	"strings"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/hclsyntax"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/convert"
	"github.com/zclconf/go-cty/cty/function"
	"github.com/zclconf/go-cty/cty/function/stdlib"
)

// hclRootTag is the tag given to the file body, mirroring the XML root element.
const hclRootTag = "server"

// labelAttrs maps a block type to the attribute its single label stands for.
// Block types not listed use "name".
var labelAttrs = map[string]string{
	"action":  "id",
	"setting": "key",
	"baseLib": "path",
}

// hclFunctions are the functions available to attribute expressions.
var hclFunctions = map[string]function.Function{
	"upper":     stdlib.UpperFunc,
	"lower":     stdlib.LowerFunc,
	"trimspace": stdlib.TrimSpaceFunc,
	"format":    stdlib.FormatFunc,
	"coalesce":  stdlib.CoalesceFunc,
	"join":      stdlib.JoinFunc,
}

// newEvalContext exposes the process environment as `env.NAME`.
func newEvalContext(environ []string) *hcl.EvalContext {
	vars := make(map[string]cty.Value, len(environ))
	for _, kv := range environ {
		k, v, ok := strings.Cut(kv, "=")
		if !ok || k == "" {
			continue
		}
		vars[k] = cty.StringVal(v)
	}
	return &hcl.EvalContext{
		Variables: map[string]cty.Value{"env": cty.ObjectVal(vars)},
		Functions: hclFunctions,
	}
}

// ParseHCL decodes an HCL document into a Node tree. The file body becomes the
// root node; each block becomes a child node tagged with the block type, and
// attribute expressions are evaluated against the environment and rendered
// as strings.
func ParseHCL(src []byte, filename string) (*Node, error) {
	file, diags := hclsyntax.ParseConfig(src, filename, hcl.InitialPos)
	if diags.HasErrors() {
		return nil, diags
	}

	body, ok := file.Body.(*hclsyntax.Body)
	if !ok {
		return nil, fmt.Errorf("unexpected HCL body type %T", file.Body)
	}
	return translateBody(newEvalContext(os.Environ()), hclRootTag, nil, body)
}

func translateBody(evalCtx *hcl.EvalContext, tag string, labels []string, body *hclsyntax.Body) (*Node, error) {
	n := NewNode(tag, make(map[string]string, len(body.Attributes)+len(labels)))

	switch len(labels) {
	case 0:
	case 1:
		n.Attrs[labelAttr(tag)] = labels[0]
	default:
		return nil, fmt.Errorf("block %q has %d labels, at most one is allowed", tag, len(labels))
	}

	for name, attr := range body.Attributes {
		if _, dup := n.Attrs[name]; dup {
			return nil, fmt.Errorf("block %q sets %q both as a label and as an attribute", tag, name)
		}
		s, err := attrString(evalCtx, attr)
		if err != nil {
			return nil, err
		}
		n.Attrs[name] = s
	}

	for _, block := range body.Blocks {
		child, err := translateBody(evalCtx, block.Type, block.Labels, block.Body)
		if err != nil {
			return nil, err
		}
		n.Children = append(n.Children, child)
	}
	return n, nil
}

func labelAttr(blockType string) string {
	if a, ok := labelAttrs[blockType]; ok {
		return a
	}
	return "name"
}

// attrString evaluates an attribute to its string form. Values that cannot
// be represented as a string, such as lists or objects, are rejected.
func attrString(evalCtx *hcl.EvalContext, attr *hclsyntax.Attribute) (string, error) {
	val, diags := attr.Expr.Value(evalCtx)
	if diags.HasErrors() {
		return "", diags
	}
	if val.IsNull() || !val.IsWhollyKnown() {
		return "", fmt.Errorf("%s: attribute %q must have a known, non-null value", attr.SrcRange, attr.Name)
	}

	str, err := convert.Convert(val, cty.String)
	if err != nil {
		return "", fmt.Errorf("%s: attribute %q: %s cannot be used as a string: %w", attr.SrcRange, attr.Name, val.Type().FriendlyName(), err)
	}
	return str.AsString(), nil
}
