package credentials

import "context"

// compositeCallCredential is the C8 ordered composition of call
// credentials: children run sequentially in declaration order, each
// contributing to the same metadata map, and any failure aborts the rest
// (spec.md §4.5).
type compositeCallCredential struct {
	children []CallCredential
}

// NewCompositeCallCredential composes children in order. Constructing a
// composite of composites flattens rather than nests, so ChildTypes()
// surfaces a flat list of child type strings (spec.md §4.5's flattening
// rule).
func NewCompositeCallCredential(children ...CallCredential) (CallCredential, error) {
	if len(children) == 0 {
		return nil, newError(ErrInvalidConfig, "composite call credential requires at least one child")
	}
	return &compositeCallCredential{children: flattenCallCredentials(children)}, nil
}

func flattenCallCredentials(children []CallCredential) []CallCredential {
	flat := make([]CallCredential, 0, len(children))
	for _, c := range children {
		if inner, ok := c.(*compositeCallCredential); ok {
			flat = append(flat, inner.children...)
		} else {
			flat = append(flat, c)
		}
	}
	return flat
}

// GetRequestMetadata invokes each child strictly in order, merging their
// metadata into a single map; a later child's keys overwrite an earlier
// one's on collision. On the first child failure, the remaining children
// are never invoked.
func (c *compositeCallCredential) GetRequestMetadata(ctx context.Context, authCtx AuthMetadataContext) (map[string]string, error) {
	merged := make(map[string]string)
	for _, child := range c.children {
		md, err := child.GetRequestMetadata(ctx, authCtx)
		if err != nil {
			return nil, err
		}
		for k, v := range md {
			merged[k] = v
		}
	}
	return merged, nil
}

func (c *compositeCallCredential) Type() string { return "Composite" }

// MinSecurityLevel is the max of every child's requirement (spec.md §4.5).
func (c *compositeCallCredential) MinSecurityLevel() SecurityLevel {
	levels := make([]SecurityLevel, len(c.children))
	for i, child := range c.children {
		levels[i] = child.MinSecurityLevel()
	}
	return MaxSecurityLevel(levels...)
}

func (c *compositeCallCredential) DebugString() string {
	out := "CompositeCallCredential{"
	for i, child := range c.children {
		if i > 0 {
			out += ","
		}
		out += child.Type()
	}
	return out + "}"
}

// ChildTypes returns the flat list of child type strings, for
// introspection (testable property 4's "composite flattening" check).
func (c *compositeCallCredential) ChildTypes() []string {
	types := make([]string, len(c.children))
	for i, child := range c.children {
		types[i] = child.Type()
	}
	return types
}
