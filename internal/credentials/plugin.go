package credentials

import "context"

// MetadataPluginFunc is a user-supplied callback: given the auth context,
// produce request metadata. It may block (the synchronous case) or return
// quickly after spawning its own goroutine that later writes to a channel
// it controls — the bridge does not care which, since both present
// identically to GetRequestMetadata's caller via ctx cancellation (spec.md
// §4.7 collapses the original's explicit sync/async return value into
// Go's uniform blocking-call shape).
type MetadataPluginFunc func(ctx context.Context, authCtx AuthMetadataContext) (map[string]string, error)

// MetadataPluginCredential is the C11 bridge: it adapts a user-supplied
// callback into a CallCredential, translating a non-nil error into the
// package's Error type with the plugin's detail string preserved verbatim
// (spec.md §4.7, §7).
type MetadataPluginCredential struct {
	name        string
	fn          MetadataPluginFunc
	minSecurity SecurityLevel
	debug       string
}

// NewMetadataPluginCredential wraps fn. name identifies the plugin kind for
// Type(); debug is returned verbatim from DebugString().
func NewMetadataPluginCredential(name string, fn MetadataPluginFunc, minSecurity SecurityLevel, debug string) *MetadataPluginCredential {
	return &MetadataPluginCredential{name: name, fn: fn, minSecurity: minSecurity, debug: debug}
}

// GetRequestMetadata invokes the plugin callback and translates a non-nil
// error into a PluginFailure, with the message
// "Getting metadata from plugin failed with error: <detail>" per spec.md
// §4.7.
func (c *MetadataPluginCredential) GetRequestMetadata(ctx context.Context, authCtx AuthMetadataContext) (map[string]string, error) {
	md, err := c.fn(ctx, authCtx)
	if err != nil {
		return nil, wrapError(ErrPluginFailure, "Getting metadata from plugin failed with error: "+err.Error(), err)
	}
	return md, nil
}

func (c *MetadataPluginCredential) Type() string { return c.name }

func (c *MetadataPluginCredential) MinSecurityLevel() SecurityLevel { return c.minSecurity }

func (c *MetadataPluginCredential) DebugString() string { return c.debug }
