package graph

// ChannelMode controls how a node's channel count is chosen.
type ChannelMode int

const (
	// ChannelsInferred takes the channel count from the graph: first from the
	// nearest consumer with a resolved count, then from the first source.
	ChannelsInferred ChannelMode = iota
	// ChannelsSpecified fixes the channel count; inputs with another count
	// are up- or down-mixed.
	ChannelsSpecified
	// ChannelsStrict fixes the channel count and rejects sources with another
	// resolved count.
	ChannelsStrict
)

func (m ChannelMode) String() string {
	switch m {
	case ChannelsInferred:
		return "inferred"
	case ChannelsSpecified:
		return "specified"
	case ChannelsStrict:
		return "strict"
	default:
		return "unknown"
	}
}

// Format is a node's negotiated stream format.
type Format struct {
	NumChannels int
	ChannelMode ChannelMode
	// AutoEnabled nodes are started and stopped together with the context.
	AutoEnabled bool
}

// IsComplete reports whether the channel count is resolved.
func (f Format) IsComplete() bool { return f.NumChannels > 0 }

// NodeOption configures a node at construction.
type NodeOption func(*nodeConfig)

type nodeConfig struct {
	name           string
	format         Format
	autoEnabledSet bool
	native         string
	requiresNative string
}

// Channels fixes the node's channel count; inputs are up- or down-mixed.
func Channels(n int) NodeOption {
	return func(c *nodeConfig) {
		if n > 0 {
			c.format.NumChannels = n
			c.format.ChannelMode = ChannelsSpecified
		}
	}
}

// StrictChannels fixes the channel count and makes connections from
// sources with another count fail.
func StrictChannels(n int) NodeOption {
	return func(c *nodeConfig) {
		if n > 0 {
			c.format.NumChannels = n
			c.format.ChannelMode = ChannelsStrict
		}
	}
}

// InferChannels lets the graph choose the channel count.
func InferChannels() NodeOption {
	return func(c *nodeConfig) {
		c.format.NumChannels = 0
		c.format.ChannelMode = ChannelsInferred
	}
}

// AutoEnable overrides whether the node starts with its context.
func AutoEnable(enabled bool) NodeOption {
	return func(c *nodeConfig) {
		c.format.AutoEnabled = enabled
		c.autoEnabledSet = true
	}
}

// Named sets a node's name used in logs and errors.
func Named(name string) NodeOption {
	return func(c *nodeConfig) {
		c.name = name
	}
}

// Native marks a node as belonging to a native backend identified by key.
func Native(key string) NodeOption {
	return func(c *nodeConfig) {
		c.native = key
	}
}

// RequiresNative makes the node accept only sources native to key. Generic
// sources are routed through an adapter from the context's adapter rules.
func RequiresNative(key string) NodeOption {
	return func(c *nodeConfig) {
		c.requiresNative = key
	}
}
