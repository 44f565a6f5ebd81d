package unprotect

// PresetCompatible configures the default header order: CF-Connecting-IP,
// Client-IP, X-Forwarded-For, X-Forwarded, X-Cluster-Client-IP,
// Forwarded-For, Forwarded, then the remote address.
//
// Any client can set these headers. Prefer a narrower preset when the
// deployment topology is known.
func PresetCompatible() Option {
	return HeaderPriority(DefaultHeaderPriority()...)
}

// PresetDirectConnection resolves from the remote address only.
func PresetDirectConnection() Option {
	return HeaderPriority(SourceRemoteAddr)
}

// PresetCloudflare configures resolution for sites served through
// Cloudflare: CF-Connecting-IP, then the remote address.
func PresetCloudflare() Option {
	return HeaderPriority(HeaderCFConnectingIP, SourceRemoteAddr)
}
