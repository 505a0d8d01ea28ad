package credentials

import "strings"

// BuildAuthMetadataContext is the C12 builder: from the outgoing call's URL
// scheme, authority (":authority" / host:port), and method path, produce
// the AuthMetadataContext passed to every CallCredential (spec.md §4.8).
//
// callMethod is parsed as "/Service/Method"; empty Service, empty Method,
// a missing Method, or any other malformed form are all accepted — this
// never fails. callHost has its trailing default port stripped (:443 for
// https, :80 for http); non-default ports and IPv6 literals ("[::1]:8080")
// are preserved untouched.
func BuildAuthMetadataContext(urlScheme, callHost, callMethod string, channelAuthContext any) AuthMetadataContext {
	service, method := splitServiceMethod(callMethod)
	host := stripDefaultPort(urlScheme, callHost)

	serviceURL := urlScheme + "://" + host
	if callMethod != "" {
		serviceURL += "/" + service
	}

	return AuthMetadataContext{
		ServiceURL:         serviceURL,
		MethodName:         method,
		ChannelAuthContext: channelAuthContext,
	}
}

// splitServiceMethod parses "/Service/Method" into its two components,
// tolerating every malformed input spec.md §4.8 lists.
func splitServiceMethod(callMethod string) (service, method string) {
	trimmed := strings.TrimPrefix(callMethod, "/")
	if trimmed == "" {
		return "", ""
	}
	parts := strings.SplitN(trimmed, "/", 2)
	service = parts[0]
	if len(parts) == 2 {
		method = parts[1]
	}
	return service, method
}

// stripDefaultPort removes a trailing ":443" (https) or ":80" (http) from
// host, whether host is a plain name or a bracketed IPv6 literal
// ("[::1]:443"); any other port is left untouched.
func stripDefaultPort(scheme, host string) string {
	defaultPort := defaultPortForScheme(scheme)
	if defaultPort == "" {
		return host
	}
	suffix := ":" + defaultPort
	if strings.HasSuffix(host, suffix) {
		return strings.TrimSuffix(host, suffix)
	}
	return host
}

func defaultPortForScheme(scheme string) string {
	switch scheme {
	case "https":
		return "443"
	case "http":
		return "80"
	default:
		return ""
	}
}
