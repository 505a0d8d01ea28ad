package credentials

import "testing"

func TestBuildAuthMetadataContext(t *testing.T) {
	tests := []struct {
		name           string
		scheme         string
		host           string
		callMethod     string
		wantServiceURL string
		wantMethodName string
	}{
		{
			name:           "empty call method yields no trailing service path",
			scheme:         "https",
			host:           "www.foo.com",
			callMethod:     "",
			wantServiceURL: "https://www.foo.com",
			wantMethodName: "",
		},
		{
			name:           "double slash call method yields trailing slash with empty service",
			scheme:         "https",
			host:           "www.foo.com",
			callMethod:     "//",
			wantServiceURL: "https://www.foo.com/",
			wantMethodName: "",
		},
		{
			name:           "well formed service and method",
			scheme:         "https",
			host:           "www.foo.com",
			callMethod:     "/Service/Method",
			wantServiceURL: "https://www.foo.com/Service",
			wantMethodName: "Method",
		},
		{
			name:           "default https port is stripped",
			scheme:         "https",
			host:           "www.foo.com:443",
			callMethod:     "/Service/Method",
			wantServiceURL: "https://www.foo.com/Service",
			wantMethodName: "Method",
		},
		{
			name:           "default http port is stripped",
			scheme:         "http",
			host:           "www.foo.com:80",
			callMethod:     "/Service/Method",
			wantServiceURL: "http://www.foo.com/Service",
			wantMethodName: "Method",
		},
		{
			name:           "non default port is preserved",
			scheme:         "https",
			host:           "www.foo.com:8443",
			callMethod:     "/Service/Method",
			wantServiceURL: "https://www.foo.com:8443/Service",
			wantMethodName: "Method",
		},
		{
			name:           "bracketed IPv6 literal has its default port stripped too",
			scheme:         "https",
			host:           "[1080:0:0:0:8:800:200C:417A]:443",
			callMethod:     "/Service/Method",
			wantServiceURL: "https://[1080:0:0:0:8:800:200C:417A]/Service",
			wantMethodName: "Method",
		},
		{
			name:           "bracketed IPv6 literal with non default port is preserved",
			scheme:         "https",
			host:           "[::1]:8080",
			callMethod:     "/Service/Method",
			wantServiceURL: "https://[::1]:8080/Service",
			wantMethodName: "Method",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := BuildAuthMetadataContext(tt.scheme, tt.host, tt.callMethod, nil)
			if got.ServiceURL != tt.wantServiceURL {
				t.Errorf("ServiceURL = %q, want %q", got.ServiceURL, tt.wantServiceURL)
			}
			if got.MethodName != tt.wantMethodName {
				t.Errorf("MethodName = %q, want %q", got.MethodName, tt.wantMethodName)
			}
		})
	}
}

func TestBuildAuthMetadataContext_PreservesChannelAuthContext(t *testing.T) {
	marker := struct{ tag string }{tag: "channel-info"}
	got := BuildAuthMetadataContext("https", "www.foo.com", "/Service/Method", marker)
	if got.ChannelAuthContext != marker {
		t.Errorf("ChannelAuthContext not preserved: got %#v", got.ChannelAuthContext)
	}
}
