package websocket

import (
	"os"
	"strings"
)

// getProxyFromEnv 从环境变量获取代理 URL
func getProxyFromEnv() string {
	proxyVars := []string{"HTTP_PROXY", "HTTPS_PROXY", "http_proxy", "https_proxy"}
	for _, v := range proxyVars {
		if proxy := strings.TrimSpace(os.Getenv(v)); proxy != "" {
			return proxy
		}
	}
	return ""
}
