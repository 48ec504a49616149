package parsers

import (
	"strings"

	"github.com/convoflow-poc/server/internal/agent/model"
	logx "github.com/convoflow-poc/server/pkg/logger"
)

const routeMarker = "[Selected Route]"

// maxRouteContentLen bounds the classifier output we are willing to scan.
const maxRouteContentLen = 32 * 1024

const maxErrSnippet = 200

func safeSnippet(s string) string {
	s = strings.TrimSpace(s)
	if len(s) <= maxErrSnippet {
		return s
	}
	return s[:maxErrSnippet]
}

type routeAlias struct {
	name  string
	route model.Route
}

// Ordered most specific first so substring matching stays deterministic.
var routeAliases = []routeAlias{
	{"diagram_analyze", model.RouteDiagram},
	{"doc_summarize", model.RouteSummarize},
	{"diagram", model.RouteDiagram},
	{"summarize", model.RouteSummarize},
	{"research", model.RouteResearch},
	{"answer", model.RouteAnswer},
	{"rag", model.RouteRAG},
}

func lookupRoute(key string) (model.Route, bool) {
	for _, a := range routeAliases {
		if a.name == key {
			return a.route, true
		}
	}
	return "", false
}

// ParseRoute extracts the routing decision from classifier output. The
// decision is the first non-empty line after the "[Selected Route]" marker;
// anything unrecognized falls back to the research route so the turn still
// reaches a worker that can gather context.
func ParseRoute(content string) model.Route {
	if len(content) > maxRouteContentLen {
		content = content[:maxRouteContentLen]
	}

	candidate := content
	if idx := strings.Index(content, routeMarker); idx >= 0 {
		candidate = content[idx+len(routeMarker):]
	}

	for _, line := range strings.Split(candidate, "\n") {
		line = strings.TrimSpace(line)
		line = strings.Trim(line, "*`[]:.")
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		key := strings.ToLower(line)
		if route, ok := lookupRoute(key); ok {
			return route
		}
		// Tolerate surrounding prose like "route: rag" on the same line.
		for _, a := range routeAliases {
			if strings.Contains(key, a.name) {
				return a.route
			}
		}
		break
	}

	logx.Warn().
		Str("component", "route_parser").
		Str("content", safeSnippet(candidate)).
		Msg("unrecognized routing decision, defaulting to research")
	return model.RouteResearch
}
