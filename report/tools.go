package report

import (
	"log/slog"
	"math"
	"net/url"
	"os"
	"strings"
)

// FillEnvVar returns the value of a runtime Environment Variable
func FillEnvVar(ev string) string {
	// If the EnvVar doesn't exist return a default string
	value := os.Getenv(ev)
	if value == "" {
		value = "ENOENT"
	}
	return value
}

// FloatPrecise rounds a float to the given number of decimal digits.
// Detail rows use 3 for levels and 1 for expected values.
func FloatPrecise(f float64, digits int) float64 {
	p := math.Pow(10, float64(digits))
	return math.Round(f*p) / p
}

// AppendURLParameter appends an encoded param/value pair to a URL,
// picking '?' or '&' based on what the URL already carries.
func AppendURLParameter(u, param, value string) string {
	var sb strings.Builder
	sb.WriteString(u)
	if strings.Contains(u, "?") {
		sb.WriteByte('&')
	} else {
		sb.WriteByte('?')
	}
	sb.WriteString(url.QueryEscape(param))
	sb.WriteByte('=')
	sb.WriteString(url.QueryEscape(value))
	return sb.String()
}

// AppendGraphFontParam appends the graph.font property as a URL
// parameter when it is configured, and does nothing otherwise.
func AppendGraphFontParam(u string, m MessageResolver) string {
	font := m.GetMessage(graphFontKey, "")
	if font == "" {
		slog.Debug("Property graph.font not found, using default")
		return u
	}
	return AppendURLParameter(u, "font", font)
}

// BuildTimeSeriesURL assembles the address the frontend calls back
// for re-rendered graphs.
func BuildTimeSeriesURL(contextPath, servletPath string, m MessageResolver) string {
	return AppendGraphFontParam(contextPath+servletPath+"/report/graphTimeSeries", m)
}
