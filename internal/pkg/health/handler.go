package health

import (
	"context"
	"net/http"
	"os"
	"runtime"
	"time"

	"github.com/labstack/echo/v4"
)

// Probe reports whether one backing dependency is reachable.
type Probe func(ctx context.Context) error

// BuildInfo describes the running binary for the ping endpoint.
type BuildInfo struct {
	Version     string    `json:"version"`
	GitCommit   string    `json:"git_commit"`
	BuildTime   string    `json:"build_time"`
	ServiceName string    `json:"service_name"`
	GoVersion   string    `json:"go_version"`
	Hostname    string    `json:"hostname"`
	ServerTime  time.Time `json:"server_time"`
}

type readiness struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

const probeTimeout = 2 * time.Second

func buildInfo(serviceName string) BuildInfo {
	info := BuildInfo{
		Version:     "development",
		GitCommit:   "unknown",
		BuildTime:   "unknown",
		ServiceName: serviceName,
		GoVersion:   runtime.Version(),
	}

	if hostname, err := os.Hostname(); err == nil {
		info.Hostname = hostname
	} else {
		info.Hostname = "unknown"
	}
	if version := os.Getenv("VERSION"); version != "" {
		info.Version = version
	}
	if gitCommit := os.Getenv("GIT_COMMIT"); gitCommit != "" {
		info.GitCommit = gitCommit
	}
	if buildTime := os.Getenv("BUILD_TIME"); buildTime != "" {
		info.BuildTime = buildTime
	}
	return info
}

// RegisterHealthEndpoints wires liveness, readiness, and build-info routes.
// Probes are named dependency checks; /ready fails with 503 when any probe
// errors, /health and /healthz stay process-local.
func RegisterHealthEndpoints(e *echo.Echo, serviceName string, probes map[string]Probe) {
	info := buildInfo(serviceName)

	e.GET("/ping", func(c echo.Context) error {
		info.ServerTime = time.Now()
		return c.JSON(http.StatusOK, info)
	})

	e.GET("/health", func(c echo.Context) error {
		return c.String(http.StatusOK, "OK")
	})
	e.GET("/healthz", func(c echo.Context) error {
		return c.String(http.StatusOK, "OK")
	})

	e.GET("/ready", func(c echo.Context) error {
		ctx, cancel := context.WithTimeout(c.Request().Context(), probeTimeout)
		defer cancel()

		result := readiness{Status: "ready", Checks: make(map[string]string, len(probes))}
		code := http.StatusOK
		for name, probe := range probes {
			if err := probe(ctx); err != nil {
				result.Checks[name] = err.Error()
				result.Status = "degraded"
				code = http.StatusServiceUnavailable
				continue
			}
			result.Checks[name] = "ok"
		}
		return c.JSON(code, result)
	})
}
