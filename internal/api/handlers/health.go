package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/virellia/driftline/internal/database"
	"github.com/virellia/driftline/internal/oracle"
)

var startTime = time.Now()

// HealthHandler reports service health for the operator and the deploy probe.
type HealthHandler struct {
	db     *database.PostgresDB
	redis  *database.RedisClient
	oracle *oracle.Oracle
}

type HealthResponse struct {
	Status    string            `json:"status"`
	Timestamp time.Time         `json:"timestamp"`
	Services  map[string]string `json:"services"`
	System    SystemStats       `json:"system"`
	Uptime    string            `json:"uptime"`
}

type SystemStats struct {
	MemoryUsedPct float64 `json:"memory_used_pct"`
	CPUPct        float64 `json:"cpu_pct"`
}

// NewHealthHandler creates a health handler. db and redis may be nil when
// those services are disabled in config.
func NewHealthHandler(db *database.PostgresDB, redis *database.RedisClient, o *oracle.Oracle) *HealthHandler {
	return &HealthHandler{
		db:     db,
		redis:  redis,
		oracle: o,
	}
}

func (h *HealthHandler) Health(c *gin.Context) {
	ctx := c.Request.Context()
	services := make(map[string]string)

	if h.db != nil {
		if err := h.db.HealthCheck(ctx); err != nil {
			services["database"] = "unhealthy: " + err.Error()
		} else {
			services["database"] = "healthy"
		}
	} else {
		services["database"] = "disabled"
	}

	if h.redis != nil {
		if err := h.redis.HealthCheck(ctx); err != nil {
			services["redis"] = "unhealthy: " + err.Error()
		} else {
			services["redis"] = "healthy"
		}
	} else {
		services["redis"] = "disabled"
	}

	// A stale oracle is degraded, not down: trading continues on the
	// last-good cache.
	status := oracleHealth(h.oracle)
	services["oracle"] = status

	overall := "healthy"
	for _, s := range services {
		if s != "healthy" && s != "disabled" {
			overall = "degraded"
			break
		}
	}

	response := HealthResponse{
		Status:    overall,
		Timestamp: time.Now(),
		Services:  services,
		System:    systemStats(c),
		Uptime:    time.Since(startTime).Round(time.Second).String(),
	}

	code := http.StatusOK
	if overall != "healthy" {
		code = http.StatusServiceUnavailable
	}
	c.JSON(code, response)
}

func oracleHealth(o *oracle.Oracle) string {
	if o == nil {
		return "disabled"
	}
	st := o.Status()
	switch {
	case st.BreakerOpen:
		return "degraded: fetch breaker open"
	case st.Stale:
		return "degraded: stale"
	default:
		return "healthy"
	}
}

func systemStats(c *gin.Context) SystemStats {
	stats := SystemStats{}
	if memInfo, err := mem.VirtualMemoryWithContext(c.Request.Context()); err == nil {
		stats.MemoryUsedPct = memInfo.UsedPercent
	}
	if cpuPct, err := cpu.PercentWithContext(c.Request.Context(), 0, false); err == nil && len(cpuPct) > 0 {
		stats.CPUPct = cpuPct[0]
	}
	return stats
}
