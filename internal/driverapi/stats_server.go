package driverapi

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

// confirmFlushHeader gates the HTTP flush route: the mining host
// itself never goes through HTTP for flush_work (it calls
// HostDriver.FlushWork in-process), so a missing/incorrect header
// here means an operator didn't mean to trigger it.
const confirmFlushHeader = "X-Confirm-Flush"

// StatsServer is the §4.I' addition: a read-mostly HTTP surface over
// a Driver's chains, in the style of hasher-host's gin-based API
// server (cmd/driver/hasher-host/main.go's runAPIServer).
type StatsServer struct {
	driver *Driver
	engine *gin.Engine
}

// NewStatsServer builds the gin engine and registers routes. It does
// not start listening; call Run.
func NewStatsServer(driver *Driver) *StatsServer {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())

	s := &StatsServer{driver: driver, engine: r}
	r.GET("/chains", s.handleListChains)
	r.GET("/chains/:id/stats", s.handleChainStats)
	r.POST("/chains/:id/flush", s.handleFlush)
	return s
}

// Run blocks serving on addr (e.g. ":8080").
func (s *StatsServer) Run(addr string) error {
	return s.engine.Run(addr)
}

// Handler exposes the underlying http.Handler for callers that want
// to embed this inside a larger mux or run their own http.Server.
func (s *StatsServer) Handler() http.Handler {
	return s.engine
}

func (s *StatsServer) handleListChains(c *gin.Context) {
	chains := s.driver.Chains()
	summaries := make([]gin.H, 0, len(chains))
	for _, ch := range chains {
		summaries = append(summaries, gin.H{
			"chain_id":         ch.ChainID,
			"num_chips":        ch.NumChips,
			"num_active_chips": ch.NumActiveChips,
			"perf":             ch.Perf(),
			"disabled":         ch.Disabled(),
		})
	}
	c.JSON(http.StatusOK, gin.H{"chains": summaries})
}

func (s *StatsServer) handleChainStats(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid chain id"})
		return
	}
	ch, ok := s.driver.Chain(id)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown chain id"})
		return
	}
	st := s.driver.Stats(ch)
	c.JSON(http.StatusOK, gin.H{
		"chain_id":     st.ChainID,
		"num_chips":    st.NumChips,
		"asic_count":   st.AsicCount,
		"volt":         float64(st.MilliVolts) / 1000.0,
		"hi_temp":      st.HiTempCelsius,
		"hot_chip":     st.HotChipID,
		"chain_id_end": st.ChainIDEnd,
	})
}

func (s *StatsServer) handleFlush(c *gin.Context) {
	if c.GetHeader(confirmFlushHeader) != "yes" {
		c.JSON(http.StatusPreconditionRequired, gin.H{
			"error": "set " + confirmFlushHeader + ": yes to confirm an operator-triggered flush",
		})
		return
	}
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid chain id"})
		return
	}
	ch, ok := s.driver.Chain(id)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown chain id"})
		return
	}
	if err := s.driver.FlushWork(ch); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "flush_work complete"})
}
