package debug

import (
	"log"

	"github.com/go-echarts/statsview"
	"github.com/go-echarts/statsview/viewer"
)

// StatsPath is where the stats view is served
const StatsPath = "/debug/statsview"

// StatsServer serves live Go runtime charts (heap, goroutines, GC) while the
// emulator runs.
type StatsServer struct {
	addr string
	mgr  *statsview.ViewManager
}

// StartStatsServer launches the stats view on addr in the background
func StartStatsServer(addr string) *StatsServer {
	viewer.SetConfiguration(viewer.WithAddr(addr))
	s := &StatsServer{addr: addr, mgr: statsview.New()}
	go func() {
		if err := s.mgr.Start(); err != nil {
			log.Printf("[DEBUG] Stats server stopped: %v", err)
		}
	}()
	log.Printf("[DEBUG] Stats available at http://%s%s", addr, StatsPath)
	return s
}

// URL returns the address of the stats page
func (s *StatsServer) URL() string {
	return "http://" + s.addr + StatsPath
}

// Stop shuts the server down
func (s *StatsServer) Stop() {
	s.mgr.Stop()
}
