package httpapi

import (
	"errors"
	"fmt"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"edgeadmin/internal/board"
	"edgeadmin/internal/format"
	"edgeadmin/internal/notice"
	"edgeadmin/internal/refresh"
)

// maxMillis is the largest millisecond count a time.Duration can hold.
const maxMillis = math.MaxInt64 / int64(time.Millisecond)

// millis converts a request field to a duration, rejecting negative and
// overflowing values.
func millis(field string, v int64) (time.Duration, error) {
	if v < 0 || v > maxMillis {
		return 0, fmt.Errorf("%s must be between 0 and %d", field, maxMillis)
	}
	return time.Duration(v) * time.Millisecond, nil
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":          "ok",
		"uptime":          format.Duration(time.Since(s.d.Started)),
		"notices":         s.d.Notices.Len(),
		"refresh_tasks":   s.d.Refresh.Len(),
		"refresh_enabled": s.d.Refresh.Enabled(),
	})
}

// notices

type publishRequest struct {
	Message  string `json:"message" binding:"required"`
	Severity string `json:"severity"`
	// TimeoutMS nil uses the configured default; 0 keeps the notice until dismissed.
	TimeoutMS *int64 `json:"timeout_ms"`
}

func (s *Server) handleListNotices(c *gin.Context) {
	c.JSON(http.StatusOK, s.d.Notices.Live())
}

func (s *Server) handlePublishNotice(c *gin.Context) {
	var req publishRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	sev := notice.SeverityInfo
	if strings.TrimSpace(req.Severity) != "" {
		v, ok := notice.ParseSeverity(req.Severity)
		if !ok {
			badRequest(c, fmt.Errorf("unknown severity %q", req.Severity))
			return
		}
		sev = v
	}

	var h notice.Handle
	if req.TimeoutMS == nil {
		h = s.d.Notices.Notify(req.Message, sev)
	} else {
		timeout, err := millis("timeout_ms", *req.TimeoutMS)
		if err != nil {
			badRequest(c, err)
			return
		}
		h = s.d.Notices.Publish(req.Message, sev, timeout)
	}
	if h == "" {
		c.JSON(http.StatusConflict, gin.H{"error": "notice container missing"})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"id": h})
}

func (s *Server) handleDismissNotice(c *gin.Context) {
	s.d.Notices.Dismiss(notice.Handle(c.Param("id")))
	c.Status(http.StatusNoContent)
}

// regions

// regionView adds a human-readable body size to a region listing.
type regionView struct {
	board.Region
	Size string `json:"size"`
}

func (s *Server) handleListRegions(c *gin.Context) {
	regions := s.d.Board.Regions()
	out := make([]regionView, 0, len(regions))
	for _, r := range regions {
		out = append(out, regionView{Region: r, Size: format.Bytes(uint64(len(r.Body)))})
	}
	c.JSON(http.StatusOK, out)
}

func (s *Server) handleDeclareRegion(c *gin.Context) {
	if err := s.d.Board.Declare(c.Param("id")); err != nil {
		badRequest(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) handleGetRegion(c *gin.Context) {
	r, ok := s.d.Board.Region(c.Param("id"))
	if !ok {
		notFound(c, "region")
		return
	}
	c.JSON(http.StatusOK, r)
}

func (s *Server) handleDropRegion(c *gin.Context) {
	if !s.d.Board.Drop(c.Param("id")) {
		notFound(c, "region")
		return
	}
	c.Status(http.StatusNoContent)
}

// refresh

type startRequest struct {
	Key        string `json:"key" binding:"required"`
	Source     string `json:"source" binding:"required"`
	IntervalMS int64  `json:"interval_ms"`
	Schedule   string `json:"schedule"`
}

type taskView struct {
	refresh.TaskInfo
	LastTickAgo string `json:"last_tick_ago,omitempty"`
	LastOKAgo   string `json:"last_ok_ago,omitempty"`
}

func (s *Server) handleListRefresh(c *gin.Context) {
	tasks := s.d.Refresh.Tasks()
	out := make([]taskView, 0, len(tasks))
	for _, ti := range tasks {
		v := taskView{TaskInfo: ti}
		if !ti.LastTick.IsZero() {
			v.LastTickAgo = format.Ago(ti.LastTick)
		}
		if !ti.LastOK.IsZero() {
			v.LastOKAgo = format.Ago(ti.LastOK)
		}
		out = append(out, v)
	}
	c.JSON(http.StatusOK, gin.H{
		"enabled": s.d.Refresh.Enabled(),
		"tasks":   out,
	})
}

func (s *Server) handleStartRefresh(c *gin.Context) {
	var req startRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	var err error
	if strings.TrimSpace(req.Schedule) != "" {
		err = s.d.Refresh.StartSchedule(req.Key, req.Source, req.Schedule)
	} else {
		interval, ierr := millis("interval_ms", req.IntervalMS)
		if ierr != nil {
			badRequest(c, ierr)
			return
		}
		err = s.d.Refresh.Start(req.Key, req.Source, interval)
	}
	switch {
	case errors.Is(err, refresh.ErrClosed):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
		return
	case err != nil:
		badRequest(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"key": req.Key})
}

func (s *Server) handleStopRefresh(c *gin.Context) {
	s.d.Refresh.Stop(c.Param("key"))
	c.Status(http.StatusNoContent)
}

func (s *Server) handleSetRefreshEnabled(c *gin.Context) {
	var req struct {
		Enabled *bool `json:"enabled" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	s.d.Refresh.SetGlobalEnabled(*req.Enabled)
	c.JSON(http.StatusOK, gin.H{"enabled": s.d.Refresh.Enabled()})
}

func (s *Server) handleToggleRefresh(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"enabled": s.d.Refresh.Toggle()})
}

func (s *Server) handleVisibility(c *gin.Context) {
	var req struct {
		State string `json:"state" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	switch strings.ToLower(req.State) {
	case "visible":
		s.d.Refresh.Resume()
	case "hidden":
		s.d.Refresh.Pause()
	default:
		badRequest(c, fmt.Errorf("state must be visible or hidden, got %q", req.State))
		return
	}
	c.JSON(http.StatusOK, gin.H{"enabled": s.d.Refresh.Enabled()})
}
