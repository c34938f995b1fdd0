package httpapi

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"edgeadmin/internal/chart"
	"edgeadmin/internal/form"
	"edgeadmin/internal/keymap"
	"edgeadmin/internal/notice"
)

// prefs

func (s *Server) handleGetPref(c *gin.Context) {
	raw, ok := s.d.Prefs.Raw(c.Param("key"))
	if !ok {
		notFound(c, "pref")
		return
	}
	c.Data(http.StatusOK, "application/json; charset=utf-8", raw)
}

func (s *Server) handleSetPref(c *gin.Context) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, 64<<10))
	if err != nil {
		badRequest(c, err)
		return
	}
	var v any
	if err := json.Unmarshal(body, &v); err != nil {
		badRequest(c, err)
		return
	}
	if !s.d.Prefs.Set(c.Param("key"), v) {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "pref not saved"})
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) handleRemovePref(c *gin.Context) {
	if !s.d.Prefs.Remove(c.Param("key")) {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "pref not removed"})
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) handleClearPrefs(c *gin.Context) {
	if !s.d.Prefs.Clear() {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "prefs not cleared"})
		return
	}
	c.Status(http.StatusNoContent)
}

// forms

func (s *Server) handleValidateForm(c *gin.Context) {
	var req struct {
		Fields []form.Field `json:"fields"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	res := form.Validate(req.Fields)
	for _, msg := range res.Errors {
		s.d.Notices.Notify(msg, notice.SeverityError)
	}
	status := http.StatusOK
	if !res.Valid {
		status = http.StatusUnprocessableEntity
	}
	c.JSON(status, res)
}

// shortcuts

func (s *Server) handleListShortcuts(c *gin.Context) {
	c.JSON(http.StatusOK, keymap.Bindings())
}

func (s *Server) handleDispatchShortcut(c *gin.Context) {
	var combo keymap.Combo
	if err := c.ShouldBindJSON(&combo); err != nil {
		badRequest(c, err)
		return
	}
	act, ok := keymap.Resolve(combo)
	if !ok {
		c.JSON(http.StatusOK, gin.H{"handled": false})
		return
	}
	if act.Kind == keymap.KindHelp {
		s.d.Notices.Publish(act.Message, notice.SeverityInfo, act.Timeout)
	}
	c.JSON(http.StatusOK, gin.H{"handled": true, "action": act})
}

// charts

func (s *Server) handleListCharts(c *gin.Context) {
	c.JSON(http.StatusOK, s.d.Charts.IDs())
}

func (s *Server) handleDeleteChart(c *gin.Context) {
	if !s.d.Charts.Delete(c.Param("id")) {
		notFound(c, "chart")
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) handleGetChart(c *gin.Context) {
	ch, ok := s.d.Charts.Get(c.Param("id"))
	if !ok {
		notFound(c, "chart")
		return
	}
	c.JSON(http.StatusOK, ch.Config())
}

func (s *Server) handlePutChart(c *gin.Context) {
	var o chart.Config
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&o); err != nil {
			badRequest(c, err)
			return
		}
	}
	ch := s.d.Charts.Put(c.Param("id"), o)
	c.JSON(http.StatusOK, ch.Config())
}

func (s *Server) handleChartData(c *gin.Context) {
	var req struct {
		chart.Data
		MaxPoints int `json:"max_points"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	ch, ok := s.d.Charts.Get(c.Param("id"))
	if !ok {
		notFound(c, "chart")
		return
	}
	ch.Update(req.Data, req.MaxPoints)
	c.JSON(http.StatusOK, ch.Config())
}
