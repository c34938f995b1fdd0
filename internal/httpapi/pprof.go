package httpapi

import (
	"crypto/subtle"
	"net"
	"net/http"
	hpprof "net/http/pprof"
	"strings"

	"github.com/gin-gonic/gin"

	logx "edgeadmin/pkg/logx"
)

// mountPprof registers net/http/pprof under /debug/pprof.
//
// Security: without a token the routes are only mounted on a loopback addr.
func (s *Server) mountPprof(r *gin.Engine) {
	tok := strings.TrimSpace(s.opts.PprofToken)
	if tok == "" && !isLoopbackAddr(s.opts.Addr) {
		s.log.Error("pprof refused: non-loopback addr requires a token", logx.String("addr", s.opts.Addr))
		return
	}

	g := r.Group("/debug/pprof", pprofAuth(tok))
	g.GET("/", gin.WrapF(hpprof.Index))
	g.GET("/cmdline", gin.WrapF(hpprof.Cmdline))
	g.GET("/profile", gin.WrapF(hpprof.Profile))
	g.GET("/symbol", gin.WrapF(hpprof.Symbol))
	g.POST("/symbol", gin.WrapF(hpprof.Symbol))
	g.GET("/trace", gin.WrapF(hpprof.Trace))
	// Named profiles (heap, goroutine, ...) are served by Index.
	g.GET("/:name", gin.WrapF(hpprof.Index))
	s.log.Info("pprof mounted", logx.Bool("token_set", tok != ""))
}

// pprofAuth accepts "Authorization: Bearer <token>" or ?token=<token>.
func pprofAuth(token string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if token == "" {
			c.Next()
			return
		}
		got := c.Query("token")
		if got == "" {
			ah := c.GetHeader("Authorization")
			const p = "Bearer "
			if strings.HasPrefix(ah, p) {
				got = strings.TrimSpace(strings.TrimPrefix(ah, p))
			}
		}
		if subtle.ConstantTimeCompare([]byte(got), []byte(token)) != 1 {
			c.Header("WWW-Authenticate", "Bearer")
			c.AbortWithStatus(http.StatusUnauthorized)
			return
		}
		c.Next()
	}
}

func isLoopbackAddr(addr string) bool {
	h, _, err := net.SplitHostPort(addr)
	if err != nil {
		return false
	}
	h = strings.TrimSpace(h)
	if h == "" {
		// empty host means all interfaces
		return false
	}
	if strings.EqualFold(h, "localhost") {
		return true
	}
	ip := net.ParseIP(h)
	return ip != nil && ip.IsLoopback()
}
