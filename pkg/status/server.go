package status

import (
	"context"
	"net/http"
	"sort"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jxo-me/ddnsd/core/ddns"
	"github.com/jxo-me/ddnsd/core/logger"
	reg "github.com/jxo-me/ddnsd/core/registry"
	"github.com/jxo-me/ddnsd/core/service"
	sdklogger "github.com/jxo-me/ddnsd/sdk/logger"
	sdkservice "github.com/jxo-me/ddnsd/sdk/service"
	"github.com/pkg/errors"
)

// Reporter is implemented by services that can describe their state.
type Reporter interface {
	Status() sdkservice.Status
	Cached() (ddns.Record, bool, error)
}

// Server is a read-only HTTP view of the running services.
type Server struct {
	engine   *gin.Engine
	srv      *http.Server
	services reg.IRegistry[service.IDDNSService]
	logger   logger.ILogger
}

func NewServer(listen string, services reg.IRegistry[service.IDDNSService], log logger.ILogger) *Server {
	if log == nil {
		log = sdklogger.Nop()
	}
	if !log.IsLevelEnabled(logger.DebugLevel) {
		gin.SetMode(gin.ReleaseMode)
	}

	s := &Server{
		engine:   gin.New(),
		services: services,
		logger:   log.WithFields(map[string]any{"component": "status"}),
	}
	s.engine.Use(gin.Recovery(), s.requestLogger())
	s.engine.GET("/healthz", s.healthz)
	s.engine.GET("/status", s.status)

	s.srv = &http.Server{
		Addr:              listen,
		Handler:           s.engine,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

func (s *Server) Handler() http.Handler {
	return s.engine
}

// Start serves until Shutdown is called.
func (s *Server) Start() error {
	s.logger.Infof("status endpoint listening on %s", s.srv.Addr)
	if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.Wrap(err, "status endpoint")
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.Debugf("%s %s %d %s", c.Request.Method, c.Request.URL.Path, c.Writer.Status(), time.Since(start))
	}
}

func (s *Server) healthz(c *gin.Context) {
	c.String(http.StatusOK, "ok")
}

func (s *Server) status(c *gin.Context) {
	all := s.services.GetAll()
	names := make([]string, 0, len(all))
	for name := range all {
		names = append(names, name)
	}
	sort.Strings(names)

	views := make([]ServiceView, 0, len(names))
	for _, name := range names {
		r, ok := all[name].(Reporter)
		if !ok {
			continue
		}
		views = append(views, s.view(r))
	}
	c.JSON(http.StatusOK, gin.H{"services": views})
}

func (s *Server) view(r Reporter) ServiceView {
	st := r.Status()
	v := ServiceView{
		Name:     st.Name,
		Running:  st.Running,
		Interval: st.Interval.String(),
		DryRun:   st.DryRun,
	}
	if rec, ok, err := r.Cached(); err != nil {
		v.CacheError = err.Error()
	} else if ok {
		cached := newRecordView(rec)
		v.Cached = &cached
	}
	if st.Last != nil {
		v.Last = newTickView(st.Last)
	}
	return v
}
