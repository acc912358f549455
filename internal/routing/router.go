// Package routing assembles the gin engine for the registry service.
package routing

import (
	"log/slog"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/pgip-dev/pgip/internal/api"
	"github.com/pgip-dev/pgip/internal/middleware"
	"github.com/pgip-dev/pgip/internal/repository"
)

// Options carries the collaborators and settings the router needs.
type Options struct {
	Repo           *repository.PluginRepository
	Logger         *slog.Logger
	AllowedOrigins []string
	ServiceName    string
	Version        string
}

// NewRouter builds the HTTP engine: middleware chain, service endpoints and
// the versioned plugin API.
func NewRouter(opts Options) *gin.Engine {
	r := gin.New()
	r.Use(
		gin.Recovery(),
		middleware.RequestID(),
		middleware.RequestLogger(opts.Logger),
		middleware.Metrics(),
		middleware.CORS(opts.AllowedOrigins),
	)

	r.GET("/", api.HandleRoot(opts.ServiceName, opts.Version))
	r.GET("/health", api.HandleHealth)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	plugins := api.NewPluginHandlers(opts.Repo, opts.Logger)
	v1 := r.Group("/api/v1")
	{
		pg := v1.Group("/plugins")
		pg.GET("", plugins.ListPlugins)
		pg.POST("", plugins.RegisterPlugin)
		// The static /stats route must coexist with /:name; gin resolves
		// static segments ahead of parameters.
		pg.GET("/stats", plugins.GetStats)
		pg.GET("/:name", plugins.GetPlugin)
		pg.DELETE("/:name/:version", plugins.DeletePlugin)
	}

	return r
}
