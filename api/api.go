// Package api serves the naming control plane over HTTP for the CLI and
// local tooling.
package api

import (
	"context"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/multiformats/go-multiaddr"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	_ "gitlab.com/alternet/naming-service/docs"
	"gitlab.com/alternet/naming-service/internal/tracing"
	"gitlab.com/alternet/naming-service/naming/behaviour"
	"gitlab.com/alternet/naming-service/naming/record"
)

const defaultRequestTimeout = 30 * time.Second

// Naming is the control plane. *control.Control implements it.
type Naming interface {
	Resolve(ctx context.Context, name record.Name) ([]multiaddr.Multiaddr, error)
	Register(ctx context.Context, name record.Name) error
	Deregister(ctx context.Context, name record.Name) error
	Grant(ctx context.Context, subdomain record.Name, leasee peer.ID, until time.Time) error
}

// Node reports what this node holds. *behaviour.Behaviour implements it.
type Node interface {
	Self() peer.ID
	Claims() []record.Name
	Grants() []behaviour.Grant
}

type Server struct {
	naming  Naming
	node    Node
	now     func() time.Time
	timeout time.Duration
}

func NewServer(naming Naming, node Node) *Server {
	return &Server{
		naming:  naming,
		node:    node,
		now:     time.Now,
		timeout: defaultRequestTimeout,
	}
}

// SetupRouter builds the gin engine. Origins lists the browser origins
// allowed by CORS; none means same-origin only.
func (s *Server) SetupRouter(origins ...string) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(cors.New(corsConfig(origins)))
	router.Use(otelgin.Middleware(tracing.ServiceName))

	v1 := router.Group("/api/v1")

	names := v1.Group("/names")
	{
		names.GET("/:name", s.HandleResolve)
		names.POST("/:name", s.HandleRegister)
		names.DELETE("/:name", s.HandleDeregister)
	}

	leases := v1.Group("/leases")
	{
		leases.POST("", s.HandleGrant)
	}

	v1.GET("/self", s.HandleSelf)

	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	return router
}

func (s *Server) requestContext(c *gin.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request.Context(), s.timeout)
}

func corsConfig(origins []string) cors.Config {
	config := DefaultConfig()
	if len(origins) == 0 {
		config.AllowOriginFunc = func(string) bool { return false }
	} else {
		config.AllowOrigins = origins
	}
	return config
}

// DefaultConfig returns a generic default CORS configuration.
func DefaultConfig() cors.Config {
	return cors.Config{
		AllowMethods:     []string{"GET", "POST", "DELETE", "HEAD", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Length", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           12 * time.Hour,
	}
}
