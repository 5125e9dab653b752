package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"gitlab.com/alternet/naming-service/naming/record"
)

type NameResponse struct {
	Name  string   `json:"name"`
	Addrs []string `json:"addrs,omitempty"`
}

func parseNameParam(c *gin.Context) (record.Name, bool) {
	name, err := record.ParseName(c.Param("name"))
	if err != nil {
		abortWithProblem(c, namingProblem(err))
		return record.Name{}, false
	}
	return name, true
}

// HandleResolve  godoc
//
//	@Summary		Resolve a name
//	@Description	Looks the name up in the DHT and returns the addresses of its validated record
//	@Tags			names
//	@Produce		json
//	@Success		200	{object}	NameResponse
//	@Router			/names/{name} [get]
func (s *Server) HandleResolve(c *gin.Context) {
	name, ok := parseNameParam(c)
	if !ok {
		return
	}

	ctx, cancel := s.requestContext(c)
	defer cancel()

	addrs, err := s.naming.Resolve(ctx, name)
	if err != nil {
		abortWithProblem(c, namingProblem(err))
		return
	}
	if len(addrs) == 0 {
		abortWithProblem(c, NewProblemDetail(
			WithStatus(http.StatusNotFound),
			WithTitle("Name Not Found"),
			WithDetail("no valid record for "+name.String()),
		))
		return
	}

	resp := NameResponse{Name: name.String(), Addrs: make([]string, 0, len(addrs))}
	for _, addr := range addrs {
		resp.Addrs = append(resp.Addrs, addr.String())
	}
	c.JSON(http.StatusOK, resp)
}

// HandleRegister  godoc
//
//	@Summary		Register a name
//	@Description	Claims a root name, or publishes this node's addresses under a leased subdomain
//	@Tags			names
//	@Produce		json
//	@Success		201	{object}	NameResponse
//	@Router			/names/{name} [post]
func (s *Server) HandleRegister(c *gin.Context) {
	name, ok := parseNameParam(c)
	if !ok {
		return
	}

	ctx, cancel := s.requestContext(c)
	defer cancel()

	if err := s.naming.Register(ctx, name); err != nil {
		abortWithProblem(c, namingProblem(err))
		return
	}
	c.JSON(http.StatusCreated, NameResponse{Name: name.String()})
}

// HandleDeregister  godoc
//
//	@Summary		Stop republishing a name
//	@Tags			names
//	@Success		204
//	@Router			/names/{name} [delete]
func (s *Server) HandleDeregister(c *gin.Context) {
	name, ok := parseNameParam(c)
	if !ok {
		return
	}

	ctx, cancel := s.requestContext(c)
	defer cancel()

	if err := s.naming.Deregister(ctx, name); err != nil {
		abortWithProblem(c, namingProblem(err))
		return
	}
	c.Status(http.StatusNoContent)
}
