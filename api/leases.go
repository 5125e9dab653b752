package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/libp2p/go-libp2p/core/peer"

	"gitlab.com/alternet/naming-service/naming/record"
)

func init() {
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		if err := v.RegisterValidation("peerid", validPeerID); err != nil {
			panic(err)
		}
	}
}

func validPeerID(fl validator.FieldLevel) bool {
	_, err := peer.Decode(fl.Field().String())
	return err == nil
}

// GrantRequest leases a subdomain to another peer until a point in time,
// given either directly or as a duration from now.
type GrantRequest struct {
	Subdomain string     `json:"subdomain" binding:"required"`
	Leasee    string     `json:"leasee" binding:"required,peerid"`
	Until     *time.Time `json:"until" binding:"required_without=TTL"`
	TTL       string     `json:"ttl" binding:"required_without=Until"`
}

type GrantResponse struct {
	Subdomain string    `json:"subdomain"`
	Leasee    string    `json:"leasee"`
	Until     time.Time `json:"until"`
}

// HandleGrant  godoc
//
//	@Summary		Lease a subdomain
//	@Description	Signs and publishes a lease of a subdomain of a name this node holds
//	@Tags			leases
//	@Accept			json
//	@Produce		json
//	@Success		201	{object}	GrantResponse
//	@Router			/leases [post]
func (s *Server) HandleGrant(c *gin.Context) {
	var req GrantRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithProblem(c, bindProblem(err))
		return
	}

	subdomain, err := record.ParseName(req.Subdomain)
	if err != nil {
		abortWithProblem(c, namingProblem(err))
		return
	}
	leasee, _ := peer.Decode(req.Leasee)

	now := s.now()
	var until time.Time
	if req.Until != nil {
		until = *req.Until
	} else {
		ttl, err := time.ParseDuration(req.TTL)
		if err != nil {
			abortWithProblem(c, NewProblemDetail(
				WithStatus(http.StatusBadRequest),
				WithTitle("Input Validation Error"),
				WithErrors([]ErrorDetail{{Detail: "is not a duration", Pointer: "#/ttl"}}),
			))
			return
		}
		until = now.Add(ttl)
	}
	if !until.After(now) {
		abortWithProblem(c, NewProblemDetail(
			WithStatus(http.StatusBadRequest),
			WithTitle("Input Validation Error"),
			WithErrors([]ErrorDetail{{Detail: "is in the past", Pointer: "#/until"}}),
		))
		return
	}

	ctx, cancel := s.requestContext(c)
	defer cancel()

	if err := s.naming.Grant(ctx, subdomain, leasee, until); err != nil {
		abortWithProblem(c, namingProblem(err))
		return
	}
	c.JSON(http.StatusCreated, GrantResponse{Subdomain: subdomain.String(), Leasee: leasee.String(), Until: until.UTC()})
}

type SelfResponse struct {
	PeerID string          `json:"peer_id"`
	Claims []string        `json:"claims"`
	Grants []GrantResponse `json:"grants"`
}

// HandleSelf  godoc
//
//	@Summary		Return this node's identity with its claims and grants
//	@Tags			names
//	@Produce		json
//	@Success		200	{object}	SelfResponse
//	@Router			/self [get]
func (s *Server) HandleSelf(c *gin.Context) {
	resp := SelfResponse{
		PeerID: s.node.Self().String(),
		Claims: []string{},
		Grants: []GrantResponse{},
	}
	for _, name := range s.node.Claims() {
		resp.Claims = append(resp.Claims, name.String())
	}
	for _, g := range s.node.Grants() {
		resp.Grants = append(resp.Grants, GrantResponse{Subdomain: g.Subdomain.String(), Leasee: g.Leasee.String(), Until: g.Until.UTC()})
	}
	c.JSON(http.StatusOK, resp)
}
