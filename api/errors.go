package api

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"gitlab.com/alternet/naming-service/naming/behaviour"
	"gitlab.com/alternet/naming-service/naming/control"
	"gitlab.com/alternet/naming-service/naming/record"
)

const problemContentType = "application/problem+json"

type ProblemDetail struct {
	Type     string        `json:"type,omitempty"`
	Status   int           `json:"status,omitempty"`
	Title    string        `json:"title,omitempty"`
	Detail   string        `json:"detail,omitempty"`
	Instance string        `json:"instance,omitempty"`
	Errors   []ErrorDetail `json:"errors,omitempty"`
}

type ErrorDetail struct {
	Detail  string `json:"detail"`
	Pointer string `json:"pointer"`
}

type ProblemOption func(*ProblemDetail)

func NewProblemDetail(options ...ProblemOption) ProblemDetail {
	problem := ProblemDetail{}
	for _, option := range options {
		option(&problem)
	}
	return problem
}

func WithStatus(s int) ProblemOption {
	return func(p *ProblemDetail) {
		p.Status = s
	}
}

func WithTitle(t string) ProblemOption {
	return func(p *ProblemDetail) {
		p.Title = t
	}
}

func WithDetail(d string) ProblemOption {
	return func(p *ProblemDetail) {
		p.Detail = d
	}
}

func WithInstance(i string) ProblemOption {
	return func(p *ProblemDetail) {
		p.Instance = i
	}
}

func WithErrors(e []ErrorDetail) ProblemOption {
	return func(p *ProblemDetail) {
		p.Errors = e
	}
}

func NewValidationProblem(e error) ProblemDetail {
	return NewProblemDetail(
		WithStatus(http.StatusBadRequest),
		WithTitle("Input Validation Error"),
		WithDetail("Your request body has invalid parameters."),
		WithErrors(readableErrors(e)),
	)
}

func NewEmptyBodyProblem() ProblemDetail {
	return NewProblemDetail(
		WithStatus(http.StatusBadRequest),
		WithTitle("Empty Request Body"),
		WithDetail("Your request did not include a body."),
	)
}

// bindProblem turns a ShouldBindJSON error into a problem.
func bindProblem(err error) ProblemDetail {
	if errors.Is(err, io.EOF) {
		return NewEmptyBodyProblem()
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		return NewValidationProblem(verrs)
	}
	return NewProblemDetail(
		WithStatus(http.StatusBadRequest),
		WithTitle("Malformed Request Body"),
		WithDetail(err.Error()),
	)
}

// namingProblem maps control plane and behaviour errors to HTTP statuses.
func namingProblem(err error) ProblemDetail {
	status, title := http.StatusInternalServerError, "Naming Error"
	switch {
	case errors.Is(err, record.ErrInvalidName), errors.Is(err, behaviour.ErrInvalidGrant):
		status, title = http.StatusBadRequest, "Invalid Name"
	case errors.Is(err, behaviour.ErrNameTaken):
		status, title = http.StatusConflict, "Name Taken"
	case errors.Is(err, behaviour.ErrNotLeased), errors.Is(err, behaviour.ErrNotOwner):
		status, title = http.StatusForbidden, "Not Authorized For Name"
	case errors.Is(err, behaviour.ErrUnexpectedRecordKind):
		status, title = http.StatusNotFound, "No Addresses"
	case errors.Is(err, control.ErrClosed):
		status, title = http.StatusServiceUnavailable, "Naming Stopped"
	case errors.Is(err, context.DeadlineExceeded):
		status, title = http.StatusGatewayTimeout, "Naming Timeout"
	case record.IsDecodeError(err), record.IsTrustError(err):
		status, title = http.StatusBadGateway, "Invalid Record"
	}
	return NewProblemDetail(WithStatus(status), WithTitle(title), WithDetail(err.Error()))
}

func abortWithProblem(c *gin.Context, problem ProblemDetail) {
	problem.Instance = c.Request.URL.Path
	c.Header("Content-Type", problemContentType)
	c.AbortWithStatusJSON(problem.Status, problem)
}

func readableErrors(err error) []ErrorDetail {
	var details []ErrorDetail
	errs, ok := err.(validator.ValidationErrors)
	if ok {
		for _, e := range errs {
			var detail string
			switch e.Tag() {
			case "required":
				detail = "is required"
			case "required_without":
				detail = "is required when " + strings.ToLower(e.Param()) + " is missing"
			case "peerid":
				detail = "is not a peer id"
			default:
				detail = "is invalid"
			}
			pointer := "#/" + strings.ToLower(e.Field())
			details = append(details, ErrorDetail{Detail: detail, Pointer: pointer})
		}
	}
	return details
}
