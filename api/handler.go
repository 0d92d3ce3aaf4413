// Package api adapts API Gateway HTTP API (payload v2) events to store operations.
package api

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/aws/aws-lambda-go/events"

	"github.com/jacentio/ridestore/store"
)

// Routes served by Handler, as configured on the HTTP API.
const (
	RouteGetMany    = "GET /rides"
	RouteGetOne     = "GET /rides/{id}"
	RouteCreateOne  = "POST /rides"
	RouteCreateMany = "POST /rides/batch"
	RouteUpdateOne  = "PUT /rides/{id}"
	RouteUpdateMany = "PUT /rides"
	RouteDeleteOne  = "DELETE /rides/{id}"
	RouteDeleteMany = "DELETE /rides"
)

// Rides is the set of store operations the handler dispatches to.
type Rides interface {
	GetOne(ctx context.Context, id string) (*store.Ride, error)
	GetMany(ctx context.Context, f store.Filter) ([]store.Ride, error)
	ScanFrom(ctx context.Context, f store.Filter, cursor string) *store.Pages
	CreateOne(ctx context.Context, in store.RideInput) (*store.Ride, error)
	CreateMany(ctx context.Context, in []store.RideInput) ([]store.Ride, error)
	UpdateOne(ctx context.Context, id string, patch store.RidePatch) (*store.Ride, error)
	UpdateMany(ctx context.Context, ids []string, patch store.RidePatch) ([]store.Ride, error)
	DeleteOne(ctx context.Context, id string) (*store.Ride, error)
	DeleteMany(ctx context.Context, ids []string) ([]store.Ride, error)
}

// Handler serves ride requests from the Lambda runtime.
type Handler struct {
	rides  Rides
	logger *slog.Logger
}

// NewHandler creates a new handler.
func NewHandler(rides Rides, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		rides:  rides,
		logger: logger,
	}
}

// Handle dispatches a request by its route key. Failures are rendered into the
// response; the returned error is always nil so the runtime never retries.
func (h *Handler) Handle(ctx context.Context, req events.APIGatewayV2HTTPRequest) (events.APIGatewayV2HTTPResponse, error) {
	status, data, err := h.route(ctx, req)
	if err != nil {
		return h.failure(req, err), nil
	}
	return respond(status, data), nil
}

func (h *Handler) route(ctx context.Context, req events.APIGatewayV2HTTPRequest) (int, any, error) {
	id := req.PathParameters["id"]

	switch req.RouteKey {
	case RouteGetOne:
		ride, err := h.rides.GetOne(ctx, id)
		return http.StatusOK, ride, err

	case RouteGetMany:
		return h.getMany(ctx, req)

	case RouteCreateOne:
		var in store.RideInput
		if err := decodeBody(req, &in); err != nil {
			return 0, nil, err
		}
		ride, err := h.rides.CreateOne(ctx, in)
		return http.StatusCreated, ride, err

	case RouteCreateMany:
		var in []store.RideInput
		if err := decodeBody(req, &in); err != nil {
			return 0, nil, err
		}
		rides, err := h.rides.CreateMany(ctx, in)
		return http.StatusCreated, rides, err

	case RouteUpdateOne:
		var patch store.RidePatch
		if err := decodeBody(req, &patch); err != nil {
			return 0, nil, err
		}
		ride, err := h.rides.UpdateOne(ctx, id, patch)
		return http.StatusOK, ride, err

	case RouteUpdateMany:
		ids, err := queryIDs(req)
		if err != nil {
			return 0, nil, err
		}
		var patch store.RidePatch
		if err := decodeBody(req, &patch); err != nil {
			return 0, nil, err
		}
		rides, err := h.rides.UpdateMany(ctx, ids, patch)
		return http.StatusOK, rides, err

	case RouteDeleteOne:
		ride, err := h.rides.DeleteOne(ctx, id)
		return http.StatusOK, ride, err

	case RouteDeleteMany:
		ids, err := queryIDs(req)
		if err != nil {
			return 0, nil, err
		}
		rides, err := h.rides.DeleteMany(ctx, ids)
		return http.StatusOK, rides, err

	default:
		return 0, nil, errUnknownRoute
	}
}

// getMany returns every match, or a single page when a cursor parameter is present.
func (h *Handler) getMany(ctx context.Context, req events.APIGatewayV2HTTPRequest) (int, any, error) {
	f, err := parseFilter(req.QueryStringParameters)
	if err != nil {
		return 0, nil, err
	}

	cursor, paged := req.QueryStringParameters["cursor"]
	if !paged {
		rides, err := h.rides.GetMany(ctx, f)
		return http.StatusOK, rides, err
	}

	pages := h.rides.ScanFrom(ctx, f, cursor)
	page, err := pages.NextPage(ctx)
	if err != nil {
		return 0, nil, err
	}
	if page == nil {
		page = []store.Ride{}
	}
	return http.StatusOK, pageBody{Data: page, Cursor: pages.Cursor()}, nil
}

type pageBody struct {
	Data   []store.Ride `json:"data"`
	Cursor string       `json:"cursor,omitempty"`
}

// parseFilter reads the equality filter from query parameters.
func parseFilter(params map[string]string) (store.Filter, error) {
	f := store.Filter{
		ID:      params["id"],
		CarMark: params["carMark"],
	}

	var errs []store.FieldError
	for _, field := range []struct {
		name string
		dst  **int
	}{
		{"carYear", &f.CarYear},
		{"passengerAmount", &f.PassengerAmount},
	} {
		raw, ok := params[field.name]
		if !ok || raw == "" {
			continue
		}
		n, err := strconv.Atoi(raw)
		if err != nil {
			errs = append(errs, store.FieldError{
				Field:   field.name,
				Rule:    "number",
				Message: fmt.Sprintf("%s must be a number", field.name),
			})
			continue
		}
		*field.dst = &n
	}

	if len(errs) > 0 {
		return store.Filter{}, &store.ValidationError{Message: "ValidationArrayError", Errors: errs}
	}
	return f, nil
}

// queryIDs reads the comma separated ids query parameter.
func queryIDs(req events.APIGatewayV2HTTPRequest) ([]string, error) {
	raw := strings.TrimSpace(req.QueryStringParameters["ids"])
	if raw == "" {
		return nil, &store.ValidationError{Message: "No ids in query"}
	}
	return strings.Split(raw, ","), nil
}

// decodeBody unmarshals the JSON body into dst, rejecting unknown fields.
func decodeBody(req events.APIGatewayV2HTTPRequest, dst any) error {
	body := []byte(req.Body)
	if req.IsBase64Encoded {
		decoded, err := base64.StdEncoding.DecodeString(req.Body)
		if err != nil {
			return &store.ValidationError{Message: "body is not valid base64"}
		}
		body = decoded
	}
	if len(bytes.TrimSpace(body)) == 0 {
		return &store.ValidationError{Message: "You had to specify body"}
	}

	dec := json.NewDecoder(bytes.NewReader(body))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) {
			if typeErr.Field == "" {
				return &store.ValidationError{Message: "body must be a JSON " + jsonType(typeErr.Type.String())}
			}
			return &store.ValidationError{
				Message: "ValidationArrayError",
				Errors: []store.FieldError{{
					Field:   typeErr.Field,
					Rule:    "type",
					Param:   typeErr.Type.String(),
					Message: fmt.Sprintf("%s must be a %s", typeErr.Field, jsonType(typeErr.Type.String())),
				}},
			}
		}
		return &store.ValidationError{Message: "invalid JSON body: " + err.Error()}
	}
	return nil
}

func jsonType(goType string) string {
	switch strings.TrimPrefix(goType, "*") {
	case "int":
		return "number"
	case "string":
		return "string"
	case "store.RideInput", "store.RidePatch":
		return "object"
	case "[]store.RideInput":
		return "array"
	default:
		return goType
	}
}
