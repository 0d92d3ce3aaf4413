package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/aws/aws-lambda-go/events"

	"github.com/jacentio/ridestore/store"
)

var errUnknownRoute = errors.New("api: unknown route")

type dataBody struct {
	Data any `json:"data"`
}

type errorBody struct {
	Error  string             `json:"error"`
	Type   string             `json:"type"`
	Errors []store.FieldError `json:"errors,omitempty"`
}

// StatusOf maps a store error to an HTTP status code.
func StatusOf(err error) int {
	switch store.KindOf(err) {
	case store.KindValidation:
		return http.StatusBadRequest
	case store.KindNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// failure renders err. Server errors are logged and their message withheld.
func (h *Handler) failure(req events.APIGatewayV2HTTPRequest, err error) events.APIGatewayV2HTTPResponse {
	if errors.Is(err, errUnknownRoute) {
		return respond(http.StatusNotFound, errorBody{Error: "route not found", Type: "NotFound"})
	}

	kind := store.KindOf(err)
	body := errorBody{Type: kind.String()}

	switch kind {
	case store.KindValidation:
		var verr *store.ValidationError
		errors.As(err, &verr)
		body.Error = verr.Message
		body.Errors = verr.Errors
	case store.KindNotFound:
		body.Error = "ride not found"
	default:
		h.logger.Error("request failed",
			"routeKey", req.RouteKey,
			"requestID", req.RequestContext.RequestID,
			"error", err,
		)
		body.Error = "internal server error"
	}

	return respond(StatusOf(err), body)
}

// respond renders a JSON response. Successful payloads are wrapped in {"data": ...}.
func respond(status int, payload any) events.APIGatewayV2HTTPResponse {
	var body any
	switch p := payload.(type) {
	case errorBody, pageBody:
		body = p
	default:
		body = dataBody{Data: p}
	}

	data, err := json.Marshal(body)
	if err != nil {
		status = http.StatusInternalServerError
		data = []byte(`{"error":"internal server error","type":"ServerError"}`)
	}

	return events.APIGatewayV2HTTPResponse{
		StatusCode: status,
		Headers:    map[string]string{"Content-Type": "application/json"},
		Body:       string(data),
	}
}
