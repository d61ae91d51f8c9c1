package functions

import (
	"context"
	"encoding/base64"
	"io"
	"net/http"
	"net/url"

	"github.com/aws/aws-lambda-go/events"
	"github.com/gin-gonic/gin"
)

// GinHandler serves h from a gin route.
func GinHandler(h Handler) gin.HandlerFunc {
	return func(c *gin.Context) {
		body, err := io.ReadAll(c.Request.Body)
		if err != nil {
			c.String(http.StatusBadRequest, "unreadable body")
			return
		}

		resp := h(c.Request.Context(), Request{
			Method: c.Request.Method,
			Header: c.Request.Header,
			Query:  c.Request.URL.Query(),
			Body:   body,
		})

		for k, v := range resp.Header {
			c.Header(k, v)
		}
		c.Data(resp.Status, resp.Header["Content-Type"], resp.Body)
	}
}

type LambdaFunc func(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error)

// LambdaHandler serves h behind an API Gateway proxy integration.
func LambdaHandler(h Handler) LambdaFunc {
	return func(ctx context.Context, ev events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
		header := http.Header{}
		for k, v := range ev.Headers {
			header.Set(k, v)
		}
		for k, vs := range ev.MultiValueHeaders {
			header.Del(k)
			for _, v := range vs {
				header.Add(k, v)
			}
		}

		query := url.Values{}
		for k, v := range ev.QueryStringParameters {
			query.Set(k, v)
		}
		for k, vs := range ev.MultiValueQueryStringParameters {
			query[k] = vs
		}

		body := []byte(ev.Body)
		if ev.IsBase64Encoded {
			decoded, err := base64.StdEncoding.DecodeString(ev.Body)
			if err != nil {
				return events.APIGatewayProxyResponse{StatusCode: http.StatusBadRequest, Body: "invalid base64 body"}, nil
			}
			body = decoded
		}

		resp := h(ctx, Request{Method: ev.HTTPMethod, Header: header, Query: query, Body: body})
		return events.APIGatewayProxyResponse{
			StatusCode: resp.Status,
			Headers:    resp.Header,
			Body:       string(resp.Body),
		}, nil
	}
}
