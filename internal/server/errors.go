package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const internalMessage = "Internal server error"

// ErrorResponse is the body of every non-2xx answer.
type ErrorResponse struct {
	StatusCode int    `json:"statusCode"`
	Message    string `json:"message"`
	Error      string `json:"error"`
}

func httpStatusFromCode(code codes.Code) int {
	switch code {
	case codes.OK:
		return http.StatusOK
	case codes.InvalidArgument:
		return http.StatusBadRequest
	case codes.NotFound:
		return http.StatusNotFound
	case codes.Canceled, codes.Unavailable:
		return http.StatusServiceUnavailable
	case codes.DeadlineExceeded:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// writeError maps a status error onto the HTTP response. Messages of
// internal failures stay on the server.
func writeError(c *gin.Context, err error) {
	st := status.Convert(err)
	code := httpStatusFromCode(st.Code())
	msg := st.Message()
	if code == http.StatusInternalServerError {
		msg = internalMessage
	}
	_ = c.Error(err)
	c.AbortWithStatusJSON(code, ErrorResponse{
		StatusCode: code,
		Message:    msg,
		Error:      http.StatusText(code),
	})
}
