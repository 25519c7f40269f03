// Package handler 提供 HTTP 请求处理
package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tronpay/gateway/pkg/errors"
)

// Response 统一响应信封
type Response struct {
	Code    string      `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// Success 返回成功响应
func Success(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, &Response{Code: "OK", Message: "success", Data: data})
}

// Accepted 返回已受理但未终态的响应
func Accepted(c *gin.Context, data interface{}) {
	c.JSON(http.StatusAccepted, &Response{Code: "PENDING", Message: "transfer still in flight", Data: data})
}

// Error 返回业务错误响应
func Error(c *gin.Context, err *errors.Error) {
	c.JSON(err.HTTPStatus, &Response{Code: err.Code, Message: err.Message, Data: errDetails(err)})
}

// HandleServiceError 归一化服务层错误并返回
func HandleServiceError(c *gin.Context, err error) {
	Error(c, errors.AsError(err))
}

// BadRequest 返回参数错误响应
func BadRequest(c *gin.Context, message string) {
	Error(c, errors.ErrBadRequest.WithMessage("%s", message))
}

func errDetails(err *errors.Error) interface{} {
	if len(err.Details) == 0 {
		return nil
	}
	return err.Details
}
