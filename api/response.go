package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"strzcam.com/hudcam/api/bean"
)

func responseErrorMsg(c *gin.Context, code int, msg string) {
	c.AbortWithStatusJSON(code, &bean.Result[any]{
		Code: code,
		Msg:  msg,
	})
}

func responseSuccess[T any](c *gin.Context, data T) {
	c.JSON(http.StatusOK, &bean.Result[T]{
		Code: http.StatusOK,
		Msg:  "success",
		Data: data,
	})
}
