package api

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/mautops/budget-gin/internal/utils"
)

// pathID 解析路径中的 ID,失败时直接写出 400
func pathID(c *gin.Context, name string) (uint, bool) {
	id, err := utils.ParseID(c.Param(name))
	if err != nil {
		Error(c, http.StatusBadRequest, "invalid "+name, err.Error())
		return 0, false
	}
	return id, true
}

// queryString 可选字符串查询参数
func queryString(c *gin.Context, key string) *string {
	v := strings.TrimSpace(c.Query(key))
	if v == "" {
		return nil
	}
	return &v
}

// queryInt 可选整数查询参数
func queryInt(c *gin.Context, key string) (*int, error) {
	v := strings.TrimSpace(c.Query(key))
	if v == "" {
		return nil, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return nil, &utils.ValidationError{Code: "INVALID_QUERY", Message: key + " must be an integer"}
	}
	return &n, nil
}

// pageParams 分页参数,非法值回落到默认值
func pageParams(c *gin.Context) (int, int) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))
	return page, pageSize
}
