package requests

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"chathistory-server/internal/domain/query"
	"chathistory-server/internal/utils/platformerrors"
)

// GetPaginationFromQuery parses page/size query parameters. Pages are
// zero-based, starting at the first page. Out-of-range values are clamped
// rather than rejected, malformed ones fail validation.
func GetPaginationFromQuery(reqCtx *gin.Context) (query.Pagination, error) {
	page, err := intQuery(reqCtx, "page", 0)
	if err != nil {
		return query.Pagination{}, err
	}
	size, err := intQuery(reqCtx, "size", query.DefaultPageSize)
	if err != nil {
		return query.Pagination{}, err
	}
	return query.NewPagination(page, size), nil
}

// GetSortFromQuery parses sort_by/order query parameters against the
// whitelist of sortable columns.
func GetSortFromQuery(reqCtx *gin.Context) (query.Sort, error) {
	sort, err := query.ParseSort(reqCtx.Query("sort_by"), reqCtx.Query("order"))
	if err != nil {
		return query.Sort{}, platformerrors.NewError(reqCtx.Request.Context(),
			platformerrors.LayerRoute, platformerrors.ErrorTypeValidation, "invalid sort parameters", err)
	}
	return sort, nil
}

func intQuery(reqCtx *gin.Context, name string, fallback int) (int, error) {
	raw := reqCtx.Query(name)
	if raw == "" {
		return fallback, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return 0, platformerrors.NewError(reqCtx.Request.Context(),
			platformerrors.LayerRoute, platformerrors.ErrorTypeValidation, "invalid "+name+" parameter", err)
	}
	return value, nil
}
