package main

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/MikeMC777/storefront/internal/httpx"
	"github.com/MikeMC777/storefront/internal/product"
)

// imageBase is the URL prefix the upload directory is served under.
const imageBase = "/static/uploads/products"

func pageParams(c *gin.Context) (int, int) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))
	return limit, offset
}

// listProductsHandler godoc
// @Summary      List products
// @Description  Paginated catalog, optionally filtered by a search term on name, description and brand.
// @Tags         products
// @Produce      json
// @Param        q       query  string  false  "search term"
// @Param        limit   query  int     false  "page size (default 20, max 100)"
// @Param        offset  query  int     false  "offset"
// @Success      200  {object}  product.ListResponse
// @Failure      500  {object}  httpx.ErrorBody
// @Router       /api/products [get]
func listProductsHandler(repo product.Repository) gin.HandlerFunc {
	return func(c *gin.Context) {
		limit, offset := pageParams(c)
		q := product.Query{Q: c.Query("q"), Limit: limit, Offset: offset}.Normalize()

		items, err := repo.List(c.Request.Context(), q)
		if err != nil {
			httpx.Fail(c, err)
			return
		}
		views := make([]product.View, 0, len(items))
		for _, p := range items {
			views = append(views, p.View(imageBase))
		}
		c.JSON(http.StatusOK, product.ListResponse{Q: q.Q, Limit: q.Limit, Offset: q.Offset, Items: views})
	}
}

// getProductHandler godoc
// @Summary  Get a product
// @Tags     products
// @Produce  json
// @Param    id   path  string  true  "product id"
// @Success  200  {object}  product.View
// @Failure  404  {object}  httpx.ErrorBody
// @Router   /api/products/{id} [get]
func getProductHandler(repo product.Repository) gin.HandlerFunc {
	return func(c *gin.Context) {
		p, err := repo.GetByID(c.Request.Context(), c.Param("id"))
		if err != nil {
			httpx.Fail(c, err)
			return
		}
		c.JSON(http.StatusOK, p.View(imageBase))
	}
}
