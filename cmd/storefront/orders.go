package main

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/MikeMC777/storefront/internal/httpx"
	"github.com/MikeMC777/storefront/internal/order"
)

type checkoutCreator interface {
	CreateCheckoutSession(ctx context.Context, cart []order.CartItem, callerUserID string) (*order.CheckoutResponse, error)
}

type orderVerifier interface {
	VerifyAndMaterialize(ctx context.Context, sessionRef, callerUserID string, addr *order.ShippingAddress) (*order.Result, error)
}

// createCheckoutHandler godoc
// @Summary      Open a hosted payment session for the cart
// @Description  Prices come from the catalog; the client only sends product ids and quantities.
// @Tags         orders
// @Accept       json
// @Produce      json
// @Param        body  body  order.CreateCheckoutRequest  true  "cart"
// @Success      200  {object}  order.CheckoutResponse
// @Failure      400  {object}  httpx.ErrorBody
// @Failure      404  {object}  httpx.ErrorBody
// @Failure      409  {object}  httpx.ErrorBody
// @Failure      503  {object}  httpx.ErrorBody
// @Router       /api/create-checkout-session [post]
func createCheckoutHandler(svc checkoutCreator) gin.HandlerFunc {
	return func(c *gin.Context) {
		var in order.CreateCheckoutRequest
		if err := c.ShouldBindJSON(&in); err != nil {
			httpx.BadRequest(c, "invalid json")
			return
		}
		out, err := svc.CreateCheckoutSession(c.Request.Context(), in.CartItems, caller(c).UserID)
		if err != nil {
			httpx.Fail(c, err)
			return
		}
		c.JSON(http.StatusOK, out)
	}
}

// verifyOrderHandler godoc
// @Summary      Record a paid session as an order
// @Description  Idempotent per session: a replay returns the original order with duplicate=true.
// @Tags         orders
// @Accept       json
// @Produce      json
// @Param        body  body  order.VerifyRequest  true  "session and shipping address"
// @Success      201  {object}  order.Result
// @Success      200  {object}  order.Result
// @Failure      400  {object}  httpx.ErrorBody
// @Failure      402  {object}  httpx.ErrorBody
// @Failure      404  {object}  httpx.ErrorBody
// @Failure      409  {object}  httpx.ErrorBody
// @Failure      503  {object}  httpx.ErrorBody
// @Router       /api/order/verify [post]
func verifyOrderHandler(rec orderVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		var in order.VerifyRequest
		if err := c.ShouldBindJSON(&in); err != nil {
			httpx.BadRequest(c, "invalid json")
			return
		}
		res, err := rec.VerifyAndMaterialize(c.Request.Context(), in.SessionID, caller(c).UserID, in.ShippingAddress)
		if err != nil {
			httpx.Fail(c, err)
			return
		}
		status := http.StatusCreated
		if res.Duplicate {
			status = http.StatusOK
		}
		c.JSON(status, res)
	}
}

// myOrdersHandler godoc
// @Summary  Orders of the current user
// @Tags     orders
// @Produce  json
// @Param    limit   query  int  false  "page size (default 20, max 100)"
// @Param    offset  query  int  false  "offset"
// @Success  200  {object}  order.ListResponse
// @Router   /api/my-orders [get]
func myOrdersHandler(repo order.Repository) gin.HandlerFunc {
	return func(c *gin.Context) {
		limit, offset := normalizePage(pageParams(c))
		items, err := repo.ListByUser(c.Request.Context(), caller(c).UserID, limit, offset)
		if err != nil {
			httpx.Fail(c, err)
			return
		}
		c.JSON(http.StatusOK, order.ListResponse{Limit: limit, Offset: offset, Items: nonNil(items)})
	}
}

// adminOrdersHandler godoc
// @Summary  All orders
// @Tags     admin
// @Produce  json
// @Param    limit   query  int  false  "page size (default 20, max 100)"
// @Param    offset  query  int  false  "offset"
// @Success  200  {object}  order.ListResponse
// @Failure  403  {object}  httpx.ErrorBody
// @Router   /api/admin/orders [get]
func adminOrdersHandler(repo order.Repository) gin.HandlerFunc {
	return func(c *gin.Context) {
		limit, offset := normalizePage(pageParams(c))
		items, err := repo.ListAll(c.Request.Context(), limit, offset)
		if err != nil {
			httpx.Fail(c, err)
			return
		}
		c.JSON(http.StatusOK, order.ListResponse{Limit: limit, Offset: offset, Items: nonNil(items)})
	}
}

func normalizePage(limit, offset int) (int, int) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

func nonNil(items []order.Order) []order.Order {
	if items == nil {
		return []order.Order{}
	}
	return items
}
