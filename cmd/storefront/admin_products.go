package main

import (
	"context"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/MikeMC777/storefront/internal/apperr"
	"github.com/MikeMC777/storefront/internal/httpx"
	"github.com/MikeMC777/storefront/internal/product"
)

// productReader reads products bypassing the cache.
type productReader interface {
	GetByID(ctx context.Context, id string) (*product.Product, error)
}

func formValue(form *multipart.Form, key string) (string, bool) {
	v, ok := form.Value[key]
	if !ok || len(v) == 0 {
		return "", false
	}
	return strings.TrimSpace(v[0]), true
}

// applyProductForm copies the submitted fields onto p. On create every
// required field must be present.
func applyProductForm(p *product.Product, form *multipart.Form, create bool) error {
	if v, ok := formValue(form, "name"); ok || create {
		if v == "" {
			return apperr.Validation("name is required")
		}
		p.Name = v
	}
	if v, ok := formValue(form, "price"); ok || create {
		price, err := decimal.NewFromString(v)
		if err != nil || !price.IsPositive() {
			return apperr.Validation("price must be a positive number")
		}
		if !price.Round(2).Equal(price) {
			return apperr.Validation("price must have at most two decimals")
		}
		p.Price = price
	}
	if v, ok := formValue(form, "stock"); ok || create {
		stock, err := strconv.Atoi(v)
		if err != nil || stock < 0 {
			return apperr.Validation("stock must be a non-negative integer")
		}
		p.Stock = stock
	}
	if v, ok := formValue(form, "description"); ok {
		p.Description = v
	}
	if v, ok := formValue(form, "brand"); ok {
		p.Brand = v
	}
	return nil
}

func readForm(c *gin.Context, maxBytes int64) (*multipart.Form, bool) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
	form, err := c.MultipartForm()
	if err != nil {
		httpx.BadRequest(c, "invalid multipart form or upload too large")
		return nil, false
	}
	return form, true
}

// createProductHandler godoc
// @Summary  Create a product
// @Tags     admin
// @Accept   mpfd
// @Produce  json
// @Param    name         formData  string  true   "name"
// @Param    price        formData  string  true   "price"
// @Param    stock        formData  int     true   "stock"
// @Param    description  formData  string  false  "description"
// @Param    brand        formData  string  false  "brand"
// @Param    images       formData  file    false  "images (png, jpg, jpeg, gif)"
// @Success  201  {object}  map[string]string
// @Failure  400  {object}  httpx.ErrorBody
// @Failure  403  {object}  httpx.ErrorBody
// @Router   /api/admin/product/new [post]
func createProductHandler(repo product.Repository, images *product.ImageStore, maxBytes int64, log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		form, ok := readForm(c, maxBytes)
		if !ok {
			return
		}
		p := &product.Product{}
		if err := applyProductForm(p, form, true); err != nil {
			httpx.Fail(c, err)
			return
		}
		names, err := images.SaveAll(form.File["images"])
		if err != nil {
			httpx.Fail(c, apperr.Persistence(err, "save images"))
			return
		}
		if err := repo.Create(c.Request.Context(), p, names); err != nil {
			cleanupImages(images, names, log)
			httpx.Fail(c, err)
			return
		}
		log.Info().Str("product_id", p.ID).Int("images", len(names)).Msg("product created")
		c.JSON(http.StatusCreated, gin.H{"productId": p.ID})
	}
}

// updateProductHandler godoc
// @Summary      Update a product
// @Description  Only submitted fields change. New images are appended.
// @Tags         admin
// @Accept       mpfd
// @Produce      json
// @Param        id           path      string  true   "product id"
// @Param        name         formData  string  false  "name"
// @Param        price        formData  string  false  "price"
// @Param        stock        formData  int     false  "stock"
// @Param        description  formData  string  false  "description"
// @Param        brand        formData  string  false  "brand"
// @Param        images       formData  file    false  "additional images"
// @Success      200  {object}  product.View
// @Failure      400  {object}  httpx.ErrorBody
// @Failure      404  {object}  httpx.ErrorBody
// @Router       /api/admin/products/{id} [post]
func updateProductHandler(repo product.Repository, fresh productReader, images *product.ImageStore, maxBytes int64, log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		form, ok := readForm(c, maxBytes)
		if !ok {
			return
		}
		ctx := c.Request.Context()
		p, err := fresh.GetByID(ctx, c.Param("id"))
		if err != nil {
			httpx.Fail(c, err)
			return
		}
		if err := applyProductForm(p, form, false); err != nil {
			httpx.Fail(c, err)
			return
		}
		names, err := images.SaveAll(form.File["images"])
		if err != nil {
			httpx.Fail(c, apperr.Persistence(err, "save images"))
			return
		}
		added, err := repo.Update(ctx, p, names)
		if err != nil {
			cleanupImages(images, names, log)
			httpx.Fail(c, err)
			return
		}
		p.Images = append(p.Images, added...)
		log.Info().Str("product_id", p.ID).Int("new_images", len(added)).Msg("product updated")
		c.JSON(http.StatusOK, p.View(imageBase))
	}
}

// deleteProductHandler godoc
// @Summary      Delete a product
// @Description  Removes the product, its image rows and files. Products referenced by orders cannot be deleted.
// @Tags         admin
// @Param        id   path  string  true  "product id"
// @Success      204
// @Failure      404  {object}  httpx.ErrorBody
// @Failure      409  {object}  httpx.ErrorBody
// @Router       /api/admin/products/{id} [delete]
func deleteProductHandler(repo product.Repository, fresh productReader, images *product.ImageStore, log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		p, err := fresh.GetByID(ctx, c.Param("id"))
		if err != nil {
			httpx.Fail(c, err)
			return
		}
		ok, err := repo.Delete(ctx, p.ID)
		if err != nil {
			httpx.Fail(c, err)
			return
		}
		if !ok {
			httpx.Fail(c, product.ErrNotFound)
			return
		}
		names := make([]string, 0, len(p.Images))
		for _, img := range p.Images {
			names = append(names, img.Filename)
		}
		cleanupImages(images, names, log)
		log.Info().Str("product_id", p.ID).Msg("product deleted")
		c.Status(http.StatusNoContent)
	}
}

func cleanupImages(images *product.ImageStore, names []string, log zerolog.Logger) {
	if err := images.RemoveAll(names); err != nil {
		log.Error().Err(err).Strs("images", names).Msg("remove image files failed")
	}
}
