package handlers

import (
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/joshua-takyi/repairhub/internal/models"
	"github.com/joshua-takyi/repairhub/internal/services"
)

func ListActiveServices(s *services.CatalogService) gin.HandlerFunc {
	return func(c *gin.Context) {
		list, err := s.ListActive(c.Request.Context())
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, models.SuccessResponse(list, ""))
	}
}

func ListAllServices(s *services.CatalogService) gin.HandlerFunc {
	return func(c *gin.Context) {
		list, err := s.ListAll(c.Request.Context())
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, models.SuccessResponse(list, ""))
	}
}

func GetService(s *services.CatalogService) gin.HandlerFunc {
	return func(c *gin.Context) {
		svc, err := s.Get(c.Request.Context(), c.Param("id"))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, models.SuccessResponse(svc, ""))
	}
}

// bindServiceInput accepts JSON or a multipart form with an optional "image"
// file. The returned closer must be called once the upload is done.
func bindServiceInput(c *gin.Context) (services.ServiceInput, any, func(), bool) {
	var in services.ServiceInput
	noop := func() {}

	if !strings.HasPrefix(c.ContentType(), "multipart/") {
		if err := c.ShouldBindJSON(&in); err != nil {
			badRequest(c, "invalid request payload")
			return in, nil, noop, false
		}
		return in, nil, noop, true
	}

	if err := c.ShouldBind(&in); err != nil {
		badRequest(c, "invalid form payload")
		return in, nil, noop, false
	}
	header, err := c.FormFile("image")
	if err != nil {
		return in, nil, noop, true
	}
	var file multipart.File
	if file, err = header.Open(); err != nil {
		badRequest(c, "could not read image")
		return in, nil, noop, false
	}
	return in, file, func() { file.Close() }, true
}

func CreateService(s *services.CatalogService) gin.HandlerFunc {
	return func(c *gin.Context) {
		in, image, done, ok := bindServiceInput(c)
		if !ok {
			return
		}
		defer done()

		svc, err := s.Create(c.Request.Context(), in, image)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, models.SuccessResponse(svc, "Service created"))
	}
}

func UpdateService(s *services.CatalogService) gin.HandlerFunc {
	return func(c *gin.Context) {
		in, image, done, ok := bindServiceInput(c)
		if !ok {
			return
		}
		defer done()

		svc, err := s.Update(c.Request.Context(), c.Param("id"), in, image)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, models.SuccessResponse(svc, "Service updated"))
	}
}

func DeactivateService(s *services.CatalogService) gin.HandlerFunc {
	return func(c *gin.Context) {
		svc, err := s.Deactivate(c.Request.Context(), c.Param("id"))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, models.SuccessResponse(svc, "Service deactivated"))
	}
}
