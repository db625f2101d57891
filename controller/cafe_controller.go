package controller

import (
	"errors"
	"net/http"
	"strconv"

	"cafeapi/service"
	"cafeapi/utils"

	"github.com/gin-gonic/gin"
)

const maxUploadSize = 5 << 20

type CafeController struct {
	Service *service.CafeService
}

func NewCafeController(svc *service.CafeService) *CafeController {
	return &CafeController{Service: svc}
}

func (h *CafeController) Home(c *gin.Context) {
	c.HTML(http.StatusOK, "index.html", nil)
}

func (h *CafeController) Random(c *gin.Context) {
	cafe, err := h.Service.RandomOne(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, cafe)
}

func (h *CafeController) All(c *gin.Context) {
	list, err := h.Service.ListAll(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

func (h *CafeController) GetCafe(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	cafe, res, err := h.Service.Get(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	if res.Outcome != service.OK {
		writeResult(c, res)
		return
	}
	c.JSON(http.StatusOK, cafe)
}

func (h *CafeController) Search(c *gin.Context) {
	res, err := h.Service.SearchByLocationPrefix(c.Request.Context(), optional(c.GetQuery("loc")))
	if err != nil {
		writeError(c, err)
		return
	}

	if res.Outcome == service.NotFound {
		c.JSON(http.StatusNotFound, gin.H{"error": gin.H{"not found": res.Message}})
		return
	}
	c.JSON(http.StatusOK, res.List)
}

func (h *CafeController) Add(c *gin.Context) {
	in := service.NewCafe{
		Name:        optional(c.GetPostForm("name")),
		MapURL:      optional(c.GetPostForm("map_url")),
		ImgURL:      optional(c.GetPostForm("img_url")),
		Location:    optional(c.GetPostForm("loc")),
		Seats:       optional(c.GetPostForm("seats")),
		Sockets:     c.PostForm("sockets"),
		Toilet:      c.PostForm("toilet"),
		Wifi:        c.PostForm("wifi"),
		Calls:       c.PostForm("calls"),
		CoffeePrice: nonEmpty(c.GetPostForm("coffee_price")),
	}

	res, err := h.Service.Create(c.Request.Context(), in)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"response": gin.H{res.Outcome.String(): res.Message},
		"id":       res.ID,
	})
}

func (h *CafeController) UpdatePrice(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	res, err := h.Service.UpdatePrice(c.Request.Context(), id, optional(c.GetQuery("new_price")))
	if err != nil {
		writeError(c, err)
		return
	}
	writeResult(c, res)
}

func (h *CafeController) ReportClose(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	res, err := h.Service.Delete(c.Request.Context(), id, optional(c.GetQuery("api-key")))
	if err != nil {
		writeError(c, err)
		return
	}
	writeResult(c, res)
}

func (h *CafeController) ImportExcel(c *gin.Context) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": gin.H{"missing parameter": "Excel file is required"}})
		return
	}
	if fileHeader.Size > maxUploadSize {
		c.JSON(http.StatusBadRequest, gin.H{"error": gin.H{"invalid parameter": "Excel file exceeds 5MB limit"}})
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		writeError(c, err)
		return
	}
	defer file.Close()

	rows, err := utils.ReadSheetRows(file)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": gin.H{"invalid parameter": err.Error()}})
		return
	}

	importRows := make([]service.ImportRow, 0, len(rows))
	for _, row := range rows {
		importRows = append(importRows, service.ImportRow{
			Number: row.Number,
			Cafe: service.NewCafe{
				Name:        optional(row.Get("name")),
				MapURL:      optional(row.Get("map_url")),
				ImgURL:      optional(row.Get("img_url")),
				Location:    optional(row.Get("location")),
				Seats:       optional(row.Get("seats")),
				Sockets:     row.Values["has_sockets"],
				Toilet:      row.Values["has_toilet"],
				Wifi:        row.Values["has_wifi"],
				Calls:       row.Values["can_take_calls"],
				CoffeePrice: nonEmpty(row.Get("coffee_price")),
			},
		})
	}

	report, err := h.Service.Import(c.Request.Context(), importRows)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"response": gin.H{"success": "Finished importing cafes."},
		"added":    report.Added,
		"skipped":  report.Skipped,
	})
}

func (h *CafeController) ExportExcel(c *gin.Context) {
	list, err := h.Service.ListAll(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}

	xl, err := utils.WriteCafes(list.Cafes)
	if err != nil {
		writeError(c, err)
		return
	}
	defer xl.Close()

	c.Header("Content-Disposition", `attachment; filename="cafes.xlsx"`)
	c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	c.Status(http.StatusOK)
	if err := xl.Write(c.Writer); err != nil {
		_ = c.Error(err)
	}
}

func writeResult(c *gin.Context, res service.Result) {
	status := http.StatusOK
	switch res.Outcome {
	case service.NotFound:
		status = http.StatusNotFound
	case service.NotAllowed:
		status = http.StatusForbidden
	}
	c.JSON(status, gin.H{"response": gin.H{res.Outcome.String(): res.Message}})
}

func writeError(c *gin.Context, err error) {
	var (
		missingParam *service.MissingParameterError
		missingField *service.MissingFieldError
		duplicate    *service.DuplicateNameError
	)

	switch {
	case errors.As(err, &missingParam):
		c.JSON(http.StatusBadRequest, gin.H{"error": gin.H{"missing parameter": err.Error()}})
	case errors.As(err, &missingField):
		c.JSON(http.StatusBadRequest, gin.H{"error": gin.H{"missing field": err.Error()}})
	case errors.As(err, &duplicate):
		c.JSON(http.StatusConflict, gin.H{"error": gin.H{"conflict": err.Error()}})
	case errors.Is(err, service.ErrEmptyStore):
		c.JSON(http.StatusNotFound, gin.H{"error": gin.H{"not found": err.Error()}})
	default:
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": gin.H{"server error": "Something went wrong, please try again later"}})
	}
}

func parseID(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, strconv.IntSize)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": gin.H{"invalid parameter": "Invalid cafe ID format"}})
		return 0, false
	}
	return uint(id), true
}

func optional(v string, ok bool) *string {
	if !ok {
		return nil
	}
	return &v
}

func nonEmpty(v string, ok bool) *string {
	if !ok || v == "" {
		return nil
	}
	return &v
}
