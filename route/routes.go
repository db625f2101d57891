package route

import (
	"embed"
	"html/template"

	"cafeapi/controller"

	"github.com/gin-gonic/gin"
)

//go:embed templates/index.html
var templatesFS embed.FS

func CafeRoutes(router *gin.Engine, h *controller.CafeController) {
	router.SetHTMLTemplate(template.Must(template.ParseFS(templatesFS, "templates/index.html")))

	router.GET("/", h.Home)
	router.GET("/random", h.Random)
	router.GET("/all", h.All)
	router.GET("/all/excel", h.ExportExcel)
	router.GET("/cafe/:id", h.GetCafe)
	router.GET("/search", h.Search)
	router.POST("/add", h.Add)
	router.POST("/add/excel", h.ImportExcel)
	router.PATCH("/update-price/:id", h.UpdatePrice)
	router.DELETE("/report-close/:id", h.ReportClose)
}
