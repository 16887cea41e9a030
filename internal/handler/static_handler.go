package handler

import (
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/filesystem"
)

const indexFile = "index.html"

// RegisterStaticRoutes serves the single-page frontend from root. Unknown
// paths fall back to index.html; /api paths are never rewritten.
func RegisterStaticRoutes(router fiber.Router, root string) {
	router.Use(StaticHandler(root))
}

func StaticHandler(root string) fiber.Handler {
	return filesystem.New(filesystem.Config{
		Next:         isAPIPath,
		Root:         http.Dir(root),
		Index:        indexFile,
		NotFoundFile: indexFile,
	})
}

func isAPIPath(c *fiber.Ctx) bool {
	path := c.Path()
	return path == "/api" || strings.HasPrefix(path, "/api/")
}
