package FiberConfig

import (
	"Anvil/Controllers"
	"Anvil/middleware"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"go.uber.org/zap"
)

// Dependencies are the handlers and settings the routes are built from.
type Dependencies struct {
	Tasks     *Controllers.TaskController
	JWTSecret string
	Logger    *zap.Logger
}

func SetupRoutes(app *fiber.App, deps Dependencies) {
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	tasks := app.Group("/api/tasks", middleware.Verify(deps.JWTSecret))

	tasks.Post("/session", deps.Tasks.OpenSession)
	tasks.Get("/session", deps.Tasks.GetSession)
	tasks.Post("/session/refresh", deps.Tasks.RefreshSession)
	tasks.Delete("/session", deps.Tasks.CloseSession)

	entries := tasks.Group("/entries/:taskNo")
	entries.Post("/check", deps.Tasks.CheckEntry)
	entries.Delete("/check", deps.Tasks.UncheckEntry)
	entries.Patch("/", deps.Tasks.EditEntry)
	entries.Post("/attachment", deps.Tasks.SetAttachment)
	entries.Delete("/attachment", deps.Tasks.ClearAttachment)
	entries.Post("/submit", deps.Tasks.SubmitEntry)
	entries.Get("/history", deps.Tasks.EntryHistory)

	tasks.Get("/export", deps.Tasks.Export)
}

// NewApp builds the Fiber app with the middleware chain and routes.
func NewApp(deps Dependencies) *fiber.App {
	app := fiber.New(fiber.Config{
		BodyLimit:             25 << 20,
		DisableStartupMessage: true,
	})
	app.Use(middleware.RequestLogger(deps.Logger))
	app.Use(compress.New(compress.Config{
		Level: compress.LevelBestSpeed,
	}))
	app.Use(cors.New(cors.Config{
		AllowOrigins:     "*",
		AllowMethods:     "GET,POST,PUT,DELETE,OPTIONS,PATCH",
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, X-Requested-With, X-Request-ID",
		AllowCredentials: true,
		MaxAge:           300,
	}))

	SetupRoutes(app, deps)
	return app
}

// FiberConfig serves the API on addr until the listener fails or is shut down.
func FiberConfig(addr string, deps Dependencies) (*fiber.App, <-chan error) {
	app := NewApp(deps)
	errc := make(chan error, 1)
	go func() {
		if deps.Logger != nil {
			deps.Logger.Info("Server Up...", zap.String("addr", addr))
		}
		errc <- app.Listen(addr)
	}()
	return app, errc
}
