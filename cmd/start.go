package cmd

import (
	"log"
	"os"
	"os/signal"
	"syscall"

	"payment-reconciler/core/loader"
	"payment-reconciler/core/logger"
	"payment-reconciler/core/middleware/auth"
	"payment-reconciler/core/middleware/rayid"

	"github.com/gofiber/fiber/v2"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// startCmd represents the start command
var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the reconciliation server",
	Long:  `Starts the HTTP server and initializes all enabled features.`,
	Run: func(cmd *cobra.Command, args []string) {
		app, err := newApplication(cmd.Context())
		if err != nil {
			log.Fatalf("Failed to start: %v", err)
		}
		defer app.Close()

		logg := app.logger
		zap.ReplaceGlobals(logg)

		server := fiber.New(fiber.Config{
			DisableStartupMessage: true,
			BodyLimit:             app.cfg.Server.BodyLimit(),
		})

		// Feature Loader
		mgr := loader.NewManager()
		mgr.Register(app.records)
		mgr.Register(app.reconciliation)
		mgr.Register(app.divergence)
		mgr.Register(app.statistics)

		// 1. RayID (Must be first to trace everything)
		server.Use(rayid.New())

		// 2. Request logging with the ray id
		server.Use(func(c *fiber.Ctx) error {
			l := logger.WithRayID(logg, c)
			l.Info("Request started",
				zap.String("method", c.Method()),
				zap.String("path", c.Path()),
				zap.String("ip", c.IP()),
			)
			err := c.Next()
			if err != nil {
				l.Error("Request error", zap.Error(err))
			}
			return err
		})

		// 3. Auth (Protect API)
		server.Use(auth.New(auth.Config{ApiKey: app.cfg.Server.ApiKey}))

		if err := mgr.LoadAll(server); err != nil {
			logg.Fatal("Failed to load features", zap.Error(err))
		}

		go func() {
			logg.Info("Starting server", zap.String("port", app.cfg.Server.Port))
			if err := server.Listen(":" + app.cfg.Server.Port); err != nil {
				logg.Fatal("Server failed to start", zap.Error(err))
			}
		}()

		// Graceful Shutdown
		c := make(chan os.Signal, 1)
		signal.Notify(c, os.Interrupt, syscall.SIGTERM)
		<-c
		logg.Info("Shutting down server...")
		_ = server.Shutdown()
	},
}

func init() {
	RootCmd.AddCommand(startCmd)
}
