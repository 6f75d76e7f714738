package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/mittera/rolltrack_backend/config"
	"github.com/mittera/rolltrack_backend/middlewares"
	"github.com/mittera/rolltrack_backend/models"
	"github.com/mittera/rolltrack_backend/utils"
	"github.com/sirupsen/logrus"
)

const defaultPort = "8080"

// statusForError maps the models error taxonomy onto HTTP statuses.
// Anything unrecognized is a storage error.
func statusForError(err error) int {
	switch {
	case errors.Is(err, models.ErrRollNotFound):
		return http.StatusNotFound
	case errors.Is(err, models.ErrDuplicateID):
		return http.StatusConflict
	case errors.Is(err, models.ErrInvalidLocation),
		errors.Is(err, models.ErrInvalidWeight),
		errors.Is(err, models.ErrLocationMismatch),
		errors.Is(err, models.ErrAlreadyTerminal),
		errors.Is(err, models.ErrInvalidInput):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func abortWithError(c *gin.Context, err error) {
	status := statusForError(err)
	if status == http.StatusInternalServerError {
		config.LogError(config.GetLogger(), "server.go", c.FullPath(), "handler", nil, err)
		c.JSON(status, gin.H{"error": "internal error"})
		return
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

// abortWithBindError reports request binding failures, flattening
// validator tag failures into a per-field map.
func abortWithBindError(c *gin.Context, err error) {
	var validationErrors validator.ValidationErrors
	if errors.As(err, &validationErrors) {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":  "validation failed",
			"fields": utils.ProcessValidationErrors(validationErrors),
		})
		return
	}
	c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
}

type loginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

func loginHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req loginRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			abortWithBindError(c, err)
			return
		}
		info, err := models.Login(c.Request.Context(), utils.Clean(req.Username), req.Password)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, info)
	}
}

func logoutHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		ok, err := models.Logout(c.Request.Context())
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"logged_out": ok})
	}
}

// rememberSubLocation keeps the last sub-location used by this session
// so the next form can prefill it. Pure convenience: the core always
// receives explicit locations.
func rememberSubLocation(c *gin.Context, sub string) {
	if sub == "" {
		return
	}
	if token, ok := utils.GetTokenFromContext(c.Request.Context()); ok {
		_ = config.SetRedisValue("LastSubLoc:"+token, sub, 12*time.Hour)
	}
}

func defaultsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var sub string
		if token, ok := utils.GetTokenFromContext(c.Request.Context()); ok {
			sub, _, _ = config.GetRedisValue("LastSubLoc:" + token)
		}
		c.JSON(http.StatusOK, gin.H{"sub_location": sub})
	}
}

func createRollHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var input models.NewRoll
		if err := c.ShouldBindJSON(&input); err != nil {
			abortWithBindError(c, err)
			return
		}
		roll, err := models.CreateRoll(c.Request.Context(), &input)
		if err != nil {
			abortWithError(c, err)
			return
		}
		rememberSubLocation(c, roll.SubLocation)
		c.JSON(http.StatusCreated, roll)
	}
}

func getRollHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		roll, err := models.GetRoll(c.Request.Context(), c.Param("roll_id"))
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, roll)
	}
}

func editRollHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var input models.EditRollInput
		if err := c.ShouldBindJSON(&input); err != nil {
			abortWithBindError(c, err)
			return
		}
		roll, err := models.EditRoll(c.Request.Context(), c.Param("roll_id"), &input)
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, roll)
	}
}

func deleteRollHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		roll, err := models.DeleteRoll(c.Request.Context(), c.Param("roll_id"))
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"deleted": roll.RollID})
	}
}

type transferRequest struct {
	FromWarehouse string `json:"from_warehouse" binding:"required,warehouse"`
	ToWarehouse   string `json:"to_warehouse" binding:"required,warehouse"`
	ToSubLocation string `json:"to_sub_location" binding:"required"`
}

func transferRollHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req transferRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			abortWithBindError(c, err)
			return
		}
		roll, err := models.TransferRoll(c.Request.Context(), c.Param("roll_id"),
			req.FromWarehouse, req.ToWarehouse, req.ToSubLocation)
		if err != nil {
			abortWithError(c, err)
			return
		}
		rememberSubLocation(c, roll.SubLocation)
		c.JSON(http.StatusOK, roll)
	}
}

func consumeRollHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		roll, err := models.ConsumeRoll(c.Request.Context(), c.Param("roll_id"))
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, roll)
	}
}

func removeRollHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		roll, err := models.RemoveRoll(c.Request.Context(), c.Param("roll_id"))
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, roll)
	}
}

type restoreRequest struct {
	Warehouse   string `json:"warehouse" binding:"required,warehouse"`
	SubLocation string `json:"sub_location" binding:"required"`
}

func restoreRollHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req restoreRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			abortWithBindError(c, err)
			return
		}
		roll, err := models.RestoreRoll(c.Request.Context(), c.Param("roll_id"),
			req.Warehouse, req.SubLocation)
		if err != nil {
			abortWithError(c, err)
			return
		}
		rememberSubLocation(c, roll.SubLocation)
		c.JSON(http.StatusOK, roll)
	}
}

type batchRemoveRequest struct {
	// RollIDs is the pasted/scanned blob; ids separated by whitespace,
	// commas or semicolons.
	RollIDs string `json:"roll_ids" binding:"required"`
}

func batchRemoveHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req batchRemoveRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			abortWithBindError(c, err)
			return
		}
		ids := utils.SplitScanList(req.RollIDs)
		if len(ids) == 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "paste or scan roll ids first"})
			return
		}
		result, err := models.BatchMoveRolls(c.Request.Context(), ids,
			string(models.WarehouseUsed), "", models.ActionBatchRemove)
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, result)
	}
}

func inventoryHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var sub *string
		if v := utils.Clean(c.Query("sub_location")); v != "" {
			sub = &v
		}
		rolls, totals, err := models.ListRollsWithTotals(c.Request.Context(), c.Param("warehouse"), sub)
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"rolls": rolls, "totals": totals})
	}
}

func inventoryExportHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		f, err := models.ExportInventoryXLSX(c.Request.Context(), c.Param("warehouse"))
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
		c.Header("Content-Disposition", "attachment; filename=inventory.xlsx")
		if err := f.Write(c.Writer); err != nil {
			config.LogError(config.GetLogger(), "server.go", "inventoryExportHandler", "f.Write", nil, err)
		}
	}
}

func searchHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		rolls, err := models.SearchRollsByMaterial(c.Request.Context(), c.Query("q"))
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"rolls": rolls})
	}
}

func rollMovementsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		movements, err := models.ListMovementsForRoll(c.Request.Context(), c.Param("roll_id"))
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"movements": movements})
	}
}

func movementsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		from, err := time.Parse(time.RFC3339, c.Query("from"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "from must be RFC3339"})
			return
		}
		to, err := time.Parse(time.RFC3339, c.Query("to"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "to must be RFC3339"})
			return
		}
		movements, err := models.ListMovementsBetween(c.Request.Context(), from, to)
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"movements": movements})
	}
}

func splitAndTrim(s string) []string {
	parts := strings.Split(s, ",")
	var out []string
	for _, p := range parts {
		if v := strings.TrimSpace(p); v != "" {
			out = append(out, v)
		}
	}
	return out
}

func registerValidators() {
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		_ = v.RegisterValidation("warehouse", func(fl validator.FieldLevel) bool {
			_, err := models.ParseWarehouseCode(fl.Field().String())
			return err == nil
		})
	}
}

func main() {
	port := os.Getenv("PORT")
	if port == "" {
		port = defaultPort
	}

	logger := config.GetLogger()
	registerValidators()

	// SIGTERM is sent on revision shutdown; handle it for graceful drain.
	sigCtx, stopSignals := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stopSignals()

	// Start the HTTP server ASAP; until DB/Redis are ready, app
	// endpoints return 503.
	r := gin.New()
	r.Use(func(c *gin.Context) {
		cid := c.GetHeader("x-correlation-id")
		if cid == "" {
			cid = uuid.NewString()
		}
		c.Request = c.Request.WithContext(utils.SetCorrelationIdInContext(c.Request.Context(), cid))
		c.Next()
	})
	r.Use(func(c *gin.Context) {
		if c.Request.URL.Path == "/healthz" {
			c.Status(http.StatusNoContent)
			c.Abort()
			return
		}
		if config.GetDB() == nil || config.GetRedisDB() == nil {
			c.AbortWithStatus(http.StatusServiceUnavailable)
			return
		}
		c.Next()
	})

	r.GET("/healthz", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	corsConfig := cors.DefaultConfig()
	allowedOrigins := strings.TrimSpace(os.Getenv("CORS_ALLOWED_ORIGINS"))
	if strings.EqualFold(strings.TrimSpace(os.Getenv("GO_ENV")), "production") {
		if allowedOrigins == "" {
			// Safer default: deny all if not configured in production.
			corsConfig.AllowOrigins = []string{}
		} else {
			corsConfig.AllowOrigins = splitAndTrim(allowedOrigins)
		}
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AddAllowMethods("GET", "POST", "PUT", "DELETE", "OPTIONS")
	corsConfig.AddAllowHeaders("token", "Origin", "Content-Type", "Authorization")
	corsConfig.AddExposeHeaders("Content-Length")
	corsConfig.AllowCredentials = true
	r.Use(cors.New(corsConfig))

	r.Use(middlewares.SessionMiddleware())
	r.Use(gin.Recovery())

	r.POST("/login", loginHandler())

	authed := r.Group("/", middlewares.RequireSession())
	authed.POST("/logout", logoutHandler())
	authed.GET("/defaults", defaultsHandler())
	authed.POST("/rolls", createRollHandler())
	authed.GET("/rolls/:roll_id", getRollHandler())
	authed.PUT("/rolls/:roll_id", editRollHandler())
	authed.DELETE("/rolls/:roll_id", deleteRollHandler())
	authed.GET("/rolls/:roll_id/movements", rollMovementsHandler())
	authed.POST("/rolls/:roll_id/transfer", transferRollHandler())
	authed.POST("/rolls/:roll_id/consume", consumeRollHandler())
	authed.POST("/rolls/:roll_id/remove", removeRollHandler())
	authed.POST("/rolls/:roll_id/restore", restoreRollHandler())
	authed.POST("/rolls/batch-remove", batchRemoveHandler())
	authed.GET("/inventory/:warehouse", inventoryHandler())
	authed.GET("/inventory/:warehouse/export", inventoryExportHandler())
	authed.GET("/search", searchHandler())
	authed.GET("/movements", movementsHandler())

	srv := &http.Server{
		Addr:    ":" + port,
		Handler: r,
	}
	serverErrCh := make(chan error, 1)
	go func() {
		// ListenAndServe returns http.ErrServerClosed on graceful shutdown.
		serverErrCh <- srv.ListenAndServe()
	}()

	// Connect dependencies after the port is open.
	config.ConnectDatabaseWithRetry()
	config.ConnectRedisWithRetry()

	db := config.GetDB()
	sqlDB, _ := db.DB()
	defer func() {
		if sqlDB != nil {
			_ = sqlDB.Close()
		}
	}()
	// AutoMigrate can run DDL that blocks tables; allow disabling
	// migrations on startup and running them as a separate job instead.
	if !strings.EqualFold(strings.TrimSpace(os.Getenv("SKIP_MIGRATIONS")), "true") {
		models.MigrateTable()
	} else {
		logger.WithFields(logrus.Fields{"field": "migrations"}).Warn("SKIP_MIGRATIONS=true; skipping AutoMigrate on startup")
	}

	log.Println("Server started successfully")

	// Block until shutdown or server error.
	select {
	case <-sigCtx.Done():
		// graceful shutdown below
	case err := <-serverErrCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithFields(logrus.Fields{"field": "http"}).Error("server stopped unexpectedly: " + err.Error())
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.WithFields(logrus.Fields{"field": "http"}).Error("graceful shutdown failed: " + err.Error())
	}
}
