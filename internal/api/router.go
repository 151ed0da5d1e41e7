package api

import (
	"net/http"

	"github.com/jmoiron/sqlx"

	"github.com/erazemk/zaloga/internal/model"
	"github.com/erazemk/zaloga/internal/realtime"
	"github.com/erazemk/zaloga/internal/service"
)

// Deps are the collaborators the router hands to its handlers.
type Deps struct {
	DB        *sqlx.DB
	Service   *service.Service
	Hub       *realtime.Hub
	Storage   http.Handler
	JWTSecret string
}

// NewRouter creates the API router with all endpoints registered.
func NewRouter(d Deps) http.Handler {
	mux := http.NewServeMux()

	authHandler := &AuthHandler{DB: d.DB, JWTSecret: d.JWTSecret}
	usersHandler := &UsersHandler{Service: d.Service}
	inventoryHandler := &InventoryHandler{Service: d.Service}
	borrowedHandler := &BorrowedHandler{Service: d.Service}
	usageHandler := &UsageHandler{Service: d.Service}
	reportsHandler := &ReportsHandler{Service: d.Service, Hub: d.Hub}

	authMW := AuthMiddleware(d.JWTSecret, d.DB)
	requireSuperadmin := RequireRole(model.RoleSuperadmin)
	requireAdmin := RequireRole(model.RoleAdmin)

	read := func(h http.HandlerFunc) http.Handler { return authMW(h) }
	write := func(h http.HandlerFunc) http.Handler { return authMW(requireAdmin(h)) }
	super := func(h http.HandlerFunc) http.Handler { return authMW(requireSuperadmin(h)) }

	// Public: login and stored files.
	mux.HandleFunc("POST /api/auth/login", authHandler.Login)
	if d.Storage != nil {
		mux.Handle("GET /storage/{key}", d.Storage)
	}

	mux.Handle("POST /api/auth/logout", read(authHandler.Logout))
	mux.Handle("PUT /api/auth/password", read(authHandler.ChangePassword))
	mux.Handle("GET /api/auth/me", read(authHandler.Me))

	// Users (superadmin only).
	mux.Handle("GET /api/users", super(usersHandler.List))
	mux.Handle("POST /api/users", super(usersHandler.Create))
	mux.Handle("PUT /api/users/{id}/role", super(usersHandler.UpdateRole))
	mux.Handle("PUT /api/users/{id}/password", super(usersHandler.ResetPassword))
	mux.Handle("DELETE /api/users/{id}", super(usersHandler.Delete))

	// Inventory and defects: read (all roles), write (admin+).
	mux.Handle("GET /api/inventory", read(inventoryHandler.List))
	mux.Handle("POST /api/inventory", write(inventoryHandler.Create))
	mux.Handle("GET /api/inventory/{id}", read(inventoryHandler.Get))
	mux.Handle("PUT /api/inventory/{id}", write(inventoryHandler.Update))
	mux.Handle("DELETE /api/inventory/{id}", write(inventoryHandler.Delete))
	mux.Handle("POST /api/inventory/{id}/adjust", write(inventoryHandler.Adjust))
	mux.Handle("PUT /api/inventory/{id}/image", write(inventoryHandler.UploadImage))
	mux.Handle("GET /api/stock-levels", read(inventoryHandler.StockLevels))
	mux.Handle("GET /api/defects", read(inventoryHandler.ListDefects))
	mux.Handle("DELETE /api/defects/{id}", write(inventoryHandler.DeleteDefect))

	// Borrow records.
	mux.Handle("GET /api/borrowed", read(borrowedHandler.List))
	mux.Handle("POST /api/borrowed", write(borrowedHandler.Create))
	mux.Handle("GET /api/borrowed/{id}", read(borrowedHandler.Get))
	mux.Handle("PUT /api/borrowed/{id}", write(borrowedHandler.Update))
	mux.Handle("DELETE /api/borrowed/{id}", write(borrowedHandler.Delete))
	mux.Handle("POST /api/borrowed/{id}/return", write(borrowedHandler.Return))
	mux.Handle("POST /api/borrowed/{id}/extend", write(borrowedHandler.Extend))

	// Used and given records.
	mux.Handle("GET /api/used-given", read(usageHandler.List))
	mux.Handle("POST /api/used-given", write(usageHandler.Create))
	mux.Handle("DELETE /api/used-given/{id}", write(usageHandler.Delete))

	// Read-only views.
	mux.Handle("GET /api/activity", read(reportsHandler.Activity))
	mux.Handle("GET /api/dashboard", read(reportsHandler.Dashboard))
	mux.Handle("GET /api/reports/inventory.pdf", read(reportsHandler.InventoryPDF))
	mux.Handle("GET /api/reports/borrowed.pdf", read(reportsHandler.BorrowedPDF))
	mux.Handle("GET /api/reports/defected.pdf", read(reportsHandler.DefectedPDF))
	mux.Handle("GET /api/export", super(reportsHandler.Export))
	if d.Hub != nil {
		mux.Handle("GET /api/changes", read(reportsHandler.Changes))
	}

	return mux
}
