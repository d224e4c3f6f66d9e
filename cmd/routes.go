package main

import (
	"net/http"

	"github.com/bmizerany/pat"
	"github.com/justinas/alice"
)

func (app *application) JWTMiddlewareWithRole(requiredRole string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return app.JWTMiddleware(next, requiredRole)
	}
}

func (app *application) routes() http.Handler {
	standardMiddleware := alice.New(app.recoverPanic, app.logRequest, secureHeaders, makeResponseJSON)
	authMiddleware := standardMiddleware.Append(app.JWTMiddlewareWithRole("user"))
	adminAuthMiddleware := standardMiddleware.Append(app.JWTMiddlewareWithRole("admin"))

	mux := pat.New()

	// Users
	mux.Post("/user/sign_up", standardMiddleware.ThenFunc(app.userHandler.SignUp))
	mux.Post("/user/sign_in", standardMiddleware.ThenFunc(app.userHandler.SignIn))
	mux.Post("/user/fcm_token", authMiddleware.ThenFunc(app.userHandler.UpdateFCMToken))

	// Products
	mux.Post("/product", adminAuthMiddleware.ThenFunc(app.productHandler.CreateProduct))
	mux.Get("/product", standardMiddleware.ThenFunc(app.productHandler.GetProducts))
	mux.Get("/product/:id", standardMiddleware.ThenFunc(app.productHandler.GetProductByID))
	mux.Put("/product/:id", adminAuthMiddleware.ThenFunc(app.productHandler.UpdateProduct))
	mux.Del("/product/:id", adminAuthMiddleware.ThenFunc(app.productHandler.DeleteProduct))
	mux.Post("/product/:id/image", adminAuthMiddleware.ThenFunc(app.productHandler.UploadImage))

	// Categories
	mux.Post("/category", adminAuthMiddleware.ThenFunc(app.categoryHandler.CreateCategory))
	mux.Get("/category", standardMiddleware.ThenFunc(app.categoryHandler.GetAllCategories))
	mux.Get("/category/:id", standardMiddleware.ThenFunc(app.categoryHandler.GetCategoryByID))
	mux.Put("/category/:id", adminAuthMiddleware.ThenFunc(app.categoryHandler.UpdateCategory))
	mux.Del("/category/:id", adminAuthMiddleware.ThenFunc(app.categoryHandler.DeleteCategory))

	// Brands
	mux.Post("/brand", adminAuthMiddleware.ThenFunc(app.brandHandler.CreateBrand))
	mux.Get("/brand", standardMiddleware.ThenFunc(app.brandHandler.GetAllBrands))
	mux.Get("/brand/:id", standardMiddleware.ThenFunc(app.brandHandler.GetBrandByID))
	mux.Put("/brand/:id", adminAuthMiddleware.ThenFunc(app.brandHandler.UpdateBrand))
	mux.Del("/brand/:id", adminAuthMiddleware.ThenFunc(app.brandHandler.DeleteBrand))

	// Cart
	mux.Post("/cart", authMiddleware.ThenFunc(app.cartHandler.AddItem))
	mux.Get("/cart", authMiddleware.ThenFunc(app.cartHandler.GetCart))
	mux.Put("/cart/:id", authMiddleware.ThenFunc(app.cartHandler.UpdateQuantity))
	mux.Del("/cart/:id", authMiddleware.ThenFunc(app.cartHandler.RemoveItem))
	mux.Post("/cart/checkout", authMiddleware.ThenFunc(app.cartHandler.Checkout))

	// Invoices
	mux.Get("/invoice/user/:user_id", authMiddleware.ThenFunc(app.invoiceHandler.GetHistory))
	mux.Get("/invoice/:id", authMiddleware.ThenFunc(app.invoiceHandler.GetByID))
	mux.Post("/invoice/:id/cancel", authMiddleware.ThenFunc(app.invoiceHandler.Cancel))
	mux.Post("/invoice/:id/refresh", authMiddleware.ThenFunc(app.invoiceHandler.Refresh))

	// Payment gateway; the callback is authenticated by its x-callback-token
	// header, not by a bearer token.
	mux.Post("/payment/callback", standardMiddleware.ThenFunc(app.invoiceHandler.Callback))
	mux.Get("/payment/success", standardMiddleware.ThenFunc(app.invoiceHandler.SuccessRedirect))
	mux.Get("/payment/failure", standardMiddleware.ThenFunc(app.invoiceHandler.FailureRedirect))

	// Live invoice feed for the admin dashboard
	mux.Get("/ws/admin", standardMiddleware.ThenFunc(app.WebSocketHandler))

	return standardMiddleware.Then(mux)
}
