package httpapi

import (
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/CaoNguyen-1883/HTTM-sub001/internal/catalog"
)

// Deps carries everything the router wires into handlers.
type Deps struct {
	Logger  *log.Logger
	Cart    CartService
	Orders  OrderService
	Catalog catalog.Repository
	Stock   StockAdmin
}

func NewRouter(d Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Logger)

	r.Get("/health", healthHandler)

	ch := NewCartHandler(d.Cart, d.Logger)
	oh := NewOrderHandler(d.Orders, d.Logger)
	ah := NewAdminHandler(d.Catalog, d.Stock, d.Logger)

	r.Route("/api/cart/{userId}", func(r chi.Router) {
		r.Get("/", ch.GetCart)
		r.Get("/count", ch.ItemCount)
		r.Post("/items", ch.AddItem)
		r.Put("/items/{itemId}", ch.UpdateItem)
		r.Delete("/items/{itemId}", ch.RemoveItem)
		r.Delete("/", ch.Clear)
		r.Post("/sync", ch.Sync)
		r.Post("/checkout", oh.Checkout)
	})

	r.Route("/api/orders", func(r chi.Router) {
		r.Get("/{orderId}", oh.GetOrder)
		r.Get("/number/{orderNumber}", oh.GetOrderByNumber)
		r.Post("/{orderId}/confirm", oh.Confirm)
		r.Post("/{orderId}/processing", oh.MarkProcessing)
		r.Post("/{orderId}/ship", oh.Ship)
		r.Post("/{orderId}/deliver", oh.Deliver)
		r.Post("/{orderId}/cancel", oh.Cancel)
		r.Post("/{orderId}/payment/paid", oh.MarkPaymentPaid)
		r.Post("/{orderId}/payment/failed", oh.MarkPaymentFailed)
		r.Put("/{orderId}/notes", oh.SetAdminNotes)
	})

	r.Get("/api/users/{userId}/orders", oh.ListOrdersByUser)

	r.Route("/api/admin", func(r chi.Router) {
		r.Put("/products", ah.UpsertProduct)
		r.Put("/variants", ah.UpsertVariant)
		r.Put("/variants/{variantId}/stock", ah.SetStock)
		r.Get("/variants/{variantId}/stock", ah.GetStock)
	})

	return r
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"service": "storefront",
	})
}
