package web

import (
	"log"
	"net/http"

	handlers2 "kaspimarket_api/internal/kaspi/app/web/handlers"
)

// SetupRoutes поднимает операторский API конвейера.
func SetupRoutes(addr string, productHandler *handlers2.ProductHandler) {
	http.HandleFunc("/api/products", productHandler.GetProductsHandler)
	http.HandleFunc("/api/product", productHandler.GetProductHandler)
	http.HandleFunc("/api/job", productHandler.GetJobHandler)
	http.HandleFunc("/api/product/reset", productHandler.ResetErrorHandler)
	http.HandleFunc("/api/product/retire", productHandler.RetireHandler)

	log.Printf("Запущен операторский API конвейера %s/api/", addr)
	log.Fatal(http.ListenAndServe(addr, nil))
}
