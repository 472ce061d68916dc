package handlers

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"

	"kaspimarket_api/internal/kaspi/business/models"
	"kaspimarket_api/internal/kaspi/storage"
	"kaspimarket_api/pkg/logger"
)

// ProductHandler — операторские ручки поверх карточек конвейера:
// просмотр, сброс из error, вывод из оборота.
type ProductHandler struct {
	products *storage.ProductRepository
	jobs     *storage.JobRepository
	log      logger.Logger
}

func NewProductHandler(products *storage.ProductRepository, jobs *storage.JobRepository, writer io.Writer) *ProductHandler {
	return &ProductHandler{
		products: products,
		jobs:     jobs,
		log:      logger.NewLogger(writer, "[ProductHandler]"),
	}
}

// GetProductsHandler: список карточек с фильтром по статусу или поиском
// по названию/SKU.
func (h *ProductHandler) GetProductsHandler(w http.ResponseWriter, r *http.Request) {
	limit := 100
	if v := r.URL.Query().Get("limit"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed <= 0 {
			http.Error(w, "invalid limit", http.StatusBadRequest)
			return
		}
		limit = parsed
	}

	var (
		products []*models.ProductRecord
		err      error
	)
	switch {
	case r.URL.Query().Get("search") != "":
		products, err = h.products.SearchByName(r.Context(), r.URL.Query().Get("search"), limit)
	case r.URL.Query().Get("status") != "":
		status, parseErr := models.ParseConveyorStatus(r.URL.Query().Get("status"))
		if parseErr != nil {
			http.Error(w, parseErr.Error(), http.StatusBadRequest)
			return
		}
		products, err = h.products.SelectByStatus(r.Context(), []models.ConveyorStatus{status}, limit)
	default:
		products, err = h.products.SelectByStatus(r.Context(), []models.ConveyorStatus{
			models.StatusNew, models.StatusMsSynced, models.StatusStockSynced,
			models.StatusListingBuilt, models.StatusUploaded,
		}, limit)
	}
	if err != nil {
		h.log.Log("failed to fetch products: %v", err)
		http.Error(w, "Failed to fetch products", http.StatusInternalServerError)
		return
	}

	if err := json.NewEncoder(w).Encode(products); err != nil {
		h.log.Log("failed to encode products: %v", err)
	}
}

// GetProductHandler: одна карточка с журналом конвейера.
func (h *ProductHandler) GetProductHandler(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.URL.Query().Get("id"), 10, 64)
	if err != nil {
		http.Error(w, "invalid id", http.StatusBadRequest)
		return
	}

	product, err := h.products.GetByID(r.Context(), id)
	if err != nil {
		http.Error(w, "Failed to fetch product", http.StatusNotFound)
		return
	}

	if err := json.NewEncoder(w).Encode(product); err != nil {
		h.log.Log("failed to encode product: %v", err)
	}
}

// GetJobHandler: состояние задания выгрузки по его коду.
func (h *ProductHandler) GetJobHandler(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("id")
	if id == "" {
		http.Error(w, "invalid id", http.StatusBadRequest)
		return
	}

	job, err := h.jobs.Get(r.Context(), id)
	if err != nil {
		http.Error(w, "Failed to fetch job", http.StatusNotFound)
		return
	}

	if err := json.NewEncoder(w).Encode(job); err != nil {
		h.log.Log("failed to encode job: %v", err)
	}
}

type productActionRequest struct {
	ProductID int64 `json:"product_id"`
}

// ResetErrorHandler возвращает товар из error на последний пройденный шаг.
// Следующий прогон подхватит его автоматически.
func (h *ProductHandler) ResetErrorHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req productActionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	if err := h.products.ResetError(r.Context(), req.ProductID); err != nil {
		h.log.Log("failed to reset product %d: %v", req.ProductID, err)
		http.Error(w, "Failed to reset product", http.StatusConflict)
		return
	}

	h.log.Log("product %d reset by operator", req.ProductID)
	w.WriteHeader(http.StatusNoContent)
}

// RetireHandler выводит товар из оборота: конвейер его больше не берёт.
func (h *ProductHandler) RetireHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req productActionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	if err := h.products.Retire(r.Context(), req.ProductID); err != nil {
		h.log.Log("failed to retire product %d: %v", req.ProductID, err)
		http.Error(w, "Failed to retire product", http.StatusInternalServerError)
		return
	}

	h.log.Log("product %d retired by operator", req.ProductID)
	w.WriteHeader(http.StatusNoContent)
}
