package clients

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"kaspimarket_api/internal/kaspi/business/models"
	"kaspimarket_api/internal/kaspi/business/services"
	kaspiclients "kaspimarket_api/internal/kaspi/pkg/clients"
	"kaspimarket_api/pkg/logger"
)

// MoySkladClient — клиент учётной системы: карточки, остатки, цены, фото.
type MoySkladClient struct {
	ApiURL string
	auth   services.AuthEngine
	log    logger.Logger
	client *http.Client
}

func NewMoySkladClient(apiURL, login, password string, writer io.Writer) *MoySkladClient {
	return &MoySkladClient{
		ApiURL: apiURL,
		auth:   services.NewBasicAuth(login, password),
		log:    logger.NewLogger(writer, "[MoySkladClient]"),
		client: &http.Client{Timeout: 30 * time.Second},
	}
}

type assortmentRow struct {
	ID    string `json:"id"`
	Stock int    `json:"stock"`
	// Цена в тиынах, как отдаёт учётная система.
	SalePrices []struct {
		Value int64 `json:"value"`
	} `json:"salePrices"`
}

// CreateItem заводит товар в учётной системе (или находит существующий
// по артикулу) и возвращает его внешний идентификатор.
func (c *MoySkladClient) CreateItem(ctx context.Context, product *models.ProductRecord) (string, error) {
	reqBody := map[string]interface{}{
		"name":    product.Name,
		"article": fmt.Sprintf("%d", product.ID),
	}
	if product.Brand != "" {
		reqBody["description"] = product.Brand
	}

	var created struct {
		ID string `json:"id"`
	}
	if err := c.doRequest(ctx, http.MethodPost, "/entity/product", reqBody, &created); err != nil {
		return "", err
	}
	if created.ID == "" {
		return "", fmt.Errorf("bookkeeping created product without id")
	}
	return created.ID, nil
}

// StockAndPrice возвращает остаток и закупочную цену позиции.
func (c *MoySkladClient) StockAndPrice(ctx context.Context, externalID string) (int, int64, error) {
	var row assortmentRow
	endpoint := fmt.Sprintf("/entity/assortment/%s", externalID)
	if err := c.doRequest(ctx, http.MethodGet, endpoint, nil, &row); err != nil {
		return 0, 0, err
	}

	var price int64
	if len(row.SalePrices) > 0 {
		price = row.SalePrices[0].Value / 100
	}
	return row.Stock, price, nil
}

// Images возвращает ссылки на фотографии позиции.
func (c *MoySkladClient) Images(ctx context.Context, externalID string) ([]string, error) {
	var resp struct {
		Rows []struct {
			Miniature struct {
				DownloadHref string `json:"downloadHref"`
			} `json:"miniature"`
		} `json:"rows"`
	}
	endpoint := fmt.Sprintf("/entity/product/%s/images", externalID)
	if err := c.doRequest(ctx, http.MethodGet, endpoint, nil, &resp); err != nil {
		return nil, err
	}

	var urls []string
	for _, row := range resp.Rows {
		if row.Miniature.DownloadHref != "" {
			urls = append(urls, row.Miniature.DownloadHref)
		}
	}
	return urls, nil
}

func (c *MoySkladClient) doRequest(ctx context.Context, method, endpoint string, requestBody interface{}, response interface{}) error {
	var bodyBytes []byte
	if requestBody != nil {
		var err error
		bodyBytes, err = json.Marshal(requestBody)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, method, fmt.Sprintf("%s%s", c.ApiURL, endpoint), bytes.NewBuffer(bodyBytes))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	c.auth.SetApiKey(req)

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(resp.Body)
		c.log.Log("%s %s -> %d", method, endpoint, resp.StatusCode)
		return kaspiclients.StatusError(endpoint, resp.StatusCode, string(respBody))
	}

	if response != nil {
		if err := json.NewDecoder(resp.Body).Decode(response); err != nil {
			return fmt.Errorf("failed to unmarshal response: %w", err)
		}
	}
	return nil
}
