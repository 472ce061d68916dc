package clients

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"kaspimarket_api/internal/kaspi/business/models"
	"kaspimarket_api/internal/kaspi/business/models/dto/request"
	"kaspimarket_api/internal/kaspi/business/models/dto/response"
	"kaspimarket_api/internal/kaspi/business/services"
	"kaspimarket_api/metrics"
	"kaspimarket_api/pkg/logger"
)

const (
	lookupTimeout = 10 * time.Second
	importTimeout = 60 * time.Second
)

// KaspiClient — обёртка над API кабинета продавца Kaspi.
// Без внутренних ретраев: повторять или нет, решает конвейер,
// потому что только он знает, не нарушит ли повтор идемпотентность.
type KaspiClient struct {
	baseURL string
	auth    services.AuthEngine
	limiter *rate.Limiter
	lookup  *http.Client
	upload  *http.Client
	log     logger.Logger
}

func NewKaspiClient(baseURL string, auth services.AuthEngine, limiter *rate.Limiter, writer io.Writer) *KaspiClient {
	return &KaspiClient{
		baseURL: baseURL,
		auth:    auth,
		limiter: limiter,
		lookup:  &http.Client{Timeout: lookupTimeout},
		upload:  &http.Client{Timeout: importTimeout},
		log:     logger.NewLogger(writer, "[KaspiClient]"),
	}
}

// Categories возвращает список категорий таксономии.
func (c *KaspiClient) Categories(ctx context.Context) (*response.CategoryResponse, error) {
	var resp response.CategoryResponse
	if err := c.doRequest(ctx, c.lookup, http.MethodGet, "categories", "/shop/api/v2/categories", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// AttributeSchema возвращает схему атрибутов категории.
func (c *KaspiClient) AttributeSchema(ctx context.Context, categoryCode string) (*models.CategorySchema, error) {
	var resp response.AttributeSchemaResponse
	endpoint := fmt.Sprintf("/shop/api/v2/attributes?c=%s", categoryCode)
	if err := c.doRequest(ctx, c.lookup, http.MethodGet, "attribute_schema", endpoint, nil, &resp); err != nil {
		return nil, err
	}

	schema := &models.CategorySchema{Code: categoryCode}
	for _, a := range resp.Data {
		schema.Attributes = append(schema.Attributes, models.Attribute{
			Code:        a.Code,
			Type:        models.AttributeType(a.Type),
			Mandatory:   a.Mandatory,
			MultiValued: a.MultiValued,
		})
	}
	return schema, nil
}

// AttributeValues возвращает допустимые значения enum-атрибута.
func (c *KaspiClient) AttributeValues(ctx context.Context, categoryCode, attributeCode string) ([]string, error) {
	var resp response.AttributeValuesResponse
	endpoint := fmt.Sprintf("/shop/api/v2/attributes/values?c=%s&a=%s", categoryCode, attributeCode)
	if err := c.doRequest(ctx, c.lookup, http.MethodGet, "attribute_values", endpoint, nil, &resp); err != nil {
		return nil, err
	}

	values := make([]string, 0, len(resp.Data))
	for _, v := range resp.Data {
		values = append(values, v.Code)
	}
	return values, nil
}

// SubmitImport отправляет партию карточек и возвращает код асинхронного задания.
func (c *KaspiClient) SubmitImport(ctx context.Context, items []request.ImportItem) (string, error) {
	var resp response.ImportResponse
	body := request.ImportRequest{Items: items}
	if err := c.doRequest(ctx, c.upload, http.MethodPost, "product_import", "/shop/api/v2/product/import", body, &resp); err != nil {
		return "", err
	}
	if resp.Code == "" {
		return "", &RemoteError{StatusCode: http.StatusOK, Body: "import accepted but no job code returned"}
	}
	return resp.Code, nil
}

// ImportStatus опрашивает состояние задания выгрузки.
func (c *KaspiClient) ImportStatus(ctx context.Context, jobID string) (*models.UploadJob, error) {
	var resp response.ImportStatusResponse
	endpoint := fmt.Sprintf("/shop/api/v2/product/import/result?i=%s", jobID)
	if err := c.doRequest(ctx, c.lookup, http.MethodGet, "import_status", endpoint, nil, &resp); err != nil {
		return nil, err
	}

	job := &models.UploadJob{
		ID:           jobID,
		LastPolledAt: time.Now(),
	}
	for _, item := range resp.Result.Items {
		if item.Message != "" {
			job.ItemErrors = append(job.ItemErrors, models.ItemError{SKU: item.SKU, Message: item.Message})
		}
	}

	switch resp.Status {
	case "PENDING", "PROCESSING":
		job.Status = models.JobPending
	case "FINISHED":
		switch {
		case resp.Result.Errors == 0:
			job.Status = models.JobSuccess
		case resp.Result.Errors >= resp.Result.Total:
			job.Status = models.JobFailed
		default:
			job.Status = models.JobPartial
		}
	case "FAILED":
		job.Status = models.JobFailed
	default:
		return nil, &RemoteError{StatusCode: http.StatusOK, Body: fmt.Sprintf("unknown import status %q", resp.Status)}
	}
	return job, nil
}

func (c *KaspiClient) doRequest(ctx context.Context, client *http.Client, method, operation, endpoint string, requestBody interface{}, out interface{}) error {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}
	}

	var bodyBytes []byte
	if requestBody != nil {
		var err error
		bodyBytes, err = json.Marshal(requestBody)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+endpoint, bytes.NewBuffer(bodyBytes))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	c.auth.SetApiKey(req)

	start := time.Now()
	resp, err := client.Do(req)
	if err != nil {
		metrics.RecordMarketplaceRequest(operation, 0, time.Since(start))
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()
	metrics.RecordMarketplaceRequest(operation, resp.StatusCode, time.Since(start))

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.log.Log("%s %s -> %d", method, endpoint, resp.StatusCode)
		return StatusError(endpoint, resp.StatusCode, string(respBody))
	}

	if out != nil {
		if err := json.Unmarshal(respBody, out); err != nil {
			return fmt.Errorf("failed to unmarshal response: %w", err)
		}
	}
	return nil
}
