package attributes

import (
	"context"
	"sync"

	"golang.org/x/sync/singleflight"

	"kaspimarket_api/internal/kaspi/business/models"
)

// SchemaClient — срез API маркетплейса, нужный резолверу.
type SchemaClient interface {
	AttributeSchema(ctx context.Context, categoryCode string) (*models.CategorySchema, error)
	AttributeValues(ctx context.Context, categoryCode, attributeCode string) ([]string, error)
}

// SchemaCache держит схемы категорий и значения enum-атрибутов на время
// жизни процесса. Чтение конкурентное; наполнение по промаху выполняется
// не более одного раза на код таксономии (single-flight).
type SchemaCache struct {
	client SchemaClient

	mu      sync.RWMutex
	schemas map[string]*models.CategorySchema
	values  map[string][]string

	group singleflight.Group
}

func NewSchemaCache(client SchemaClient) *SchemaCache {
	return &SchemaCache{
		client:  client,
		schemas: make(map[string]*models.CategorySchema),
		values:  make(map[string][]string),
	}
}

// Schema возвращает схему категории, при промахе загружая её через клиент.
func (c *SchemaCache) Schema(ctx context.Context, categoryCode string) (*models.CategorySchema, error) {
	c.mu.RLock()
	schema, ok := c.schemas[categoryCode]
	c.mu.RUnlock()
	if ok {
		return schema, nil
	}

	v, err, _ := c.group.Do("schema:"+categoryCode, func() (interface{}, error) {
		fetched, err := c.client.AttributeSchema(ctx, categoryCode)
		if err != nil {
			return nil, err
		}
		c.mu.Lock()
		c.schemas[categoryCode] = fetched
		c.mu.Unlock()
		return fetched, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*models.CategorySchema), nil
}

// Values возвращает допустимые значения enum-атрибута (лениво, с кэшем).
func (c *SchemaCache) Values(ctx context.Context, categoryCode, attributeCode string) ([]string, error) {
	key := categoryCode + "|" + attributeCode

	c.mu.RLock()
	vals, ok := c.values[key]
	c.mu.RUnlock()
	if ok {
		return vals, nil
	}

	v, err, _ := c.group.Do("values:"+key, func() (interface{}, error) {
		fetched, err := c.client.AttributeValues(ctx, categoryCode, attributeCode)
		if err != nil {
			return nil, err
		}
		c.mu.Lock()
		c.values[key] = fetched
		c.mu.Unlock()
		return fetched, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]string), nil
}

// Invalidate сбрасывает кэш целиком. Зовётся между прогонами:
// внутри одного прогона таксономия считается стабильной.
func (c *SchemaCache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.schemas = make(map[string]*models.CategorySchema)
	c.values = make(map[string][]string)
}
