package vector

import (
	"context"
	"fmt"
	"sync"

	"github.com/weaviate/weaviate-go-client/v5/weaviate"
	"github.com/weaviate/weaviate/entities/models"
)

// Indexes manages the Weaviate classes behind course indices. Callers pass
// index names such as "operating_systems" and never see class names.
//
// A class is checked against the schema once per process; Drop forgets it so
// the next Ensure recreates it.
type Indexes struct {
	schema SchemaClient

	mu      sync.Mutex
	ensured map[string]bool
}

func NewIndexes(client *weaviate.Client) *Indexes {
	return NewIndexesWithSchema(&clientSchema{client: client})
}

// NewIndexesWithSchema builds Indexes over any SchemaClient.
func NewIndexesWithSchema(schema SchemaClient) *Indexes {
	return &Indexes{schema: schema, ensured: make(map[string]bool)}
}

// Ensure makes sure the class for index exists with every unit property.
func (ix *Indexes) Ensure(ctx context.Context, index string) error {
	className := ClassName(index)

	ix.mu.Lock()
	defer ix.mu.Unlock()
	if ix.ensured[className] {
		return nil
	}
	if err := EnsureClass(ctx, ix.schema, className); err != nil {
		return fmt.Errorf("ensure %s: %w", className, err)
	}
	ix.ensured[className] = true
	return nil
}

func (ix *Indexes) Exists(ctx context.Context, index string) (bool, error) {
	return ix.schema.ClassExists(ctx, ClassName(index))
}

// Drop deletes the class for index. A missing class is not an error.
func (ix *Indexes) Drop(ctx context.Context, index string) error {
	className := ClassName(index)

	ix.mu.Lock()
	defer ix.mu.Unlock()
	delete(ix.ensured, className)

	exists, err := ix.schema.ClassExists(ctx, className)
	if err != nil {
		return err
	}
	if !exists {
		return nil
	}
	if err := ix.schema.DeleteClass(ctx, className); err != nil {
		return fmt.Errorf("delete %s: %w", className, err)
	}
	return nil
}

type clientSchema struct {
	client *weaviate.Client
}

func (c *clientSchema) ClassExists(ctx context.Context, className string) (bool, error) {
	return c.client.Schema().ClassExistenceChecker().WithClassName(className).Do(ctx)
}

func (c *clientSchema) CreateClass(ctx context.Context, class *models.Class) error {
	return c.client.Schema().ClassCreator().WithClass(class).Do(ctx)
}

func (c *clientSchema) GetClass(ctx context.Context, className string) (*models.Class, error) {
	return c.client.Schema().ClassGetter().WithClassName(className).Do(ctx)
}

func (c *clientSchema) AddProperty(ctx context.Context, className string, property *models.Property) error {
	return c.client.Schema().PropertyCreator().WithClassName(className).WithProperty(property).Do(ctx)
}

func (c *clientSchema) DeleteClass(ctx context.Context, className string) error {
	return c.client.Schema().ClassDeleter().WithClassName(className).Do(ctx)
}
