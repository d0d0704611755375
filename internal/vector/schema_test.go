package vector

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/weaviate/weaviate/entities/models"
)

type MockSchemaClient struct {
	CreatedClass    *models.Class
	ExistingClass   *models.Class
	AddedProperties []*models.Property
	DeletedClass    string
	ExistsErr       error
}

func (m *MockSchemaClient) ClassExists(ctx context.Context, className string) (bool, error) {
	if m.ExistsErr != nil {
		return false, m.ExistsErr
	}
	return m.ExistingClass != nil, nil
}

func (m *MockSchemaClient) CreateClass(ctx context.Context, class *models.Class) error {
	m.CreatedClass = class
	return nil
}

func (m *MockSchemaClient) GetClass(ctx context.Context, className string) (*models.Class, error) {
	return m.ExistingClass, nil
}

func (m *MockSchemaClient) AddProperty(ctx context.Context, className string, property *models.Property) error {
	m.AddedProperties = append(m.AddedProperties, property)
	return nil
}

func (m *MockSchemaClient) DeleteClass(ctx context.Context, className string) error {
	m.DeletedClass = className
	return nil
}

func TestEnsureClass_CreatesClass(t *testing.T) {
	client := &MockSchemaClient{}
	if err := EnsureClass(context.Background(), client, "LectureAws"); err != nil {
		t.Fatalf("EnsureClass failed: %v", err)
	}

	if client.CreatedClass == nil {
		t.Fatal("Class not created")
	}
	assert.Equal(t, "LectureAws", client.CreatedClass.Class)
	assert.Equal(t, "none", client.CreatedClass.Vectorizer)

	expectedProps := map[string]string{
		"text":     "text",
		"unitId":   "string",
		"source":   "string",
		"page":     "int",
		"keywords": "text",
	}
	assert.Len(t, client.CreatedClass.Properties, len(expectedProps))
	for _, prop := range client.CreatedClass.Properties {
		expectedType, ok := expectedProps[prop.Name]
		if !ok {
			t.Errorf("unexpected property %s", prop.Name)
			continue
		}
		if len(prop.DataType) == 0 || prop.DataType[0] != expectedType {
			t.Errorf("Property %s has wrong DataType: %v (expected %s)", prop.Name, prop.DataType, expectedType)
		}
	}
}

func TestEnsureClass_AddsMissingProperties(t *testing.T) {
	// Simulate a class created before keywords were stored
	existingClass := &models.Class{
		Class: "LectureDatabase",
		Properties: []*models.Property{
			{Name: "text", DataType: []string{"text"}},
			{Name: "unitId", DataType: []string{"string"}},
			{Name: "source", DataType: []string{"string"}},
			{Name: "page", DataType: []string{"int"}},
		},
	}

	client := &MockSchemaClient{ExistingClass: existingClass}

	if err := EnsureClass(context.Background(), client, "LectureDatabase"); err != nil {
		t.Fatalf("EnsureClass failed: %v", err)
	}

	if client.CreatedClass != nil {
		t.Fatal("Should not recreate class if it exists")
	}
	if assert.Len(t, client.AddedProperties, 1) {
		assert.Equal(t, "keywords", client.AddedProperties[0].Name)
	}
}

func TestEnsureClass_ExistsError(t *testing.T) {
	client := &MockSchemaClient{ExistsErr: errors.New("connection refused")}
	err := EnsureClass(context.Background(), client, "LectureAws")
	assert.Error(t, err)
	assert.Nil(t, client.CreatedClass)
}

func TestClassName(t *testing.T) {
	tests := map[string]string{
		"database":          "LectureDatabase",
		"operating_systems": "LectureOperatingSystems",
		"aws":               "LectureAws",
		"cloud-computing 2": "LectureCloudComputing2",
		"":                  "Lecture",
	}
	for in, want := range tests {
		assert.Equal(t, want, ClassName(in), "index %q", in)
	}
}
