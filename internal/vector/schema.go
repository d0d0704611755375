package vector

import (
	"context"
	"strings"
	"unicode"

	"github.com/weaviate/weaviate/entities/models"
)

// SchemaClient defines the interface for Weaviate schema operations
type SchemaClient interface {
	ClassExists(ctx context.Context, className string) (bool, error)
	CreateClass(ctx context.Context, class *models.Class) error
	GetClass(ctx context.Context, className string) (*models.Class, error)
	AddProperty(ctx context.Context, className string, property *models.Property) error
	DeleteClass(ctx context.Context, className string) error
}

// Property names of a lecture unit object.
const (
	PropText     = "text"
	PropUnitID   = "unitId"
	PropSource   = "source"
	PropPage     = "page"
	PropKeywords = "keywords"
)

// UnitProperties is the property set every index class carries.
func UnitProperties() []*models.Property {
	return []*models.Property{
		{
			Name:     PropText,
			DataType: []string{"text"},
		},
		{
			Name:     PropUnitID,
			DataType: []string{"string"}, // exact match
		},
		{
			Name:     PropSource,
			DataType: []string{"string"},
		},
		{
			Name:     PropPage,
			DataType: []string{"int"},
		},
		{
			Name:     PropKeywords,
			DataType: []string{"text"}, // ", "-joined
		},
	}
}

// ClassName maps an index name such as "operating_systems" to a valid
// Weaviate class name ("LectureOperatingSystems").
func ClassName(index string) string {
	var b strings.Builder
	b.WriteString("Lecture")
	upper := true
	for _, r := range index {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			upper = true
			continue
		}
		if r > unicode.MaxASCII {
			continue
		}
		if upper {
			r = unicode.ToUpper(r)
			upper = false
		}
		b.WriteRune(r)
	}
	return b.String()
}

// EnsureClass creates the class for an index if it is missing, otherwise adds
// any unit property the existing class lacks.
func EnsureClass(ctx context.Context, client SchemaClient, className string) error {
	exists, err := client.ClassExists(ctx, className)
	if err != nil {
		return err
	}

	properties := UnitProperties()

	if !exists {
		class := &models.Class{
			Class:       className,
			Description: "Pages and slides of lecture documents for one course",
			Vectorizer:  "none",
			Properties:  properties,
		}
		return client.CreateClass(ctx, class)
	}

	// Class exists, check for missing properties
	class, err := client.GetClass(ctx, className)
	if err != nil {
		return err
	}

	existingProps := make(map[string]bool)
	for _, p := range class.Properties {
		existingProps[p.Name] = true
	}

	for _, p := range properties {
		if !existingProps[p.Name] {
			if err := client.AddProperty(ctx, className, p); err != nil {
				return err
			}
		}
	}
	return nil
}
